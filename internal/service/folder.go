package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// CreateFolderInput holds the parameters for creating a folder.
type CreateFolderInput struct {
	Name  string
	Color string
}

// UpdateFolderInput holds the parameters for a partial folder update.
type UpdateFolderInput struct {
	Name  *string
	Color *string
}

// FolderService implements folder management.
type FolderService struct {
	folderRepo repository.FolderRepository
	logger     *slog.Logger
}

// NewFolderService creates a new folder service.
func NewFolderService(folderRepo repository.FolderRepository, logger *slog.Logger) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		logger:     logger,
	}
}

// Create adds a new folder for the user.
func (s *FolderService) Create(ctx context.Context, userID string, input CreateFolderInput) (*domain.Folder, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	now := time.Now().UTC()
	folder := &domain.Folder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      input.Name,
		Color:     input.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	s.logger.InfoContext(ctx, "folder created",
		slog.String("folder_id", folder.ID),
		slog.String("user_id", userID),
	)

	return folder, nil
}

// Get returns a folder owned by the user.
func (s *FolderService) Get(ctx context.Context, userID, folderID string) (*domain.Folder, error) {
	return s.getOwned(ctx, userID, folderID)
}

// List returns all the user's folders.
func (s *FolderService) List(ctx context.Context, userID string) ([]domain.Folder, error) {
	folders, err := s.folderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// Update applies a partial update to a folder.
func (s *FolderService) Update(ctx context.Context, userID, folderID string, input UpdateFolderInput) (*domain.Folder, error) {
	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		folder.Name = *input.Name
	}
	if input.Color != nil {
		folder.Color = *input.Color
	}

	folder.UpdatedAt = time.Now().UTC()

	if err := s.folderRepo.Update(ctx, folder); err != nil {
		return nil, fmt.Errorf("update folder: %w", err)
	}
	return folder, nil
}

// Delete removes a folder. Tasks and notes filed under it are unfiled, not
// deleted.
func (s *FolderService) Delete(ctx context.Context, userID, folderID string) error {
	if _, err := s.getOwned(ctx, userID, folderID); err != nil {
		return err
	}

	if err := s.folderRepo.Delete(ctx, folderID); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

func (s *FolderService) getOwned(ctx context.Context, userID, folderID string) (*domain.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, apperrors.NotFound("folder", folderID)
	}
	return folder, nil
}
