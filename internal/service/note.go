package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/event"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// CreateNoteInput holds the parameters for creating a note.
type CreateNoteInput struct {
	Title    string
	Content  string
	Tags     []string
	Color    string
	FolderID *string
}

// UpdateNoteInput holds the parameters for a partial note update. Nil fields
// are left untouched.
type UpdateNoteInput struct {
	Title      *string
	Content    *string
	Tags       *[]string
	Color      *string
	IsPinned   *bool
	IsFavorite *bool
	FolderID   *string
}

// NoteFilter narrows note listings at the service boundary.
type NoteFilter struct {
	FolderID  *string
	Tag       *string
	Favorites bool
}

// NoteService implements note management: CRUD, trash, and collaboration.
type NoteService struct {
	noteRepo   repository.NoteRepository
	folderRepo repository.FolderRepository
	userRepo   repository.UserRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(
	noteRepo repository.NoteRepository,
	folderRepo repository.FolderRepository,
	userRepo repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *NoteService {
	return &NoteService{
		noteRepo:   noteRepo,
		folderRepo: folderRepo,
		userRepo:   userRepo,
		producer:   producer,
		logger:     logger,
	}
}

// Create adds a new note for the user.
func (s *NoteService) Create(ctx context.Context, userID string, input CreateNoteInput) (*domain.Note, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.FolderID != nil {
		if err := s.checkFolderOwnership(ctx, userID, *input.FolderID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	note := &domain.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     input.Title,
		Content:   input.Content,
		Tags:      input.Tags,
		Color:     input.Color,
		FolderID:  input.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.InfoContext(ctx, "note created",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
	)

	return note, nil
}

// Get returns a note the user owns or collaborates on.
func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !note.CanView(userID) {
		// Hide the note's existence from outsiders.
		return nil, apperrors.NotFound("note", noteID)
	}
	return note, nil
}

// List returns active notes the user owns or collaborates on, pinned first.
func (s *NoteService) List(ctx context.Context, userID string, filter NoteFilter) ([]domain.Note, error) {
	notes, err := s.noteRepo.ListAccessible(ctx, userID, repository.NoteFilter{
		FolderID:  filter.FolderID,
		Tag:       filter.Tag,
		Favorites: filter.Favorites,
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// ListTrash returns the user's soft-deleted notes. Collaborators never see
// another user's trash.
func (s *NoteService) ListTrash(ctx context.Context, userID string) ([]domain.Note, error) {
	notes, err := s.noteRepo.ListAccessible(ctx, userID, repository.NoteFilter{Deleted: true})
	if err != nil {
		return nil, fmt.Errorf("list trashed notes: %w", err)
	}
	// The accessible set includes shared notes; trash is owner-only.
	owned := make([]domain.Note, 0, len(notes))
	for _, n := range notes {
		if n.UserID == userID {
			owned = append(owned, n)
		}
	}
	return owned, nil
}

// Update applies a partial update to a note. Content fields need edit access;
// moving the note between folders is reserved for the owner.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, input UpdateNoteInput) (*domain.Note, error) {
	note, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsDeleted {
		return nil, apperrors.InvalidInput("note is in the trash; restore it first")
	}
	if !note.CanEdit(userID) {
		return nil, apperrors.Forbidden("you do not have edit access to this note")
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperrors.InvalidInput("title cannot be empty")
		}
		note.Title = *input.Title
	}
	if input.Content != nil {
		note.Content = *input.Content
	}
	if input.Tags != nil {
		note.Tags = *input.Tags
		if note.Tags == nil {
			note.Tags = []string{}
		}
	}
	if input.Color != nil {
		note.Color = *input.Color
	}
	if input.IsPinned != nil {
		note.IsPinned = *input.IsPinned
	}
	if input.IsFavorite != nil {
		note.IsFavorite = *input.IsFavorite
	}
	if input.FolderID != nil {
		if note.UserID != userID {
			return nil, apperrors.Forbidden("only the owner can move a note")
		}
		if *input.FolderID == "" {
			note.FolderID = nil
		} else {
			if err := s.checkFolderOwnership(ctx, userID, *input.FolderID); err != nil {
				return nil, err
			}
			note.FolderID = input.FolderID
		}
	}

	note.UpdatedAt = time.Now().UTC()

	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

// Trash soft-deletes a note. Owner only.
func (s *NoteService) Trash(ctx context.Context, userID, noteID string) error {
	note, err := s.getOwned(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if note.IsDeleted {
		return nil
	}

	if err := s.noteRepo.SetDeleted(ctx, noteID, true, time.Now().UTC()); err != nil {
		return fmt.Errorf("trash note: %w", err)
	}
	return nil
}

// Restore brings a note back from the trash. Owner only.
func (s *NoteService) Restore(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	note, err := s.getOwned(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if !note.IsDeleted {
		return note, nil
	}

	if err := s.noteRepo.SetDeleted(ctx, noteID, false, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("restore note: %w", err)
	}

	note.IsDeleted = false
	note.DeletedAt = nil
	return note, nil
}

// Purge permanently removes a trashed note. Owner only.
func (s *NoteService) Purge(ctx context.Context, userID, noteID string) error {
	note, err := s.getOwned(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if !note.IsDeleted {
		return apperrors.InvalidInput("only trashed notes can be permanently deleted")
	}

	if err := s.noteRepo.Delete(ctx, noteID); err != nil {
		return fmt.Errorf("purge note: %w", err)
	}

	s.logger.InfoContext(ctx, "note purged",
		slog.String("note_id", noteID),
		slog.String("user_id", userID),
	)
	return nil
}

// Share grants a user access to the note by email. The owner and editors can
// invite; only the owner can change an existing collaborator's role.
func (s *NoteService) Share(ctx context.Context, userID, noteID, email, role string) (*domain.Note, error) {
	if !domain.IsValidCollaboratorRole(role) {
		return nil, apperrors.InvalidInput("role must be viewer or editor")
	}

	note, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsDeleted {
		return nil, apperrors.InvalidInput("trashed notes cannot be shared")
	}
	if !note.CanEdit(userID) {
		return nil, apperrors.Forbidden("you do not have edit access to this note")
	}

	recipient, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NotFound("user", email)
	}
	if recipient.ID == note.UserID {
		return nil, apperrors.InvalidInput("the owner already has full access")
	}

	for i, c := range note.Collaborators {
		if c.UserID == recipient.ID {
			if c.Role == role {
				return note, nil
			}
			if note.UserID != userID {
				return nil, apperrors.Forbidden("only the owner can change a collaborator's role")
			}
			note.Collaborators[i].Role = role
			if err := s.noteRepo.SetCollaborators(ctx, noteID, note.Collaborators); err != nil {
				return nil, fmt.Errorf("update collaborators: %w", err)
			}
			return note, nil
		}
	}

	note.Collaborators = append(note.Collaborators, domain.Collaborator{
		UserID:  recipient.ID,
		Role:    role,
		AddedAt: time.Now().UTC(),
	})

	if err := s.noteRepo.SetCollaborators(ctx, noteID, note.Collaborators); err != nil {
		return nil, fmt.Errorf("update collaborators: %w", err)
	}

	ownerName := ""
	if owner, err := s.userRepo.GetByID(ctx, note.UserID); err == nil {
		ownerName = owner.Name
	}
	data := event.NoteSharedData{
		NoteID:      note.ID,
		NoteTitle:   note.Title,
		OwnerID:     note.UserID,
		OwnerName:   ownerName,
		RecipientID: recipient.ID,
		Role:        role,
	}
	if err := s.producer.PublishNoteShared(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish note.shared event",
			slog.String("note_id", note.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "note shared",
		slog.String("note_id", note.ID),
		slog.String("recipient_id", recipient.ID),
		slog.String("role", role),
	)

	return note, nil
}

// Unshare removes a collaborator. The owner can remove anyone; a
// collaborator can remove themselves.
func (s *NoteService) Unshare(ctx context.Context, userID, noteID, collaboratorID string) (*domain.Note, error) {
	note, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID && collaboratorID != userID {
		return nil, apperrors.Forbidden("only the owner can remove other collaborators")
	}

	kept := make([]domain.Collaborator, 0, len(note.Collaborators))
	found := false
	for _, c := range note.Collaborators {
		if c.UserID == collaboratorID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return nil, apperrors.NotFound("collaborator", collaboratorID)
	}

	note.Collaborators = kept
	if err := s.noteRepo.SetCollaborators(ctx, noteID, kept); err != nil {
		return nil, fmt.Errorf("update collaborators: %w", err)
	}
	return note, nil
}

// CollaboratorDetail is a collaborator entry joined with the user's
// profile, as returned by ListCollaborators.
type CollaboratorDetail struct {
	UserID  string    `json:"userId"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

// ListCollaborators returns the note's collaborators with their user
// details. Any user who can view the note can list them.
func (s *NoteService) ListCollaborators(ctx context.Context, userID, noteID string) ([]CollaboratorDetail, error) {
	note, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	details := make([]CollaboratorDetail, 0, len(note.Collaborators))
	for _, c := range note.Collaborators {
		d := CollaboratorDetail{UserID: c.UserID, Role: c.Role, AddedAt: c.AddedAt}
		user, err := s.userRepo.GetByID(ctx, c.UserID)
		if err == nil {
			d.Email = user.Email
			d.Name = user.Name
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *NoteService) getOwned(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, apperrors.NotFound("note", noteID)
	}
	return note, nil
}

func (s *NoteService) checkFolderOwnership(ctx context.Context, userID, folderID string) error {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return apperrors.InvalidInput("folder does not exist")
	}
	if folder.UserID != userID {
		return apperrors.InvalidInput("folder does not exist")
	}
	return nil
}
