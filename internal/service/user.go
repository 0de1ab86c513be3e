package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskflowhq/taskflow/internal/auth"
	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// UpdateProfileInput holds the parameters for updating a user profile.
// Nil fields are left untouched.
type UpdateProfileInput struct {
	Name      *string
	Bio       *string
	AvatarURL *string
}

// UserService implements profile management.
type UserService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	logger      *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// GetProfile returns the user's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		user.Name = *input.Name
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	if input.AvatarURL != nil {
		// Clearing the avatar falls back to the Gravatar default.
		if *input.AvatarURL == "" {
			user.AvatarURL = GravatarURL(user.Email)
		} else {
			user.AvatarURL = *input.AvatarURL
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID))

	return user, nil
}

// DeleteAccount permanently removes the user after re-verifying the
// password. Owned data goes with the row via foreign keys.
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for deletion: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return apperrors.Unauthorized("password is incorrect")
	}

	if _, err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions before account deletion",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "account deleted", slog.String("user_id", userID))

	return nil
}

// GravatarURL builds the default avatar for an email address using the
// Gravatar identicon service.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:]))
}
