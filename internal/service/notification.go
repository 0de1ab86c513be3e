package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// unreadCountTTL bounds how stale a cached unread count can get if an
// invalidation is lost.
const unreadCountTTL = 5 * time.Minute

// NotificationService stores and serves in-app notifications. It implements
// event.Notifier, so the Kafka consumers deliver into it. The unread count
// is cached in Redis because clients poll it on every page load.
type NotificationService struct {
	repo   repository.NotificationRepository
	cache  *redis.Client
	logger *slog.Logger
}

// NewNotificationService creates a new notification service. A nil cache
// disables caching; every count goes to the database.
func NewNotificationService(repo repository.NotificationRepository, cache *redis.Client, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Notify stores a new notification for its recipient.
func (s *NotificationService) Notify(ctx context.Context, notification *domain.Notification) error {
	if notification.UserID == "" {
		return apperrors.InvalidInput("notification recipient is required")
	}

	notification.ID = uuid.New().String()
	notification.CreatedAt = time.Now().UTC()

	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.invalidateUnreadCount(ctx, notification.UserID)

	s.logger.InfoContext(ctx, "notification delivered",
		slog.String("notification_id", notification.ID),
		slog.String("user_id", notification.UserID),
		slog.String("type", notification.Type),
	)

	return nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.repo.ListByUserID(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the user's unread notification count, served from
// Redis when fresh.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, unreadCountKey(userID)).Result()
		if err == nil {
			if count, convErr := strconv.Atoi(cached); convErr == nil {
				return count, nil
			}
		} else if err != redis.Nil {
			s.logger.WarnContext(ctx, "unread count cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCountKey(userID), count, unreadCountTTL).Err(); err != nil {
			s.logger.WarnContext(ctx, "unread count cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != userID {
		return apperrors.NotFound("notification", notificationID)
	}
	if notification.IsRead {
		return nil
	}

	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	s.invalidateUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead marks every notification the user has as read and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	s.invalidateUnreadCount(ctx, userID)
	return count, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != userID {
		return apperrors.NotFound("notification", notificationID)
	}

	if err := s.repo.Delete(ctx, notificationID); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	if !notification.IsRead {
		s.invalidateUnreadCount(ctx, userID)
	}
	return nil
}

// ClearAll removes every notification the user has and returns how many were
// removed.
func (s *NotificationService) ClearAll(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}

	s.invalidateUnreadCount(ctx, userID)
	return count, nil
}

func (s *NotificationService) invalidateUnreadCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		s.logger.WarnContext(ctx, "unread count cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func unreadCountKey(userID string) string {
	return "taskflow:notifications:unread:" + userID
}
