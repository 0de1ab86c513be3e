package repository

import (
	"context"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user and all their owned data.
	Delete(ctx context.Context, id string) error
}

// SessionRepository defines the interface for device session persistence.
type SessionRepository interface {
	// Upsert creates the session, or replaces the existing session for the
	// same (user, device) pair. The session ID of the stored row is returned.
	Upsert(ctx context.Context, session *domain.Session) (string, error)

	// GetByID retrieves a session by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Session, error)

	// GetByRefreshTokenHash retrieves the active session holding the given
	// refresh token hash.
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	// GetByDevice retrieves the user's active session for the given device
	// fingerprint.
	GetByDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error)

	// ListByUserID returns the user's sessions, most recently active first.
	// With activeOnly set, revoked and expired sessions are excluded.
	ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]domain.Session, error)

	// CountByUserID returns the number of active sessions the user has.
	CountByUserID(ctx context.Context, userID string) (int, error)

	// CountByDevice returns the number of the user's active sessions bound
	// to the given device fingerprint.
	CountByDevice(ctx context.Context, userID, deviceID string) (int, error)

	// TouchActivity updates the session's last-activity timestamp.
	TouchActivity(ctx context.Context, id string, at time.Time) error

	// Deactivate marks a single session revoked without removing the row.
	Deactivate(ctx context.Context, id string) error

	// DeactivateByUserID marks all the user's active sessions revoked and
	// returns how many were flipped.
	DeactivateByUserID(ctx context.Context, userID string) (int, error)

	// DeactivateOldest marks the user's least recently active session revoked.
	DeactivateOldest(ctx context.Context, userID string) error

	// Delete removes a single session row.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all session rows for the user. Reserved for
	// account deletion; revocation paths use DeactivateByUserID.
	DeleteByUserID(ctx context.Context, userID string) (int, error)

	// DeleteExpired removes sessions whose refresh tokens have expired and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// BlacklistRepository defines the interface for revoked token persistence.
type BlacklistRepository interface {
	// Add stores a revoked token hash until the token's natural expiry.
	Add(ctx context.Context, token *domain.BlacklistedToken) error

	// Contains reports whether the token hash is currently blacklisted.
	Contains(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes blacklist entries whose tokens have expired and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// LoginAttemptRepository defines the interface for lockout tracking.
type LoginAttemptRepository interface {
	// Get retrieves the attempt record for an email, or nil if none exists.
	Get(ctx context.Context, email string) (*domain.LoginAttempt, error)

	// Upsert creates or replaces the attempt record for the email.
	Upsert(ctx context.Context, attempt *domain.LoginAttempt) error

	// Delete removes the attempt record for the email.
	Delete(ctx context.Context, email string) error
}

// SecurityEventRepository defines the interface for the append-only audit log.
type SecurityEventRepository interface {
	// Record appends a security event.
	Record(ctx context.Context, event *domain.SecurityEvent) error

	// ListByUserID returns the most recent events for a user, newest first.
	ListByUserID(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error)
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	FolderID *string
	Status   *string
	Deleted  bool
}

// TaskRepository defines the interface for task persistence operations.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByUserID(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error

	// SetDeleted flips the soft-delete flag, stamping or clearing deleted_at.
	SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error

	// Delete permanently removes a task.
	Delete(ctx context.Context, id string) error
}

// NoteFilter narrows note listings.
type NoteFilter struct {
	FolderID  *string
	Tag       *string
	Favorites bool
	Deleted   bool
}

// NoteRepository defines the interface for note persistence operations.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	GetByID(ctx context.Context, id string) (*domain.Note, error)

	// ListAccessible returns notes the user owns or collaborates on,
	// pinned notes first.
	ListAccessible(ctx context.Context, userID string, filter NoteFilter) ([]domain.Note, error)

	Update(ctx context.Context, note *domain.Note) error

	// SetCollaborators replaces the note's collaborator list.
	SetCollaborators(ctx context.Context, id string, collaborators []domain.Collaborator) error

	SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// HabitRepository defines the interface for habit persistence operations.
type HabitRepository interface {
	Create(ctx context.Context, habit *domain.Habit) error
	GetByID(ctx context.Context, id string) (*domain.Habit, error)

	// ListByUserID returns the user's own habits, excluding archived ones
	// unless includeArchived is set.
	ListByUserID(ctx context.Context, userID string, includeArchived bool) ([]domain.Habit, error)

	// ListSharedWith returns habits other users have shared with this user.
	ListSharedWith(ctx context.Context, userID string) ([]domain.Habit, error)

	Update(ctx context.Context, habit *domain.Habit) error

	// SetSharedWith replaces the habit's shared-user list.
	SetSharedWith(ctx context.Context, id string, userIDs []string) error

	// Archive soft-deletes the habit, keeping its log history.
	Archive(ctx context.Context, id string) error
}

// HabitLogRepository defines the interface for habit log persistence.
type HabitLogRepository interface {
	// Upsert records the day's completion, replacing any existing log for
	// the same (habit, date).
	Upsert(ctx context.Context, log *domain.HabitLog) error

	// ListByHabit returns logs for a habit within [from, to], oldest first.
	ListByHabit(ctx context.Context, habitID string, from, to time.Time) ([]domain.HabitLog, error)

	// ListByUser returns all the user's logs within [from, to], oldest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.HabitLog, error)

	// Delete removes a single log entry.
	Delete(ctx context.Context, id string) error
}

// FolderRepository defines the interface for folder persistence operations.
type FolderRepository interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByID(ctx context.Context, id string) (*domain.Folder, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.Folder, error)
	Update(ctx context.Context, folder *domain.Folder) error
	Delete(ctx context.Context, id string) error
}

// TeamRepository defines the interface for team persistence operations.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)

	// ListByMember returns teams the user owns or belongs to.
	ListByMember(ctx context.Context, userID string) ([]domain.Team, error)

	Update(ctx context.Context, team *domain.Team) error

	// SetMembers replaces the team's member list.
	SetMembers(ctx context.Context, id string, members []domain.TeamMember) error

	Delete(ctx context.Context, id string) error
}

// NotificationRepository defines the interface for notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// ListByUserID returns the user's notifications, newest first.
	ListByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)

	// CountUnread returns the user's unread notification count.
	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkRead marks a single notification as read.
	MarkRead(ctx context.Context, id string) error

	// MarkAllRead marks all the user's notifications as read and returns how
	// many changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all the user's notifications and returns how
	// many were removed.
	DeleteByUserID(ctx context.Context, userID string) (int, error)
}
