package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/pkg/database"
)

// BlacklistRepository implements repository.BlacklistRepository using PostgreSQL.
type BlacklistRepository struct {
	pool database.DBTX
}

// NewBlacklistRepository creates a new PostgreSQL-backed token blacklist.
func NewBlacklistRepository(pool database.DBTX) *BlacklistRepository {
	return &BlacklistRepository{pool: pool}
}

// Add stores a revoked token hash. Re-adding an already blacklisted token is
// a no-op, so revoking the same token twice cannot fail a logout.
func (r *BlacklistRepository) Add(ctx context.Context, t *domain.BlacklistedToken) error {
	query := `
		INSERT INTO blacklisted_tokens (id, token_hash, user_id, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.TokenHash,
		t.UserID,
		t.Reason,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert blacklisted token: %w", err)
	}

	return nil
}

// Contains reports whether the token hash is blacklisted and not yet expired.
// Expired entries are treated as absent; the token they guarded can no longer
// pass JWT verification anyway.
func (r *BlacklistRepository) Contains(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blacklisted_tokens WHERE token_hash = $1 AND expires_at > NOW())`,
		tokenHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes blacklist entries whose tokens have expired.
func (r *BlacklistRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM blacklisted_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired blacklist entries: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// LoginAttemptRepository implements repository.LoginAttemptRepository using PostgreSQL.
type LoginAttemptRepository struct {
	pool database.DBTX
}

// NewLoginAttemptRepository creates a new PostgreSQL-backed attempt tracker.
func NewLoginAttemptRepository(pool database.DBTX) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// Get retrieves the attempt record for an email, or nil if none exists.
func (r *LoginAttemptRepository) Get(ctx context.Context, email string) (*domain.LoginAttempt, error) {
	query := `
		SELECT id, email, failed_count, first_failed_at, locked_until, updated_at
		FROM login_attempts
		WHERE email = $1`

	var a domain.LoginAttempt
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&a.ID,
		&a.Email,
		&a.FailedCount,
		&a.FirstFailedAt,
		&a.LockedUntil,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan login attempt: %w", err)
	}

	return &a, nil
}

// Upsert creates or replaces the attempt record for the email.
func (r *LoginAttemptRepository) Upsert(ctx context.Context, a *domain.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (id, email, failed_count, first_failed_at, locked_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET failed_count = EXCLUDED.failed_count,
		    first_failed_at = EXCLUDED.first_failed_at,
		    locked_until = EXCLUDED.locked_until,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Email,
		a.FailedCount,
		a.FirstFailedAt,
		a.LockedUntil,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert login attempt: %w", err)
	}

	return nil
}

// Delete removes the attempt record for the email.
func (r *LoginAttemptRepository) Delete(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete login attempt: %w", err)
	}
	return nil
}

// SecurityEventRepository implements repository.SecurityEventRepository using PostgreSQL.
type SecurityEventRepository struct {
	pool database.DBTX
}

// NewSecurityEventRepository creates a new PostgreSQL-backed audit log.
func NewSecurityEventRepository(pool database.DBTX) *SecurityEventRepository {
	return &SecurityEventRepository{pool: pool}
}

// Record appends a security event.
func (r *SecurityEventRepository) Record(ctx context.Context, e *domain.SecurityEvent) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO security_events (id, user_id, email, event_type, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.Email,
		e.EventType,
		e.IPAddress,
		e.UserAgent,
		metadataJSON,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	return nil
}

// ListByUserID returns the most recent events for a user, newest first.
func (r *SecurityEventRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	query := `
		SELECT id, user_id, email, event_type, ip_address, user_agent, metadata, created_at
		FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var e domain.SecurityEvent
		var metadataJSON []byte
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Email,
			&e.EventType,
			&e.IPAddress,
			&e.UserAgent,
			&metadataJSON,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan security event row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security event rows: %w", err)
	}

	if events == nil {
		events = []domain.SecurityEvent{}
	}

	return events, nil
}
