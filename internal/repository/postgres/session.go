package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/pkg/database"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

const sessionColumns = `id, user_id, device_id, device_name, device_type, browser, os, ip_address, user_agent, refresh_token_hash, is_active, last_activity, expires_at, created_at`

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(pool database.DBTX) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert creates the session or replaces the one already bound to the same
// (user, device) pair, so a device never holds two live refresh tokens.
func (r *SessionRepository) Upsert(ctx context.Context, s *domain.Session) (string, error) {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET device_name = EXCLUDED.device_name,
		    device_type = EXCLUDED.device_type,
		    browser = EXCLUDED.browser,
		    os = EXCLUDED.os,
		    ip_address = EXCLUDED.ip_address,
		    user_agent = EXCLUDED.user_agent,
		    refresh_token_hash = EXCLUDED.refresh_token_hash,
		    is_active = EXCLUDED.is_active,
		    last_activity = EXCLUDED.last_activity,
		    expires_at = EXCLUDED.expires_at
		RETURNING id`

	var id string
	err := r.pool.QueryRow(ctx, query,
		s.ID,
		s.UserID,
		s.DeviceID,
		s.DeviceName,
		s.DeviceType,
		s.Browser,
		s.OS,
		s.IPAddress,
		s.UserAgent,
		s.RefreshTokenHash,
		s.IsActive,
		s.LastActivity,
		s.ExpiresAt,
		s.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert session: %w", err)
	}

	return id, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.scanSession(ctx, query, id)
}

// GetByRefreshTokenHash retrieves the active session holding the given token
// hash. Revoked sessions never match, so their refresh tokens stay dead.
func (r *SessionRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_hash = $1 AND is_active = TRUE`
	return r.scanSession(ctx, query, tokenHash)
}

// GetByDevice retrieves the user's active session for the device fingerprint.
func (r *SessionRepository) GetByDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND device_id = $2 AND is_active = TRUE`
	return r.scanSession(ctx, query, userID, deviceID)
}

// ListByUserID returns the user's sessions, most recently active first.
func (r *SessionRepository) ListByUserID(ctx context.Context, userID string, activeOnly bool) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE AND expires_at > NOW()`
	}
	query += ` ORDER BY last_activity DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := scanSessionRow(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	if sessions == nil {
		sessions = []domain.Session{}
	}

	return sessions, nil
}

// CountByUserID returns the number of active sessions the user has.
func (r *SessionRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND is_active = TRUE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// CountByDevice returns how many of the user's active sessions carry the
// fingerprint.
func (r *SessionRepository) CountByDevice(ctx context.Context, userID, deviceID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND device_id = $2 AND is_active = TRUE`,
		userID, deviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count device sessions: %w", err)
	}
	return count, nil
}

// TouchActivity updates the session's last-activity timestamp.
func (r *SessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	ct, err := r.pool.Exec(ctx, `UPDATE sessions SET last_activity = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}
	return nil
}

// Deactivate marks a single session revoked.
func (r *SessionRepository) Deactivate(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}
	return nil
}

// DeactivateByUserID marks all the user's active sessions revoked.
func (r *SessionRepository) DeactivateByUserID(ctx context.Context, userID string) (int, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate user sessions: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// DeactivateOldest marks the user's least recently active session revoked.
func (r *SessionRepository) DeactivateOldest(ctx context.Context, userID string) error {
	query := `
		UPDATE sessions SET is_active = FALSE
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = $1 AND is_active = TRUE
			ORDER BY last_activity ASC
			LIMIT 1
		)`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("deactivate oldest session: %w", err)
	}
	return nil
}

// Delete removes a single session row.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}
	return nil
}

// DeleteByUserID removes all session rows for the user.
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// DeleteExpired removes sessions whose refresh tokens have expired.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *SessionRepository) scanSession(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	var s domain.Session
	err := scanSessionRow(r.pool.QueryRow(ctx, query, args...), &s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

func scanSessionRow(row pgx.Row, s *domain.Session) error {
	return row.Scan(
		&s.ID,
		&s.UserID,
		&s.DeviceID,
		&s.DeviceName,
		&s.DeviceType,
		&s.Browser,
		&s.OS,
		&s.IPAddress,
		&s.UserAgent,
		&s.RefreshTokenHash,
		&s.IsActive,
		&s.LastActivity,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
}
