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

const habitColumns = `id, user_id, name, description, frequency, target_days, color, icon, is_archived, shared_with, created_at, updated_at`

// HabitRepository implements repository.HabitRepository using PostgreSQL.
type HabitRepository struct {
	pool database.DBTX
}

// NewHabitRepository creates a new PostgreSQL-backed habit repository.
func NewHabitRepository(pool database.DBTX) *HabitRepository {
	return &HabitRepository{pool: pool}
}

// Create inserts a new habit into the database.
func (r *HabitRepository) Create(ctx context.Context, h *domain.Habit) error {
	query := `
		INSERT INTO habits (` + habitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	sharedWith := h.SharedWith
	if sharedWith == nil {
		sharedWith = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		h.ID,
		h.UserID,
		h.Name,
		h.Description,
		h.Frequency,
		h.TargetDays,
		h.Color,
		h.Icon,
		h.IsArchived,
		sharedWith,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}

	return nil
}

// GetByID retrieves a habit by its ID.
func (r *HabitRepository) GetByID(ctx context.Context, id string) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`

	var h domain.Habit
	err := scanHabitRow(r.pool.QueryRow(ctx, query, id), &h)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan habit: %w", err)
	}

	return &h, nil
}

// ListByUserID returns the user's own habits, oldest first.
func (r *HabitRepository) ListByUserID(ctx context.Context, userID string, includeArchived bool) ([]domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1`
	if !includeArchived {
		query += ` AND is_archived = FALSE`
	}
	query += ` ORDER BY created_at ASC`

	return r.listHabits(ctx, query, userID)
}

// ListSharedWith returns habits other users have shared with this user.
func (r *HabitRepository) ListSharedWith(ctx context.Context, userID string) ([]domain.Habit, error) {
	query := `
		SELECT ` + habitColumns + `
		FROM habits
		WHERE $1 = ANY(shared_with) AND is_archived = FALSE
		ORDER BY created_at ASC`

	return r.listHabits(ctx, query, userID)
}

// Update modifies an existing habit in the database.
func (r *HabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	h.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE habits
		SET name = $1, description = $2, frequency = $3, target_days = $4,
		    color = $5, icon = $6, updated_at = $7
		WHERE id = $8`

	ct, err := r.pool.Exec(ctx, query,
		h.Name,
		h.Description,
		h.Frequency,
		h.TargetDays,
		h.Color,
		h.Icon,
		h.UpdatedAt,
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit", h.ID)
	}

	return nil
}

// SetSharedWith replaces the habit's shared-user list.
func (r *HabitRepository) SetSharedWith(ctx context.Context, id string, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE habits SET shared_with = $1, updated_at = $2 WHERE id = $3`,
		userIDs, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set habit shared_with: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit", id)
	}

	return nil
}

// Archive soft-deletes the habit, keeping its log history.
func (r *HabitRepository) Archive(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE habits SET is_archived = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("archive habit: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit", id)
	}

	return nil
}

func (r *HabitRepository) listHabits(ctx context.Context, query string, args ...any) ([]domain.Habit, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		var h domain.Habit
		if err := scanHabitRow(rows, &h); err != nil {
			return nil, fmt.Errorf("scan habit row: %w", err)
		}
		habits = append(habits, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habit rows: %w", err)
	}

	if habits == nil {
		habits = []domain.Habit{}
	}

	return habits, nil
}

func scanHabitRow(row pgx.Row, h *domain.Habit) error {
	return row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Description,
		&h.Frequency,
		&h.TargetDays,
		&h.Color,
		&h.Icon,
		&h.IsArchived,
		&h.SharedWith,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
}

// HabitLogRepository implements repository.HabitLogRepository using PostgreSQL.
type HabitLogRepository struct {
	pool database.DBTX
}

// NewHabitLogRepository creates a new PostgreSQL-backed habit log repository.
func NewHabitLogRepository(pool database.DBTX) *HabitLogRepository {
	return &HabitLogRepository{pool: pool}
}

// Upsert records the day's completion. Logging the same day twice replaces
// the earlier entry, so a day never counts double in streaks.
func (r *HabitLogRepository) Upsert(ctx context.Context, l *domain.HabitLog) error {
	query := `
		INSERT INTO habit_logs (id, habit_id, user_id, log_date, completed, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (habit_id, log_date) DO UPDATE
		SET completed = EXCLUDED.completed,
		    note = EXCLUDED.note`

	_, err := r.pool.Exec(ctx, query,
		l.ID,
		l.HabitID,
		l.UserID,
		l.Date,
		l.Completed,
		l.Note,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert habit log: %w", err)
	}

	return nil
}

// ListByHabit returns logs for a habit within [from, to], oldest first.
func (r *HabitLogRepository) ListByHabit(ctx context.Context, habitID string, from, to time.Time) ([]domain.HabitLog, error) {
	query := `
		SELECT id, habit_id, user_id, log_date, completed, note, created_at
		FROM habit_logs
		WHERE habit_id = $1 AND log_date BETWEEN $2 AND $3
		ORDER BY log_date ASC`

	return r.listLogs(ctx, query, habitID, from, to)
}

// ListByUser returns all the user's logs within [from, to], oldest first.
func (r *HabitLogRepository) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.HabitLog, error) {
	query := `
		SELECT id, habit_id, user_id, log_date, completed, note, created_at
		FROM habit_logs
		WHERE user_id = $1 AND log_date BETWEEN $2 AND $3
		ORDER BY log_date ASC`

	return r.listLogs(ctx, query, userID, from, to)
}

// Delete removes a single log entry.
func (r *HabitLogRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM habit_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete habit log: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit log", id)
	}

	return nil
}

func (r *HabitLogRepository) listLogs(ctx context.Context, query string, args ...any) ([]domain.HabitLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.HabitLog
	for rows.Next() {
		var l domain.HabitLog
		if err := rows.Scan(
			&l.ID,
			&l.HabitID,
			&l.UserID,
			&l.Date,
			&l.Completed,
			&l.Note,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan habit log row: %w", err)
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habit log rows: %w", err)
	}

	if logs == nil {
		logs = []domain.HabitLog{}
	}

	return logs, nil
}
