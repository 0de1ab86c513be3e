package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/repository"
	"github.com/taskflowhq/taskflow/pkg/database"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, folder_id, team_id, assignee_id, is_deleted, deleted_at, created_at, updated_at`

// TaskRepository implements repository.TaskRepository using PostgreSQL.
type TaskRepository struct {
	pool database.DBTX
}

// NewTaskRepository creates a new PostgreSQL-backed task repository.
func NewTaskRepository(pool database.DBTX) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// Create inserts a new task into the database.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueDate,
		t.FolderID,
		t.TeamID,
		t.AssigneeID,
		t.IsDeleted,
		t.DeletedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by its ID, deleted or not.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var t domain.Task
	err := scanTaskRow(r.pool.QueryRow(ctx, query, id), &t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	return &t, nil
}

// ListByUserID returns the user's tasks matching the filter. The Deleted flag
// switches between the active list and the trash.
func (r *TaskRepository) ListByUserID(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	ctx, end := database.TraceQuery(ctx, "ListTasks", "SELECT FROM tasks")

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND is_deleted = $2`
	args := []any{userID, filter.Deleted}

	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		query += fmt.Sprintf(" AND folder_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := scanTaskRow(rows, &t); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}

	if tasks == nil {
		tasks = []domain.Task{}
	}

	return tasks, nil
}

// Update modifies an existing task in the database.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5,
		    folder_id = $6, team_id = $7, assignee_id = $8, updated_at = $9
		WHERE id = $10`

	ct, err := r.pool.Exec(ctx, query,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueDate,
		t.FolderID,
		t.TeamID,
		t.AssigneeID,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("task", t.ID)
	}

	return nil
}

// SetDeleted flips the soft-delete flag, stamping or clearing deleted_at.
func (r *TaskRepository) SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &at
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE tasks SET is_deleted = $1, deleted_at = $2, updated_at = $3 WHERE id = $4`,
		deleted, deletedAt, at, id,
	)
	if err != nil {
		return fmt.Errorf("set task deleted: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("task", id)
	}

	return nil
}

// Delete permanently removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("task", id)
	}

	return nil
}

func scanTaskRow(row pgx.Row, t *domain.Task) error {
	return row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.DueDate,
		&t.FolderID,
		&t.TeamID,
		&t.AssigneeID,
		&t.IsDeleted,
		&t.DeletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}
