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

// FolderRepository implements repository.FolderRepository using PostgreSQL.
type FolderRepository struct {
	pool database.DBTX
}

// NewFolderRepository creates a new PostgreSQL-backed folder repository.
func NewFolderRepository(pool database.DBTX) *FolderRepository {
	return &FolderRepository{pool: pool}
}

// Create inserts a new folder into the database.
func (r *FolderRepository) Create(ctx context.Context, f *domain.Folder) error {
	query := `
		INSERT INTO folders (id, user_id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		f.ID,
		f.UserID,
		f.Name,
		f.Color,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by its ID.
func (r *FolderRepository) GetByID(ctx context.Context, id string) (*domain.Folder, error) {
	query := `
		SELECT id, user_id, name, color, created_at, updated_at
		FROM folders
		WHERE id = $1`

	var f domain.Folder
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&f.ID,
		&f.UserID,
		&f.Name,
		&f.Color,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan folder: %w", err)
	}

	return &f, nil
}

// ListByUserID returns all folders for the given user, oldest first.
func (r *FolderRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Folder, error) {
	query := `
		SELECT id, user_id, name, color, created_at, updated_at
		FROM folders
		WHERE user_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.Name,
			&f.Color,
			&f.CreatedAt,
			&f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan folder row: %w", err)
		}
		folders = append(folders, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder rows: %w", err)
	}

	if folders == nil {
		folders = []domain.Folder{}
	}

	return folders, nil
}

// Update modifies an existing folder in the database.
func (r *FolderRepository) Update(ctx context.Context, f *domain.Folder) error {
	f.UpdatedAt = time.Now().UTC()

	ct, err := r.pool.Exec(ctx,
		`UPDATE folders SET name = $1, color = $2, updated_at = $3 WHERE id = $4`,
		f.Name, f.Color, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("folder", f.ID)
	}

	return nil
}

// Delete removes a folder. Tasks and notes filed in it are unfiled by the
// ON DELETE SET NULL foreign keys, not deleted.
func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("folder", id)
	}

	return nil
}
