package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/repository"
	"github.com/taskflowhq/taskflow/pkg/database"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

const noteColumns = `id, user_id, title, content, tags, color, is_pinned, is_favorite, folder_id, collaborators, is_deleted, deleted_at, created_at, updated_at`

// NoteRepository implements repository.NoteRepository using PostgreSQL.
// Collaborators are stored as a JSONB array on the note row, which keeps the
// permission check a single read.
type NoteRepository struct {
	pool database.DBTX
}

// NewNoteRepository creates a new PostgreSQL-backed note repository.
func NewNoteRepository(pool database.DBTX) *NoteRepository {
	return &NoteRepository{pool: pool}
}

// Create inserts a new note into the database.
func (r *NoteRepository) Create(ctx context.Context, n *domain.Note) error {
	collaboratorsJSON, err := marshalCollaborators(n.Collaborators)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notes (` + noteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Content,
		n.Tags,
		n.Color,
		n.IsPinned,
		n.IsFavorite,
		n.FolderID,
		collaboratorsJSON,
		n.IsDeleted,
		n.DeletedAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	return nil
}

// GetByID retrieves a note by its ID, deleted or not.
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`

	var n domain.Note
	err := scanNoteRow(r.pool.QueryRow(ctx, query, id), &n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}

	return &n, nil
}

// ListAccessible returns notes the user owns or collaborates on, pinned notes
// first, then newest first.
func (r *NoteRepository) ListAccessible(ctx context.Context, userID string, filter repository.NoteFilter) ([]domain.Note, error) {
	ctx, end := database.TraceQuery(ctx, "ListNotes", "SELECT FROM notes")

	member, err := json.Marshal([]map[string]string{{"user_id": userID}})
	if err != nil {
		end(err)
		return nil, fmt.Errorf("marshal collaborator probe: %w", err)
	}

	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE (user_id = $1 OR collaborators @> $2::jsonb) AND is_deleted = $3`
	args := []any{userID, string(member), filter.Deleted}

	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		query += fmt.Sprintf(" AND folder_id = $%d", len(args))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		query += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	if filter.Favorites {
		query += " AND is_favorite = TRUE"
	}
	query += ` ORDER BY is_pinned DESC, updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := scanNoteRow(rows, &n); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}

	if notes == nil {
		notes = []domain.Note{}
	}

	return notes, nil
}

// Update modifies an existing note's content fields. Collaborators are
// replaced through SetCollaborators, not here.
func (r *NoteRepository) Update(ctx context.Context, n *domain.Note) error {
	n.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE notes
		SET title = $1, content = $2, tags = $3, color = $4, is_pinned = $5,
		    is_favorite = $6, folder_id = $7, updated_at = $8
		WHERE id = $9`

	ct, err := r.pool.Exec(ctx, query,
		n.Title,
		n.Content,
		n.Tags,
		n.Color,
		n.IsPinned,
		n.IsFavorite,
		n.FolderID,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", n.ID)
	}

	return nil
}

// SetCollaborators replaces the note's collaborator list.
func (r *NoteRepository) SetCollaborators(ctx context.Context, id string, collaborators []domain.Collaborator) error {
	collaboratorsJSON, err := marshalCollaborators(collaborators)
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE notes SET collaborators = $1, updated_at = $2 WHERE id = $3`,
		collaboratorsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set note collaborators: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", id)
	}

	return nil
}

// SetDeleted flips the soft-delete flag, stamping or clearing deleted_at.
func (r *NoteRepository) SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &at
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE notes SET is_deleted = $1, deleted_at = $2, updated_at = $3 WHERE id = $4`,
		deleted, deletedAt, at, id,
	)
	if err != nil {
		return fmt.Errorf("set note deleted: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", id)
	}

	return nil
}

// Delete permanently removes a note.
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", id)
	}

	return nil
}

func marshalCollaborators(collaborators []domain.Collaborator) ([]byte, error) {
	if collaborators == nil {
		collaborators = []domain.Collaborator{}
	}
	data, err := json.Marshal(collaborators)
	if err != nil {
		return nil, fmt.Errorf("marshal collaborators: %w", err)
	}
	return data, nil
}

func scanNoteRow(row pgx.Row, n *domain.Note) error {
	var collaboratorsJSON []byte
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Content,
		&n.Tags,
		&n.Color,
		&n.IsPinned,
		&n.IsFavorite,
		&n.FolderID,
		&collaboratorsJSON,
		&n.IsDeleted,
		&n.DeletedAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if len(collaboratorsJSON) > 0 {
		if err := json.Unmarshal(collaboratorsJSON, &n.Collaborators); err != nil {
			return fmt.Errorf("unmarshal collaborators: %w", err)
		}
	}

	return nil
}
