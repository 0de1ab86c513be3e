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
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// TeamRepository implements repository.TeamRepository using PostgreSQL.
// Members are stored as a JSONB array on the team row.
type TeamRepository struct {
	pool database.DBTX
}

// NewTeamRepository creates a new PostgreSQL-backed team repository.
func NewTeamRepository(pool database.DBTX) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// Create inserts a new team into the database.
func (r *TeamRepository) Create(ctx context.Context, t *domain.Team) error {
	membersJSON, err := marshalMembers(t.Members)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO teams (id, owner_id, name, description, members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.Name,
		t.Description,
		membersJSON,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}

	return nil
}

// GetByID retrieves a team by its ID.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	query := `
		SELECT id, owner_id, name, description, members, created_at, updated_at
		FROM teams
		WHERE id = $1`

	var t domain.Team
	err := scanTeamRow(r.pool.QueryRow(ctx, query, id), &t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}

	return &t, nil
}

// ListByMember returns teams the user owns or belongs to.
func (r *TeamRepository) ListByMember(ctx context.Context, userID string) ([]domain.Team, error) {
	member, err := json.Marshal([]map[string]string{{"user_id": userID}})
	if err != nil {
		return nil, fmt.Errorf("marshal member probe: %w", err)
	}

	query := `
		SELECT id, owner_id, name, description, members, created_at, updated_at
		FROM teams
		WHERE owner_id = $1 OR members @> $2::jsonb
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, string(member))
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := scanTeamRow(rows, &t); err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		teams = append(teams, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team rows: %w", err)
	}

	if teams == nil {
		teams = []domain.Team{}
	}

	return teams, nil
}

// Update modifies a team's name and description.
func (r *TeamRepository) Update(ctx context.Context, t *domain.Team) error {
	t.UpdatedAt = time.Now().UTC()

	ct, err := r.pool.Exec(ctx,
		`UPDATE teams SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		t.Name, t.Description, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team", t.ID)
	}

	return nil
}

// SetMembers replaces the team's member list.
func (r *TeamRepository) SetMembers(ctx context.Context, id string, members []domain.TeamMember) error {
	membersJSON, err := marshalMembers(members)
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE teams SET members = $1, updated_at = $2 WHERE id = $3`,
		membersJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set team members: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team", id)
	}

	return nil
}

// Delete removes a team. Tasks linked to it are unlinked by the foreign key.
func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team", id)
	}

	return nil
}

func marshalMembers(members []domain.TeamMember) ([]byte, error) {
	if members == nil {
		members = []domain.TeamMember{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("marshal members: %w", err)
	}
	return data, nil
}

func scanTeamRow(row pgx.Row, t *domain.Team) error {
	var membersJSON []byte
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&t.Description,
		&membersJSON,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if len(membersJSON) > 0 {
		if err := json.Unmarshal(membersJSON, &t.Members); err != nil {
			return fmt.Errorf("unmarshal members: %w", err)
		}
	}

	return nil
}
