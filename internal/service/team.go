package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/event"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// CreateTeamInput holds the parameters for creating a team.
type CreateTeamInput struct {
	Name        string
	Description string
}

// UpdateTeamInput holds the parameters for a partial team update.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// TeamService implements team management: CRUD and membership.
type TeamService struct {
	teamRepo repository.TeamRepository
	userRepo repository.UserRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewTeamService creates a new team service.
func NewTeamService(
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *TeamService {
	return &TeamService{
		teamRepo: teamRepo,
		userRepo: userRepo,
		producer: producer,
		logger:   logger,
	}
}

// Create starts a new team with the user as owner.
func (s *TeamService) Create(ctx context.Context, userID string, input CreateTeamInput) (*domain.Team, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Name:        input.Name,
		Description: input.Description,
		Members: []domain.TeamMember{
			{UserID: userID, Role: domain.TeamRoleOwner, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	s.logger.InfoContext(ctx, "team created",
		slog.String("team_id", team.ID),
		slog.String("owner_id", userID),
	)

	return team, nil
}

// Get returns a team the user belongs to.
func (s *TeamService) Get(ctx context.Context, userID, teamID string) (*domain.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(userID) {
		// Hide the team's existence from non-members.
		return nil, apperrors.NotFound("team", teamID)
	}
	return team, nil
}

// List returns the teams the user owns or belongs to.
func (s *TeamService) List(ctx context.Context, userID string) ([]domain.Team, error) {
	teams, err := s.teamRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// Update applies a partial update to a team. Owner only.
func (s *TeamService) Update(ctx context.Context, userID, teamID string, input UpdateTeamInput) (*domain.Team, error) {
	team, err := s.getOwnedTeam(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		team.Name = *input.Name
	}
	if input.Description != nil {
		team.Description = *input.Description
	}

	team.UpdatedAt = time.Now().UTC()

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, fmt.Errorf("update team: %w", err)
	}
	return team, nil
}

// Delete disbands a team. Owner only. Team tasks survive, unassigned from
// the team.
func (s *TeamService) Delete(ctx context.Context, userID, teamID string) error {
	if _, err := s.getOwnedTeam(ctx, userID, teamID); err != nil {
		return err
	}

	if err := s.teamRepo.Delete(ctx, teamID); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}

	s.logger.InfoContext(ctx, "team deleted",
		slog.String("team_id", teamID),
		slog.String("owner_id", userID),
	)
	return nil
}

// AddMember invites a user to the team by email. Owner only.
func (s *TeamService) AddMember(ctx context.Context, userID, teamID, email string) (*domain.Team, error) {
	team, err := s.getOwnedTeam(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NotFound("user", email)
	}
	if team.HasMember(recipient.ID) {
		return nil, apperrors.Conflict("user is already a member of the team")
	}

	team.Members = append(team.Members, domain.TeamMember{
		UserID:   recipient.ID,
		Role:     domain.TeamRoleMember,
		JoinedAt: time.Now().UTC(),
	})

	if err := s.teamRepo.SetMembers(ctx, teamID, team.Members); err != nil {
		return nil, fmt.Errorf("update team members: %w", err)
	}

	ownerName := ""
	if owner, err := s.userRepo.GetByID(ctx, userID); err == nil {
		ownerName = owner.Name
	}
	data := event.TeamMemberAddedData{
		TeamID:      team.ID,
		TeamName:    team.Name,
		OwnerID:     userID,
		OwnerName:   ownerName,
		RecipientID: recipient.ID,
	}
	if err := s.producer.PublishTeamMemberAdded(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish team.member_added event",
			slog.String("team_id", team.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "team member added",
		slog.String("team_id", team.ID),
		slog.String("member_id", recipient.ID),
	)

	return team, nil
}

// RemoveMember removes a member from the team. The owner can remove anyone
// but themselves; a member can leave on their own.
func (s *TeamService) RemoveMember(ctx context.Context, userID, teamID, memberID string) (*domain.Team, error) {
	team, err := s.Get(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if memberID == team.OwnerID {
		return nil, apperrors.InvalidInput("the owner cannot leave their own team")
	}
	if team.OwnerID != userID && memberID != userID {
		return nil, apperrors.Forbidden("only the owner can remove other members")
	}

	kept := make([]domain.TeamMember, 0, len(team.Members))
	found := false
	for _, m := range team.Members {
		if m.UserID == memberID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return nil, apperrors.NotFound("member", memberID)
	}

	team.Members = kept
	if err := s.teamRepo.SetMembers(ctx, teamID, kept); err != nil {
		return nil, fmt.Errorf("update team members: %w", err)
	}
	return team, nil
}

func (s *TeamService) getOwnedTeam(ctx context.Context, userID, teamID string) (*domain.Team, error) {
	team, err := s.Get(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != userID {
		return nil, apperrors.Forbidden("only the team owner can do this")
	}
	return team, nil
}
