package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskflowhq/taskflow/internal/domain"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

type teamFixture struct {
	teams *mockTeamRepository
	users *mockUserRepository
	svc   *TeamService
}

func newTeamFixture() *teamFixture {
	f := &teamFixture{
		teams: new(mockTeamRepository),
		users: new(mockUserRepository),
	}
	f.svc = NewTeamService(f.teams, f.users, newTestEventProducer(), newTestLogger())
	return f
}

func sampleTeam() *domain.Team {
	now := time.Now().UTC()
	return &domain.Team{
		ID:      "team-1",
		OwnerID: "user-1",
		Name:    "Platform",
		Members: []domain.TeamMember{
			{UserID: "user-1", Role: domain.TeamRoleOwner, JoinedAt: now},
			{UserID: "user-2", Role: domain.TeamRoleMember, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTeamCreate_SeedsOwnerMembership(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()

	f.teams.On("Create", ctx, mock.AnythingOfType("*domain.Team")).Return(nil)

	team, err := f.svc.Create(ctx, "user-1", CreateTeamInput{Name: "Platform"})

	require.NoError(t, err)
	assert.Equal(t, "user-1", team.OwnerID)
	require.Len(t, team.Members, 1)
	assert.Equal(t, domain.TeamRoleOwner, team.Members[0].Role)
}

func TestTeamGet_HiddenFromOutsiders(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)

	_, err := f.svc.Get(ctx, "user-9", team.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTeamUpdate_MemberForbidden(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)

	_, err := f.svc.Update(ctx, "user-2", team.ID, UpdateTeamInput{Name: strPtr("Renamed")})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestTeamAddMember_Success(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()
	recipient := &domain.User{ID: "user-3", Email: "carol@example.com", Name: "Carol"}

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)
	f.users.On("GetByEmail", ctx, "carol@example.com").Return(recipient, nil)
	f.users.On("GetByID", ctx, "user-1").Return(&domain.User{ID: "user-1", Name: "Alice"}, nil)
	f.teams.On("SetMembers", ctx, team.ID, mock.AnythingOfType("[]domain.TeamMember")).Return(nil)

	updated, err := f.svc.AddMember(ctx, "user-1", team.ID, "carol@example.com")

	require.NoError(t, err)
	require.Len(t, updated.Members, 3)
	assert.Equal(t, domain.TeamRoleMember, updated.Members[2].Role)
}

func TestTeamAddMember_Duplicate(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(&domain.User{ID: "user-2", Email: "bob@example.com"}, nil)

	_, err := f.svc.AddMember(ctx, "user-1", team.ID, "bob@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestTeamAddMember_MemberForbidden(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)

	_, err := f.svc.AddMember(ctx, "user-2", team.ID, "carol@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestTeamRemoveMember_OwnerRemovesMember(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)
	f.teams.On("SetMembers", ctx, team.ID, mock.AnythingOfType("[]domain.TeamMember")).Return(nil)

	updated, err := f.svc.RemoveMember(ctx, "user-1", team.ID, "user-2")

	require.NoError(t, err)
	require.Len(t, updated.Members, 1)
	assert.Equal(t, "user-1", updated.Members[0].UserID)
}

func TestTeamRemoveMember_MemberLeaves(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)
	f.teams.On("SetMembers", ctx, team.ID, mock.AnythingOfType("[]domain.TeamMember")).Return(nil)

	_, err := f.svc.RemoveMember(ctx, "user-2", team.ID, "user-2")
	require.NoError(t, err)
}

func TestTeamRemoveMember_MemberCannotRemoveOthers(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()
	team.Members = append(team.Members, domain.TeamMember{UserID: "user-3", Role: domain.TeamRoleMember})

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)

	_, err := f.svc.RemoveMember(ctx, "user-2", team.ID, "user-3")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestTeamRemoveMember_OwnerCannotLeave(t *testing.T) {
	f := newTeamFixture()
	ctx := context.Background()
	team := sampleTeam()

	f.teams.On("GetByID", ctx, team.ID).Return(team, nil)

	_, err := f.svc.RemoveMember(ctx, "user-1", team.ID, "user-1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
