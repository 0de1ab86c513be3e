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

type noteFixture struct {
	notes   *mockNoteRepository
	folders *mockFolderRepository
	users   *mockUserRepository
	svc     *NoteService
}

func newNoteFixture() *noteFixture {
	f := &noteFixture{
		notes:   new(mockNoteRepository),
		folders: new(mockFolderRepository),
		users:   new(mockUserRepository),
	}
	f.svc = NewNoteService(f.notes, f.folders, f.users, newTestEventProducer(), newTestLogger())
	return f
}

func sampleNote() *domain.Note {
	now := time.Now().UTC()
	return &domain.Note{
		ID:        "note-1",
		UserID:    "user-1",
		Title:     "Meeting notes",
		Content:   "Agenda",
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sharedNote(role string) *domain.Note {
	note := sampleNote()
	note.Collaborators = []domain.Collaborator{
		{UserID: "user-2", Role: role, AddedAt: time.Now().UTC()},
	}
	return note
}

// --- Create Tests ---

func TestNoteCreate_TagsNeverNil(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()

	f.notes.On("Create", ctx, mock.AnythingOfType("*domain.Note")).Return(nil)

	note, err := f.svc.Create(ctx, "user-1", CreateNoteInput{Title: "x"})

	require.NoError(t, err)
	assert.NotNil(t, note.Tags)
	assert.Empty(t, note.Tags)
}

// --- Access Tests ---

func TestNoteGet_CollaboratorCanView(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	got, err := f.svc.Get(ctx, "user-2", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)

	_, err = f.svc.Get(ctx, "user-3", note.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestNoteUpdate_ViewerCannotEdit(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	_, err := f.svc.Update(ctx, "user-2", note.ID, UpdateNoteInput{Content: strPtr("changed")})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestNoteUpdate_EditorCanEdit(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleEditor)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.notes.On("Update", ctx, mock.AnythingOfType("*domain.Note")).Return(nil)

	updated, err := f.svc.Update(ctx, "user-2", note.ID, UpdateNoteInput{Content: strPtr("changed")})
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Content)
}

func TestNoteUpdate_EditorCannotMoveFolders(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleEditor)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	_, err := f.svc.Update(ctx, "user-2", note.ID, UpdateNoteInput{FolderID: strPtr("folder-1")})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// --- Share Tests ---

func TestNoteShare_OwnerInvites(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sampleNote()
	recipient := &domain.User{ID: "user-2", Email: "bob@example.com", Name: "Bob"}

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(recipient, nil)
	f.users.On("GetByID", ctx, "user-1").Return(&domain.User{ID: "user-1", Name: "Alice"}, nil)
	f.notes.On("SetCollaborators", ctx, note.ID, mock.AnythingOfType("[]domain.Collaborator")).Return(nil)

	shared, err := f.svc.Share(ctx, "user-1", note.ID, "bob@example.com", domain.CollaboratorRoleViewer)

	require.NoError(t, err)
	require.Len(t, shared.Collaborators, 1)
	assert.Equal(t, "user-2", shared.Collaborators[0].UserID)
	assert.Equal(t, domain.CollaboratorRoleViewer, shared.Collaborators[0].Role)
}

func TestNoteShare_EditorCanInvite(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleEditor)
	recipient := &domain.User{ID: "user-3", Email: "carol@example.com", Name: "Carol"}

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByEmail", ctx, "carol@example.com").Return(recipient, nil)
	f.users.On("GetByID", ctx, "user-1").Return(&domain.User{ID: "user-1", Name: "Alice"}, nil)
	f.notes.On("SetCollaborators", ctx, note.ID, mock.AnythingOfType("[]domain.Collaborator")).Return(nil)

	shared, err := f.svc.Share(ctx, "user-2", note.ID, "carol@example.com", domain.CollaboratorRoleViewer)

	require.NoError(t, err)
	assert.Len(t, shared.Collaborators, 2)
}

func TestNoteShare_ViewerCannotInvite(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	_, err := f.svc.Share(ctx, "user-2", note.ID, "carol@example.com", domain.CollaboratorRoleViewer)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestNoteShare_OnlyOwnerChangesRoles(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sampleNote()
	note.Collaborators = []domain.Collaborator{
		{UserID: "user-2", Role: domain.CollaboratorRoleEditor},
		{UserID: "user-3", Role: domain.CollaboratorRoleViewer},
	}

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByEmail", ctx, "carol@example.com").Return(&domain.User{ID: "user-3", Email: "carol@example.com"}, nil)

	// An editor trying to promote a viewer is rejected.
	_, err := f.svc.Share(ctx, "user-2", note.ID, "carol@example.com", domain.CollaboratorRoleEditor)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestNoteShare_SameRoleIsNoOp(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(&domain.User{ID: "user-2", Email: "bob@example.com"}, nil)

	_, err := f.svc.Share(ctx, "user-1", note.ID, "bob@example.com", domain.CollaboratorRoleViewer)

	require.NoError(t, err)
	f.notes.AssertNotCalled(t, "SetCollaborators", mock.Anything, mock.Anything, mock.Anything)
}

func TestNoteShare_OwnerAlwaysHasAccess(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sampleNote()

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(&domain.User{ID: "user-1", Email: "alice@example.com"}, nil)

	_, err := f.svc.Share(ctx, "user-1", note.ID, "alice@example.com", domain.CollaboratorRoleViewer)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestNoteShare_InvalidRole(t *testing.T) {
	f := newNoteFixture()

	_, err := f.svc.Share(context.Background(), "user-1", "note-1", "bob@example.com", "admin")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Collaborator Listing Tests ---

func TestNoteListCollaborators_JoinsUserDetails(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleEditor)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.users.On("GetByID", ctx, "user-2").Return(&domain.User{ID: "user-2", Email: "bob@example.com", Name: "Bob"}, nil)

	details, err := f.svc.ListCollaborators(ctx, "user-2", note.ID)

	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "user-2", details[0].UserID)
	assert.Equal(t, "bob@example.com", details[0].Email)
	assert.Equal(t, "Bob", details[0].Name)
	assert.Equal(t, domain.CollaboratorRoleEditor, details[0].Role)
}

func TestNoteListCollaborators_StrangerGetsNotFound(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	_, err := f.svc.ListCollaborators(ctx, "user-9", note.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- Unshare Tests ---

func TestNoteUnshare_CollaboratorRemovesSelf(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleViewer)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)
	f.notes.On("SetCollaborators", ctx, note.ID, mock.AnythingOfType("[]domain.Collaborator")).Return(nil)

	updated, err := f.svc.Unshare(ctx, "user-2", note.ID, "user-2")

	require.NoError(t, err)
	assert.Empty(t, updated.Collaborators)
}

func TestNoteUnshare_CollaboratorCannotRemoveOthers(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sampleNote()
	note.Collaborators = []domain.Collaborator{
		{UserID: "user-2", Role: domain.CollaboratorRoleEditor},
		{UserID: "user-3", Role: domain.CollaboratorRoleViewer},
	}

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	_, err := f.svc.Unshare(ctx, "user-2", note.ID, "user-3")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// --- Trash Tests ---

func TestNoteTrash_CollaboratorCannotTrash(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sharedNote(domain.CollaboratorRoleEditor)

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	err := f.svc.Trash(ctx, "user-2", note.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestNoteListTrash_OwnerOnly(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()

	own := *sampleNote()
	own.IsDeleted = true
	foreign := *sampleNote()
	foreign.ID = "note-2"
	foreign.UserID = "user-9"
	foreign.IsDeleted = true

	f.notes.On("ListAccessible", ctx, "user-1", mock.AnythingOfType("repository.NoteFilter")).
		Return([]domain.Note{own, foreign}, nil)

	notes, err := f.svc.ListTrash(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "note-1", notes[0].ID)
}

func TestNotePurge_RequiresTrash(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := sampleNote()

	f.notes.On("GetByID", ctx, note.ID).Return(note, nil)

	err := f.svc.Purge(ctx, "user-1", note.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
