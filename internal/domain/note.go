package domain

import (
	"time"
)

// Collaborator role constants.
const (
	CollaboratorRoleViewer = "viewer"
	CollaboratorRoleEditor = "editor"
)

// Collaborator is a user granted access to someone else's note.
type Collaborator struct {
	UserID  string    `json:"user_id"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"added_at"`
}

// Note represents a rich-text note with tags, sharing, and soft deletion.
type Note struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Content       string         `json:"content,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Color         string         `json:"color,omitempty"`
	IsPinned      bool           `json:"is_pinned"`
	IsFavorite    bool           `json:"is_favorite"`
	FolderID      *string        `json:"folder_id,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
	IsDeleted     bool           `json:"is_deleted"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RoleOf returns the access level the given user has on this note: "owner",
// a collaborator role, or "" for no access.
func (n *Note) RoleOf(userID string) string {
	if n.UserID == userID {
		return "owner"
	}
	for _, c := range n.Collaborators {
		if c.UserID == userID {
			return c.Role
		}
	}
	return ""
}

// CanEdit reports whether the user may modify the note's content.
func (n *Note) CanEdit(userID string) bool {
	role := n.RoleOf(userID)
	return role == "owner" || role == CollaboratorRoleEditor
}

// CanView reports whether the user may read the note.
func (n *Note) CanView(userID string) bool {
	return n.RoleOf(userID) != ""
}

// IsValidCollaboratorRole checks whether the given string is a known role.
func IsValidCollaboratorRole(r string) bool {
	return r == CollaboratorRoleViewer || r == CollaboratorRoleEditor
}
