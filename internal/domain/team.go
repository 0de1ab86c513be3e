package domain

import (
	"time"
)

// Team member role constants.
const (
	TeamRoleOwner  = "owner"
	TeamRoleMember = "member"
)

// TeamMember is one user's membership in a team.
type TeamMember struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Team is a group of users who can assign tasks to each other.
type Team struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Members     []TeamMember `json:"members,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasMember reports whether the user belongs to the team (the owner counts).
func (t *Team) HasMember(userID string) bool {
	if t.OwnerID == userID {
		return true
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
