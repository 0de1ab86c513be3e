package domain

import (
	"fmt"
	"time"
)

// Notification type constants.
const (
	NotificationTypeNoteShared     = "note_shared"
	NotificationTypeHabitShared    = "habit_shared"
	NotificationTypeHabitMilestone = "habit_milestone"
	NotificationTypeTeamInvite     = "team_invite"
	NotificationTypeTaskAssigned   = "task_assigned"
	NotificationTypeSystem         = "system"
)

// Notification is an in-app message shown to a user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewNoteSharedNotification builds the notification shown to a user when a
// note is shared with them.
func NewNoteSharedNotification(recipientID, sharerName, noteTitle, noteID, role string) *Notification {
	return &Notification{
		UserID:    recipientID,
		Type:      NotificationTypeNoteShared,
		Title:     "Note shared with you",
		Message:   fmt.Sprintf("%s shared the note %q with you as %s", sharerName, noteTitle, role),
		ActionURL: "/notes/" + noteID,
		Metadata:  map[string]any{"note_id": noteID, "role": role},
	}
}

// NewHabitSharedNotification builds the notification shown when a habit is
// shared with a user.
func NewHabitSharedNotification(recipientID, sharerName, habitName, habitID string) *Notification {
	return &Notification{
		UserID:    recipientID,
		Type:      NotificationTypeHabitShared,
		Title:     "Habit shared with you",
		Message:   fmt.Sprintf("%s shared the habit %q with you", sharerName, habitName),
		ActionURL: "/habits/" + habitID,
		Metadata:  map[string]any{"habit_id": habitID},
	}
}

// NewHabitMilestoneNotification celebrates a streak milestone.
func NewHabitMilestoneNotification(userID, habitName, habitID string, streak int) *Notification {
	return &Notification{
		UserID:    userID,
		Type:      NotificationTypeHabitMilestone,
		Title:     "Streak milestone!",
		Message:   fmt.Sprintf("You hit a %d-day streak on %q", streak, habitName),
		ActionURL: "/habits/" + habitID,
		Metadata:  map[string]any{"habit_id": habitID, "streak": streak},
	}
}

// NewTeamInviteNotification builds the notification shown when a user is
// added to a team.
func NewTeamInviteNotification(recipientID, inviterName, teamName, teamID string) *Notification {
	return &Notification{
		UserID:    recipientID,
		Type:      NotificationTypeTeamInvite,
		Title:     "Added to a team",
		Message:   fmt.Sprintf("%s added you to the team %q", inviterName, teamName),
		ActionURL: "/teams/" + teamID,
		Metadata:  map[string]any{"team_id": teamID},
	}
}

// NewTaskAssignedNotification builds the notification shown when a task is
// assigned to a user.
func NewTaskAssignedNotification(recipientID, assignerName, taskTitle, taskID string) *Notification {
	return &Notification{
		UserID:    recipientID,
		Type:      NotificationTypeTaskAssigned,
		Title:     "Task assigned to you",
		Message:   fmt.Sprintf("%s assigned you the task %q", assignerName, taskTitle),
		ActionURL: "/tasks/" + taskID,
		Metadata:  map[string]any{"task_id": taskID},
	}
}
