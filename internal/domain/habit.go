package domain

import (
	"time"
)

// Habit frequency constants.
const (
	HabitFrequencyDaily  = "daily"
	HabitFrequencyWeekly = "weekly"
)

// Habit represents a recurring routine the user tracks day by day.
// Deleting a habit archives it so its log history survives.
type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   string    `json:"frequency"`
	TargetDays  int       `json:"target_days"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsArchived  bool      `json:"is_archived"`
	SharedWith  []string  `json:"shared_with,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SharedWithUser reports whether the habit is visible to the given user
// through sharing (ownership is checked separately).
func (h *Habit) SharedWithUser(userID string) bool {
	for _, id := range h.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// HabitLog is one day's completion record for a habit. At most one log
// exists per (habit, date).
type HabitLog struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StreakSummary holds computed streak figures for a single habit.
type StreakSummary struct {
	Current          int `json:"current"`
	Longest          int `json:"longest"`
	TotalCompletions int `json:"total_completions"`
}

// HabitStreak pairs a habit with its current streak, for leaderboards.
type HabitStreak struct {
	HabitID string `json:"habit_id"`
	Name    string `json:"name"`
	Streak  int    `json:"streak"`
}

// AnalyticsSummary aggregates habit performance across all of a user's habits.
type AnalyticsSummary struct {
	TotalHabits    int           `json:"total_habits"`
	CompletionRate float64       `json:"completion_rate"`
	AverageStreak  float64       `json:"average_streak"`
	TopStreaks     []HabitStreak `json:"top_streaks"`
}

// HeatmapCell is one day's completion count in a habit heatmap.
type HeatmapCell struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
