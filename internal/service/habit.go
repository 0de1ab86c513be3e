package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/event"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

const dateLayout = "2006-01-02"

// analyticsWindowDays is the lookback window for the completion rate.
const analyticsWindowDays = 30

// CreateHabitInput holds the parameters for creating a habit.
type CreateHabitInput struct {
	Name        string
	Description string
	Frequency   string
	TargetDays  int
	Color       string
	Icon        string
}

// UpdateHabitInput holds the parameters for a partial habit update. Nil
// fields are left untouched.
type UpdateHabitInput struct {
	Name        *string
	Description *string
	TargetDays  *int
	Color       *string
	Icon        *string
}

// LogHabitInput holds the parameters for recording a day's completion.
type LogHabitInput struct {
	Date      time.Time
	Completed bool
	Note      string
}

// HabitService implements habit tracking: CRUD, daily logs, streaks,
// analytics, and sharing.
type HabitService struct {
	habitRepo repository.HabitRepository
	logRepo   repository.HabitLogRepository
	userRepo  repository.UserRepository
	producer  *event.Producer
	logger    *slog.Logger
}

// NewHabitService creates a new habit service.
func NewHabitService(
	habitRepo repository.HabitRepository,
	logRepo repository.HabitLogRepository,
	userRepo repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *HabitService {
	return &HabitService{
		habitRepo: habitRepo,
		logRepo:   logRepo,
		userRepo:  userRepo,
		producer:  producer,
		logger:    logger,
	}
}

// Create adds a new habit for the user.
func (s *HabitService) Create(ctx context.Context, userID string, input CreateHabitInput) (*domain.Habit, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	frequency := input.Frequency
	if frequency == "" {
		frequency = domain.HabitFrequencyDaily
	}
	if frequency != domain.HabitFrequencyDaily && frequency != domain.HabitFrequencyWeekly {
		return nil, apperrors.InvalidInput("frequency must be daily or weekly")
	}

	targetDays := input.TargetDays
	if targetDays == 0 {
		targetDays = 1
	}
	if frequency == domain.HabitFrequencyWeekly && (targetDays < 1 || targetDays > 7) {
		return nil, apperrors.InvalidInput("target days must be between 1 and 7")
	}

	now := time.Now().UTC()
	habit := &domain.Habit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Frequency:   frequency,
		TargetDays:  targetDays,
		Color:       input.Color,
		Icon:        input.Icon,
		SharedWith:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.habitRepo.Create(ctx, habit); err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	s.logger.InfoContext(ctx, "habit created",
		slog.String("habit_id", habit.ID),
		slog.String("user_id", userID),
	)

	return habit, nil
}

// Get returns a habit the user owns or that was shared with them.
func (s *HabitService) Get(ctx context.Context, userID, habitID string) (*domain.Habit, error) {
	habit, err := s.habitRepo.GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID && !habit.SharedWithUser(userID) {
		return nil, apperrors.NotFound("habit", habitID)
	}
	return habit, nil
}

// List returns the user's own habits.
func (s *HabitService) List(ctx context.Context, userID string, includeArchived bool) ([]domain.Habit, error) {
	habits, err := s.habitRepo.ListByUserID(ctx, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// ListShared returns habits other users have shared with this user.
func (s *HabitService) ListShared(ctx context.Context, userID string) ([]domain.Habit, error) {
	habits, err := s.habitRepo.ListSharedWith(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared habits: %w", err)
	}
	return habits, nil
}

// Update applies a partial update to a habit. Owner only; the frequency is
// fixed at creation so streak history stays meaningful.
func (s *HabitService) Update(ctx context.Context, userID, habitID string, input UpdateHabitInput) (*domain.Habit, error) {
	habit, err := s.getOwned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		habit.Name = *input.Name
	}
	if input.Description != nil {
		habit.Description = *input.Description
	}
	if input.TargetDays != nil {
		if habit.Frequency == domain.HabitFrequencyWeekly && (*input.TargetDays < 1 || *input.TargetDays > 7) {
			return nil, apperrors.InvalidInput("target days must be between 1 and 7")
		}
		habit.TargetDays = *input.TargetDays
	}
	if input.Color != nil {
		habit.Color = *input.Color
	}
	if input.Icon != nil {
		habit.Icon = *input.Icon
	}

	habit.UpdatedAt = time.Now().UTC()

	if err := s.habitRepo.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return habit, nil
}

// Archive retires a habit, keeping its log history.
func (s *HabitService) Archive(ctx context.Context, userID, habitID string) error {
	if _, err := s.getOwned(ctx, userID, habitID); err != nil {
		return err
	}
	if err := s.habitRepo.Archive(ctx, habitID); err != nil {
		return fmt.Errorf("archive habit: %w", err)
	}
	return nil
}

// Log records (or corrects) one day's completion. Future dates are rejected.
func (s *HabitService) Log(ctx context.Context, userID, habitID string, input LogHabitInput) (*domain.HabitLog, error) {
	habit, err := s.getOwned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if habit.IsArchived {
		return nil, apperrors.InvalidInput("archived habits cannot be logged")
	}

	day := truncateToDay(input.Date)
	today := truncateToDay(time.Now().UTC())
	if day.After(today) {
		return nil, apperrors.InvalidInput("cannot log a future date")
	}

	log := &domain.HabitLog{
		ID:        uuid.New().String(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      day,
		Completed: input.Completed,
		Note:      input.Note,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.logRepo.Upsert(ctx, log); err != nil {
		return nil, fmt.Errorf("upsert habit log: %w", err)
	}

	return log, nil
}

// Unlog removes the log entry for a given day, if any.
func (s *HabitService) Unlog(ctx context.Context, userID, habitID string, date time.Time) error {
	if _, err := s.getOwned(ctx, userID, habitID); err != nil {
		return err
	}

	day := truncateToDay(date)
	logs, err := s.logRepo.ListByHabit(ctx, habitID, day, day)
	if err != nil {
		return fmt.Errorf("find habit log: %w", err)
	}
	for _, l := range logs {
		if err := s.logRepo.Delete(ctx, l.ID); err != nil {
			return fmt.Errorf("delete habit log: %w", err)
		}
	}
	return nil
}

// ListLogs returns a habit's logs for one calendar month, oldest first.
// Accessible to the owner and anyone the habit is shared with.
func (s *HabitService) ListLogs(ctx context.Context, userID, habitID string, year int, month time.Month) ([]domain.HabitLog, error) {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return nil, err
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	logs, err := s.logRepo.ListByHabit(ctx, habitID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	return logs, nil
}

// Streak computes the habit's current and longest streaks. Accessible to the
// owner and anyone the habit is shared with.
func (s *HabitService) Streak(ctx context.Context, userID, habitID string) (*domain.StreakSummary, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	return s.computeStreak(ctx, habit)
}

// Analytics aggregates the user's habit performance: completion rate over
// the last 30 days, average current streak, and the top streaks.
func (s *HabitService) Analytics(ctx context.Context, userID string) (*domain.AnalyticsSummary, error) {
	habits, err := s.habitRepo.ListByUserID(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	summary := &domain.AnalyticsSummary{
		TotalHabits: len(habits),
		TopStreaks:  []domain.HabitStreak{},
	}
	if len(habits) == 0 {
		return summary, nil
	}

	today := truncateToDay(time.Now().UTC())
	windowStart := today.AddDate(0, 0, -(analyticsWindowDays - 1))

	logs, err := s.logRepo.ListByUser(ctx, userID, windowStart, today)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	completed := 0
	for _, l := range logs {
		if l.Completed {
			completed++
		}
	}
	summary.CompletionRate = float64(completed) / float64(len(habits)*analyticsWindowDays)
	if summary.CompletionRate > 1 {
		summary.CompletionRate = 1
	}

	streakSum := 0
	streaks := make([]domain.HabitStreak, 0, len(habits))
	for i := range habits {
		st, err := s.computeStreak(ctx, &habits[i])
		if err != nil {
			return nil, err
		}
		streakSum += st.Current
		streaks = append(streaks, domain.HabitStreak{
			HabitID: habits[i].ID,
			Name:    habits[i].Name,
			Streak:  st.Current,
		})
	}
	summary.AverageStreak = float64(streakSum) / float64(len(habits))

	sort.Slice(streaks, func(i, j int) bool { return streaks[i].Streak > streaks[j].Streak })
	if len(streaks) > 5 {
		streaks = streaks[:5]
	}
	summary.TopStreaks = streaks

	return summary, nil
}

// Heatmap returns per-day completion counts across all the user's habits for
// the [from, to] range.
func (s *HabitService) Heatmap(ctx context.Context, userID string, from, to time.Time) ([]domain.HeatmapCell, error) {
	from = truncateToDay(from)
	to = truncateToDay(to)
	if to.Before(from) {
		return nil, apperrors.InvalidInput("invalid date range")
	}

	logs, err := s.logRepo.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	counts := make(map[string]int)
	for _, l := range logs {
		if l.Completed {
			counts[l.Date.Format(dateLayout)]++
		}
	}

	// One cell per day in the range; days without completions stay at zero.
	cells := make([]domain.HeatmapCell, 0, int(to.Sub(from).Hours()/24)+1)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		cells = append(cells, domain.HeatmapCell{Date: key, Count: counts[key]})
	}
	return cells, nil
}

// Share makes the habit visible (read-only) to another user by email.
func (s *HabitService) Share(ctx context.Context, userID, habitID, email string) (*domain.Habit, error) {
	habit, err := s.getOwned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NotFound("user", email)
	}
	if recipient.ID == userID {
		return nil, apperrors.InvalidInput("cannot share a habit with yourself")
	}
	if habit.SharedWithUser(recipient.ID) {
		return habit, nil
	}

	habit.SharedWith = append(habit.SharedWith, recipient.ID)
	if err := s.habitRepo.SetSharedWith(ctx, habitID, habit.SharedWith); err != nil {
		return nil, fmt.Errorf("update shared users: %w", err)
	}

	ownerName := ""
	if owner, err := s.userRepo.GetByID(ctx, userID); err == nil {
		ownerName = owner.Name
	}
	data := event.HabitSharedData{
		HabitID:     habit.ID,
		HabitName:   habit.Name,
		OwnerID:     userID,
		OwnerName:   ownerName,
		RecipientID: recipient.ID,
	}
	if err := s.producer.PublishHabitShared(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish habit.shared event",
			slog.String("habit_id", habit.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "habit shared",
		slog.String("habit_id", habit.ID),
		slog.String("recipient_id", recipient.ID),
	)

	return habit, nil
}

// Unshare revokes another user's view of the habit.
func (s *HabitService) Unshare(ctx context.Context, userID, habitID, recipientID string) (*domain.Habit, error) {
	habit, err := s.getOwned(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(habit.SharedWith))
	found := false
	for _, id := range habit.SharedWith {
		if id == recipientID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return nil, apperrors.NotFound("shared user", recipientID)
	}

	habit.SharedWith = kept
	if err := s.habitRepo.SetSharedWith(ctx, habitID, kept); err != nil {
		return nil, fmt.Errorf("update shared users: %w", err)
	}
	return habit, nil
}

func (s *HabitService) getOwned(ctx context.Context, userID, habitID string) (*domain.Habit, error) {
	habit, err := s.habitRepo.GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, apperrors.NotFound("habit", habitID)
	}
	return habit, nil
}

func (s *HabitService) computeStreak(ctx context.Context, habit *domain.Habit) (*domain.StreakSummary, error) {
	today := truncateToDay(time.Now().UTC())
	from := truncateToDay(habit.CreatedAt)
	if from.After(today) {
		from = today
	}

	logs, err := s.logRepo.ListByHabit(ctx, habit.ID, from, today)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	days := make(map[string]bool)
	total := 0
	for _, l := range logs {
		if l.Completed {
			days[l.Date.Format(dateLayout)] = true
			total++
		}
	}

	summary := &domain.StreakSummary{TotalCompletions: total}
	if habit.Frequency == domain.HabitFrequencyWeekly {
		summary.Current = weeklyCurrentStreak(days, habit.TargetDays, today)
		summary.Longest = weeklyLongestStreak(days, habit.TargetDays, from, today)
	} else {
		summary.Current = dailyCurrentStreak(days, today)
		summary.Longest = dailyLongestStreak(days)
	}

	return summary, nil
}

// dailyCurrentStreak walks back from today counting consecutive completed
// days. Today not yet logged means the streak is zero.
func dailyCurrentStreak(days map[string]bool, today time.Time) int {
	streak := 0
	for day := today; days[day.Format(dateLayout)]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// dailyLongestStreak scans all completed days in order and tracks the longest
// run of consecutive dates.
func dailyLongestStreak(days map[string]bool) int {
	if len(days) == 0 {
		return 0
	}

	dates := make([]time.Time, 0, len(days))
	for key := range days {
		d, err := time.Parse(dateLayout, key)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == 24*time.Hour {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return longest
}

// weeklyCurrentStreak counts consecutive weeks, walking back from the current
// week, in which at least targetDays completions were logged. The current
// week only counts once it reaches the target; an incomplete current week
// does not break the streak.
func weeklyCurrentStreak(days map[string]bool, targetDays int, today time.Time) int {
	week := weekStart(today)
	streak := 0

	if weekCompletions(days, week) >= targetDays {
		streak++
	}
	week = week.AddDate(0, 0, -7)

	for weekCompletions(days, week) >= targetDays {
		streak++
		week = week.AddDate(0, 0, -7)
	}
	return streak
}

// weeklyLongestStreak scans every week in [from, to] and tracks the longest
// run of weeks meeting the target.
func weeklyLongestStreak(days map[string]bool, targetDays int, from, to time.Time) int {
	longest, run := 0, 0
	for week := weekStart(from); !week.After(to); week = week.AddDate(0, 0, 7) {
		if weekCompletions(days, week) >= targetDays {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

func weekCompletions(days map[string]bool, week time.Time) int {
	count := 0
	for i := 0; i < 7; i++ {
		if days[week.AddDate(0, 0, i).Format(dateLayout)] {
			count++
		}
	}
	return count
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	t = truncateToDay(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
