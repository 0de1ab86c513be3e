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

type habitFixture struct {
	habits *mockHabitRepository
	logs   *mockHabitLogRepository
	users  *mockUserRepository
	svc    *HabitService
}

func newHabitFixture() *habitFixture {
	f := &habitFixture{
		habits: new(mockHabitRepository),
		logs:   new(mockHabitLogRepository),
		users:  new(mockUserRepository),
	}
	f.svc = NewHabitService(f.habits, f.logs, f.users, newTestEventProducer(), newTestLogger())
	return f
}

func sampleHabit(frequency string, targetDays int) *domain.Habit {
	created := time.Now().UTC().AddDate(0, -3, 0)
	return &domain.Habit{
		ID:         "habit-1",
		UserID:     "user-1",
		Name:       "Morning run",
		Frequency:  frequency,
		TargetDays: targetDays,
		SharedWith: []string{},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// completedLogs builds one completed log per day offset relative to today
// (0 = today, -1 = yesterday, ...).
func completedLogs(habitID string, offsets ...int) []domain.HabitLog {
	today := time.Now().UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	logs := make([]domain.HabitLog, 0, len(offsets))
	for _, off := range offsets {
		logs = append(logs, domain.HabitLog{
			ID:        "log-" + time.Now().Format("150405.000000"),
			HabitID:   habitID,
			UserID:    "user-1",
			Date:      today.AddDate(0, 0, off),
			Completed: true,
		})
	}
	return logs
}

// --- Create Tests ---

func TestHabitCreate_Defaults(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()

	f.habits.On("Create", ctx, mock.AnythingOfType("*domain.Habit")).Return(nil)

	habit, err := f.svc.Create(ctx, "user-1", CreateHabitInput{Name: "Read"})

	require.NoError(t, err)
	assert.Equal(t, domain.HabitFrequencyDaily, habit.Frequency)
	assert.Equal(t, 1, habit.TargetDays)
	assert.NotEmpty(t, habit.ID)
}

func TestHabitCreate_InvalidFrequency(t *testing.T) {
	f := newHabitFixture()

	_, err := f.svc.Create(context.Background(), "user-1", CreateHabitInput{Name: "Read", Frequency: "monthly"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHabitCreate_WeeklyTargetBounds(t *testing.T) {
	f := newHabitFixture()

	_, err := f.svc.Create(context.Background(), "user-1", CreateHabitInput{
		Name:       "Gym",
		Frequency:  domain.HabitFrequencyWeekly,
		TargetDays: 8,
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Update Tests ---

func TestHabitUpdate_FrequencyImmutable(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.habits.On("Update", ctx, mock.AnythingOfType("*domain.Habit")).Return(nil)

	updated, err := f.svc.Update(ctx, "user-1", habit.ID, UpdateHabitInput{Name: strPtr("Evening run")})

	require.NoError(t, err)
	assert.Equal(t, "Evening run", updated.Name)
	assert.Equal(t, domain.HabitFrequencyDaily, updated.Frequency)
}

func TestHabitUpdate_NotOwner(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)

	_, err := f.svc.Update(ctx, "user-2", habit.ID, UpdateHabitInput{Name: strPtr("Stolen")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- Log Tests ---

func TestHabitLog_FutureDateRejected(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)

	_, err := f.svc.Log(ctx, "user-1", habit.ID, LogHabitInput{
		Date:      time.Now().UTC().AddDate(0, 0, 2),
		Completed: true,
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHabitLog_ArchivedRejected(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)
	habit.IsArchived = true

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)

	_, err := f.svc.Log(ctx, "user-1", habit.ID, LogHabitInput{Date: time.Now().UTC(), Completed: true})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHabitLog_TruncatesToDay(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)

	var stored *domain.HabitLog
	f.logs.On("Upsert", ctx, mock.AnythingOfType("*domain.HabitLog")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.HabitLog)
		}).
		Return(nil)

	at := time.Date(2026, 8, 30, 17, 45, 12, 0, time.UTC)
	_, err := f.svc.Log(ctx, "user-1", habit.ID, LogHabitInput{Date: at, Completed: true})

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), stored.Date)
}

// --- Streak Tests ---

func TestStreak_DailyWithToday(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(completedLogs(habit.ID, 0, -1, -2), nil)

	st, err := f.svc.Streak(ctx, "user-1", habit.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, st.Current)
	assert.Equal(t, 3, st.Longest)
	assert.Equal(t, 3, st.TotalCompletions)
}

func TestStreak_DailyTodayNotLoggedYet(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(completedLogs(habit.ID, -1, -2, -3, -4), nil)

	st, err := f.svc.Streak(ctx, "user-1", habit.ID)

	require.NoError(t, err)
	// Today not logged means no current streak, however long the run
	// through yesterday was.
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 4, st.Longest)
}

func TestStreak_DailyBrokenByGap(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(completedLogs(habit.ID, 0, -3, -4, -5, -6), nil)

	st, err := f.svc.Streak(ctx, "user-1", habit.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 4, st.Longest)
}

func TestStreak_DailyIncompleteLogsIgnored(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	logs := completedLogs(habit.ID, 0, -2)
	skipped := completedLogs(habit.ID, -1)
	skipped[0].Completed = false
	logs = append(logs, skipped...)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(logs, nil)

	st, err := f.svc.Streak(ctx, "user-1", habit.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 2, st.TotalCompletions)
}

func TestStreak_WeeklyMeetsTarget(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyWeekly, 2)

	// Two completions in each of the previous two full weeks, none this week.
	today := time.Now().UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	logs := []domain.HabitLog{}
	for _, weekOffset := range []int{-7, -14} {
		week := monday.AddDate(0, 0, weekOffset)
		for _, dayOffset := range []int{0, 2} {
			logs = append(logs, domain.HabitLog{
				HabitID:   habit.ID,
				UserID:    "user-1",
				Date:      week.AddDate(0, 0, dayOffset),
				Completed: true,
			})
		}
	}

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(logs, nil)

	st, err := f.svc.Streak(ctx, "user-1", habit.ID)

	require.NoError(t, err)
	// The incomplete current week does not break the run of past weeks.
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 2, st.Longest)
}

func TestStreak_SharedUserCanView(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)
	habit.SharedWith = []string{"user-2"}

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]domain.HabitLog{}, nil)

	_, err := f.svc.Streak(ctx, "user-2", habit.ID)
	require.NoError(t, err)

	_, err = f.svc.Streak(ctx, "user-3", habit.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- Analytics and Heatmap Tests ---

func TestAnalytics_Empty(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()

	f.habits.On("ListByUserID", ctx, "user-1", false).Return([]domain.Habit{}, nil)

	summary, err := f.svc.Analytics(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalHabits)
	assert.Zero(t, summary.CompletionRate)
	assert.Empty(t, summary.TopStreaks)
}

func TestAnalytics_RatesAndTopStreaks(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("ListByUserID", ctx, "user-1", false).Return([]domain.Habit{*habit}, nil)
	f.logs.On("ListByUser", ctx, "user-1", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(completedLogs(habit.ID, 0, -1, -2), nil)
	f.logs.On("ListByHabit", ctx, habit.ID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(completedLogs(habit.ID, 0, -1, -2), nil)

	summary, err := f.svc.Analytics(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalHabits)
	assert.InDelta(t, 3.0/30.0, summary.CompletionRate, 1e-9)
	assert.InDelta(t, 3.0, summary.AverageStreak, 1e-9)
	require.Len(t, summary.TopStreaks, 1)
	assert.Equal(t, 3, summary.TopStreaks[0].Streak)
}

func TestHeatmap_ZeroFillsEmptyDays(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()

	logs := completedLogs("habit-1", 0, 0, -2)
	f.logs.On("ListByUser", ctx, "user-1", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(logs, nil)

	from := time.Now().UTC().AddDate(0, 0, -6)
	cells, err := f.svc.Heatmap(ctx, "user-1", from, time.Now().UTC())

	require.NoError(t, err)
	// Every day in the range gets a cell, logged or not.
	require.Len(t, cells, 7)
	assert.Equal(t, 0, cells[0].Count)
	assert.Equal(t, 1, cells[4].Count)
	assert.Equal(t, 0, cells[5].Count)
	assert.Equal(t, 2, cells[6].Count)
}

func TestHeatmap_NoLogsStillCoversRange(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()

	f.logs.On("ListByUser", ctx, "user-1", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]domain.HabitLog{}, nil)

	from := time.Now().UTC().AddDate(0, 0, -6)
	cells, err := f.svc.Heatmap(ctx, "user-1", from, time.Now().UTC())

	require.NoError(t, err)
	require.Len(t, cells, 7)
	for _, c := range cells {
		assert.Equal(t, 0, c.Count)
	}
}

func TestHeatmap_InvalidRange(t *testing.T) {
	f := newHabitFixture()

	now := time.Now().UTC()
	_, err := f.svc.Heatmap(context.Background(), "user-1", now, now.AddDate(0, 0, -1))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Share Tests ---

func TestHabitShare_Success(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)
	recipient := &domain.User{ID: "user-2", Email: "bob@example.com", Name: "Bob"}

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(recipient, nil)
	f.users.On("GetByID", ctx, "user-1").Return(&domain.User{ID: "user-1", Name: "Alice"}, nil)
	f.habits.On("SetSharedWith", ctx, habit.ID, []string{"user-2"}).Return(nil)

	shared, err := f.svc.Share(ctx, "user-1", habit.ID, "bob@example.com")

	require.NoError(t, err)
	assert.Contains(t, shared.SharedWith, "user-2")
	f.habits.AssertExpectations(t)
}

func TestHabitShare_SelfRejected(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(&domain.User{ID: "user-1"}, nil)

	_, err := f.svc.Share(ctx, "user-1", habit.ID, "alice@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHabitShare_Idempotent(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)
	habit.SharedWith = []string{"user-2"}

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(&domain.User{ID: "user-2"}, nil)

	shared, err := f.svc.Share(ctx, "user-1", habit.ID, "bob@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"user-2"}, shared.SharedWith)
	f.habits.AssertNotCalled(t, "SetSharedWith", mock.Anything, mock.Anything, mock.Anything)
}

func TestHabitUnshare_UnknownRecipient(t *testing.T) {
	f := newHabitFixture()
	ctx := context.Background()
	habit := sampleHabit(domain.HabitFrequencyDaily, 1)

	f.habits.On("GetByID", ctx, habit.ID).Return(habit, nil)

	_, err := f.svc.Unshare(ctx, "user-1", habit.ID, "user-9")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
