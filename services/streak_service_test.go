package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/syllabus-sync/model"
)

var streakNow = time.Date(2025, time.October, 15, 16, 0, 0, 0, time.UTC)

func daysAgo(n int, hour int) time.Time {
	d := streakNow.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func completedTask(due, done time.Time) model.Task {
	return model.Task{Type: model.TaskTypeAssignment, DueDate: due, Status: model.TaskStatusCompleted, CompletedAt: &done}
}

func pendingTask(due time.Time) model.Task {
	return model.Task{Type: model.TaskTypeAssignment, DueDate: due, Status: model.TaskStatusPending}
}

func TestComputeStreak_NoTasks(t *testing.T) {
	assert.Equal(t, StreakResult{}, ComputeStreak(nil, streakNow))

	exams := []model.Task{{Type: model.TaskTypeExam, DueDate: daysAgo(3, 9)}}
	assert.Equal(t, 0, ComputeStreak(exams, streakNow).Streak)
}

func TestComputeStreak_CompletedYesterdayNothingPending(t *testing.T) {
	tasks := []model.Task{completedTask(daysAgo(1, 17), daysAgo(1, 12))}

	// nothing is ever overdue, so every day back to the bound qualifies
	got := ComputeStreak(tasks, streakNow)
	assert.GreaterOrEqual(t, got.Streak, 2)
	assert.Equal(t, MaxStreakDays, got.Streak)
	require.NotNil(t, got.LastStreakDate)
	assert.Equal(t, daysAgo(0, 0), *got.LastStreakDate)
}

func TestComputeStreak_OverdueTaskBreaksStreak(t *testing.T) {
	tasks := []model.Task{
		{Type: model.TaskTypeAssignment, CreatedAt: daysAgo(10, 8)},
		pendingTask(daysAgo(3, 0)),
		completedTask(daysAgo(1, 23), daysAgo(1, 10)),
	}
	tasks[0].DueDate = daysAgo(20, 0)
	tasks[0].Status = model.TaskStatusCompleted
	done := daysAgo(11, 9)
	tasks[0].CompletedAt = &done

	// today: pending task due 3 days ago is overdue and nothing was completed today
	assert.Equal(t, StreakResult{}, ComputeStreak(tasks, streakNow))

	// as of yesterday, the completion that day qualifies it and the overdue task breaks the day before
	got := ComputeStreak(tasks, daysAgo(1, 20))
	assert.Equal(t, 1, got.Streak)
}

func TestComputeStreak_DueLaterTodayIsNotOverdue(t *testing.T) {
	// the late completion breaks the walk three days back
	tasks := []model.Task{
		completedTask(daysAgo(4, 0), daysAgo(2, 15)),
		pendingTask(daysAgo(0, 23)),
	}
	assert.Equal(t, 3, ComputeStreak(tasks, streakNow).Streak)
}

func TestComputeStreak_OnlyFuturePending(t *testing.T) {
	task := pendingTask(streakNow.AddDate(0, 0, 10))
	assert.Equal(t, MaxStreakDays, ComputeStreak([]model.Task{task}, streakNow).Streak)

	// creation time plays no part in the walk
	task.CreatedAt = streakNow.Add(-time.Hour)
	got := ComputeStreak([]model.Task{task}, streakNow)
	assert.Equal(t, MaxStreakDays, got.Streak)
	require.NotNil(t, got.LastStreakDate)
	assert.Equal(t, daysAgo(0, 0), *got.LastStreakDate)
}

func TestComputeStreak_CompletedLateOnlyCountsFromCompletion(t *testing.T) {
	// due 5 days ago, finished 2 days ago: days 4 and 3 had it overdue
	tasks := []model.Task{completedTask(daysAgo(5, 0), daysAgo(2, 15))}
	assert.Equal(t, 3, ComputeStreak(tasks, streakNow).Streak)
}

func TestComputeStreak_BoundedAt365(t *testing.T) {
	old := streakNow.AddDate(-3, 0, 0)
	tasks := []model.Task{completedTask(old, old)}
	assert.Equal(t, MaxStreakDays, ComputeStreak(tasks, streakNow).Streak)
}

func TestResolveBestStreak(t *testing.T) {
	assert.Equal(t, 5, ResolveBestStreak(3, 5))
	assert.Equal(t, 7, ResolveBestStreak(7, 2))
	assert.Equal(t, 7, ResolveBestStreak(7, 0))
	assert.Equal(t, 0, ResolveBestStreak(365, 0))
	assert.Equal(t, 365, ResolveBestStreak(365, 1))
}

func TestResolveBestStreak_NeverDecreases(t *testing.T) {
	best := 0
	for _, current := range []int{1, 4, 2, 0, 9, 3, 0} {
		next := ResolveBestStreak(best, current)
		assert.GreaterOrEqual(t, next, best)
		best = next
	}
	assert.Equal(t, 9, best)
}

type memTaskSource struct {
	tasks []model.Task
	err   error
}

func (m *memTaskSource) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	return m.tasks, m.err
}

type memStreakStore struct {
	rows  map[uint]*model.UserStreak
	saves int
}

func (m *memStreakStore) Find(ctx context.Context, userID uint) (*model.UserStreak, error) {
	if row, ok := m.rows[userID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStreakStore) Save(ctx context.Context, s *model.UserStreak) error {
	m.saves++
	cp := *s
	m.rows[s.UserID] = &cp
	return nil
}

func TestStreakService_GetStreak(t *testing.T) {
	tasks := &memTaskSource{tasks: []model.Task{completedTask(daysAgo(4, 0), daysAgo(1, 12))}}
	store := &memStreakStore{rows: map[uint]*model.UserStreak{7: {UserID: 7, BestStreak: 5}}}
	svc := NewStreakService(tasks, store, nil)

	stats, err := svc.GetStreak(context.Background(), 7, streakNow)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Streak)
	assert.Equal(t, 5, stats.BestStreak)
	assert.Equal(t, 2, store.rows[7].CurrentStreak)

	// zero tasks: streak 0, best untouched
	tasks.tasks = nil
	stats, err = svc.GetStreak(context.Background(), 7, streakNow)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Streak)
	assert.Equal(t, 5, stats.BestStreak)
}

func TestStreakService_RepairsCorruptedBest(t *testing.T) {
	store := &memStreakStore{rows: map[uint]*model.UserStreak{1: {UserID: 1, BestStreak: 365}}}
	svc := NewStreakService(&memTaskSource{}, store, nil)

	stats, err := svc.GetStreak(context.Background(), 1, streakNow)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.BestStreak)
	assert.Equal(t, 0, store.rows[1].BestStreak)
}

func TestStreakService_NewUserAndErrors(t *testing.T) {
	store := &memStreakStore{rows: map[uint]*model.UserStreak{}}
	svc := NewStreakService(&memTaskSource{tasks: []model.Task{completedTask(daysAgo(2, 0), daysAgo(0, 10))}}, store, nil)

	stats, err := svc.GetStreak(context.Background(), 2, streakNow)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Streak)
	assert.Equal(t, 1, stats.BestStreak)
	assert.Equal(t, 1, store.saves)

	_, err = NewStreakService(&memTaskSource{err: errors.New("db down")}, store, nil).GetStreak(context.Background(), 2, streakNow)
	assert.Error(t, err)
}
