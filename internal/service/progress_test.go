package service

import (
	"errors"
	"testing"
	"time"

	"habit-tracker/internal/model"
)

func millisOf(t time.Time) *int64 {
	m := t.UnixMilli()
	return &m
}

func TestPlanProgressFirstEver(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.Local)
	task := &model.Task{CurrentProgress: 0, Streak: 0}

	delta, err := PlanProgress(task, now)
	if err != nil {
		t.Fatalf("PlanProgress failed: %v", err)
	}
	if delta.CurrentProgress != 1 {
		t.Errorf("progress = %d, want 1", delta.CurrentProgress)
	}
	if delta.Streak != 1 {
		t.Errorf("streak = %d, want 1", delta.Streak)
	}
	if delta.LastProgressDate != now.UnixMilli() {
		t.Errorf("last progress date = %d, want %d", delta.LastProgressDate, now.UnixMilli())
	}
}

func TestPlanProgressConsecutiveDay(t *testing.T) {
	now := time.Date(2026, time.March, 14, 0, 5, 0, 0, time.Local)
	// Late-evening update the day before still counts as consecutive.
	task := &model.Task{
		CurrentProgress:  4,
		Streak:           4,
		LastProgressDate: millisOf(time.Date(2026, time.March, 13, 23, 50, 0, 0, time.Local)),
	}

	delta, err := PlanProgress(task, now)
	if err != nil {
		t.Fatalf("PlanProgress failed: %v", err)
	}
	if delta.CurrentProgress != 5 {
		t.Errorf("progress = %d, want 5", delta.CurrentProgress)
	}
	if delta.Streak != 5 {
		t.Errorf("streak = %d, want 5", delta.Streak)
	}
}

func TestPlanProgressGapResetsStreak(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.Local)

	for _, gapDays := range []int{2, 3, 30} {
		task := &model.Task{
			CurrentProgress:  9,
			Streak:           9,
			LastProgressDate: millisOf(now.AddDate(0, 0, -gapDays)),
		}

		delta, err := PlanProgress(task, now)
		if err != nil {
			t.Fatalf("PlanProgress with %d-day gap failed: %v", gapDays, err)
		}
		if delta.Streak != 1 {
			t.Errorf("streak after %d-day gap = %d, want 1", gapDays, delta.Streak)
		}
		if delta.CurrentProgress != 10 {
			t.Errorf("progress after %d-day gap = %d, want 10", gapDays, delta.CurrentProgress)
		}
	}
}

func TestPlanProgressSameDayRejected(t *testing.T) {
	now := time.Date(2026, time.March, 14, 20, 0, 0, 0, time.Local)
	task := &model.Task{
		CurrentProgress:  3,
		Streak:           3,
		LastProgressDate: millisOf(time.Date(2026, time.March, 14, 7, 0, 0, 0, time.Local)),
	}

	delta, err := PlanProgress(task, now)
	if !errors.Is(err, ErrAlreadyUpdatedToday) {
		t.Fatalf("err = %v, want ErrAlreadyUpdatedToday", err)
	}
	if delta != (model.ProgressDelta{}) {
		t.Errorf("rejected update must carry no delta, got %+v", delta)
	}
}

func TestPlanProgressClockMovedBackwards(t *testing.T) {
	// The stored last-progress date is in the future. Treated as a gap:
	// progress still increments, the streak resets to 1.
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.Local)
	task := &model.Task{
		CurrentProgress:  6,
		Streak:           6,
		LastProgressDate: millisOf(now.AddDate(0, 0, 2)),
	}

	delta, err := PlanProgress(task, now)
	if err != nil {
		t.Fatalf("PlanProgress failed: %v", err)
	}
	if delta.Streak != 1 {
		t.Errorf("streak = %d, want 1", delta.Streak)
	}
	if delta.CurrentProgress != 7 {
		t.Errorf("progress = %d, want 7", delta.CurrentProgress)
	}
}

func TestPlanProgressNoClampAtGoal(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.Local)
	task := &model.Task{
		GoalDays:         30,
		CurrentProgress:  30,
		Streak:           30,
		LastProgressDate: millisOf(now.AddDate(0, 0, -1)),
	}

	delta, err := PlanProgress(task, now)
	if err != nil {
		t.Fatalf("PlanProgress failed: %v", err)
	}
	if delta.CurrentProgress != 31 {
		t.Errorf("progress = %d, want 31 (no clamp at goal)", delta.CurrentProgress)
	}
}
