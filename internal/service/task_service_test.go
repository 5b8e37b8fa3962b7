package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

func setupTestService(t *testing.T) *TaskService {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewTaskService(repository.NewTaskRepository(db))
}

func TestCreateAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local)

	task, err := svc.Create(ctx, TaskInput{Title: "  Drink water  "}, now)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Title != "Drink water" {
		t.Errorf("title = %q, want trimmed", task.Title)
	}
	if task.Status != model.StatusInProgress {
		t.Errorf("status = %q, want inProgress", task.Status)
	}
	if task.Category != model.CategoryOther {
		t.Errorf("category = %q, want other", task.Category)
	}
	if task.GoalDays != model.DefaultGoalDays {
		t.Errorf("goal days = %d, want %d", task.GoalDays, model.DefaultGoalDays)
	}
	if task.CreatedAt != now.UnixMilli() {
		t.Errorf("created at = %d, want %d", task.CreatedAt, now.UnixMilli())
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	_, err := svc.Create(ctx, TaskInput{Title: "   "}, time.Now())
	if !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("err = %v, want ErrEmptyTitle", err)
	}
}

func TestRecordProgressUnknownID(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	_, err := svc.RecordProgress(ctx, 99, time.Now())
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

// The full lifecycle from the product rule: progress on day 1, a
// same-day retry, the next day, then a three-day gap.
func TestRecordProgressScenario(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	day1 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	created, err := svc.Create(ctx, TaskInput{Title: "Journal", GoalDays: 30}, day1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id := created.ID

	task, err := svc.RecordProgress(ctx, id, day1)
	if err != nil {
		t.Fatalf("day 1 RecordProgress failed: %v", err)
	}
	if task.CurrentProgress != 1 || task.Streak != 1 {
		t.Errorf("day 1 state = %d/%d, want 1/1", task.CurrentProgress, task.Streak)
	}

	if _, err := svc.RecordProgress(ctx, id, day1.Add(5*time.Hour)); !errors.Is(err, ErrAlreadyUpdatedToday) {
		t.Fatalf("same-day retry err = %v, want ErrAlreadyUpdatedToday", err)
	}

	// The rejection must leave stored state untouched.
	stored, err := svc.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.CurrentProgress != 1 || stored.Streak != 1 {
		t.Errorf("state after rejection = %d/%d, want 1/1", stored.CurrentProgress, stored.Streak)
	}
	if stored.LastProgressDate == nil || *stored.LastProgressDate != day1.UnixMilli() {
		t.Errorf("last progress date changed by rejected update")
	}

	day2 := day1.AddDate(0, 0, 1)
	task, err = svc.RecordProgress(ctx, id, day2)
	if err != nil {
		t.Fatalf("day 2 RecordProgress failed: %v", err)
	}
	if task.CurrentProgress != 2 || task.Streak != 2 {
		t.Errorf("day 2 state = %d/%d, want 2/2", task.CurrentProgress, task.Streak)
	}

	day5 := day1.AddDate(0, 0, 4)
	task, err = svc.RecordProgress(ctx, id, day5)
	if err != nil {
		t.Fatalf("day 5 RecordProgress failed: %v", err)
	}
	if task.CurrentProgress != 3 || task.Streak != 1 {
		t.Errorf("day 5 state = %d/%d, want 3/1 (gap resets streak)", task.CurrentProgress, task.Streak)
	}
}

func TestCompleteAndReopenKeepProgress(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local)

	created, err := svc.Create(ctx, TaskInput{Title: "Pushups"}, now)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.RecordProgress(ctx, created.ID, now); err != nil {
		t.Fatalf("RecordProgress failed: %v", err)
	}

	if err := svc.Complete(ctx, created.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	task, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if task.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", task.Status)
	}
	if task.CurrentProgress != 1 || task.Streak != 1 {
		t.Errorf("progress changed by Complete: %d/%d", task.CurrentProgress, task.Streak)
	}

	if err := svc.Reopen(ctx, created.ID); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	task, err = svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if task.Status != model.StatusInProgress {
		t.Errorf("status = %q, want inProgress", task.Status)
	}
	if task.CurrentProgress != 1 || task.Streak != 1 {
		t.Errorf("progress changed by Reopen: %d/%d", task.CurrentProgress, task.Streak)
	}
}

func TestCompleteUnknownID(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	if err := svc.Complete(ctx, 7); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestEditKeepsProgressAndStatus(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local)

	created, err := svc.Create(ctx, TaskInput{Title: "Old title", GoalDays: 30}, now)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.RecordProgress(ctx, created.ID, now); err != nil {
		t.Fatalf("RecordProgress failed: %v", err)
	}

	edited, err := svc.Edit(ctx, created.ID, TaskInput{
		Title:    "New title",
		Category: model.CategoryStudy,
		GoalDays: 60,
	})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if edited.Title != "New title" || edited.Category != model.CategoryStudy || edited.GoalDays != 60 {
		t.Errorf("edited fields not applied: %+v", edited)
	}
	if edited.CurrentProgress != 1 || edited.Streak != 1 {
		t.Errorf("Edit touched progress: %d/%d", edited.CurrentProgress, edited.Streak)
	}
	if edited.CreatedAt != now.UnixMilli() {
		t.Errorf("Edit touched creation time")
	}
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	now := time.Now()

	first, err := svc.Create(ctx, TaskInput{Title: "First"}, now)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, TaskInput{Title: "Second"}, now); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Complete(ctx, first.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	active, err := svc.ListByStatus(ctx, model.StatusInProgress)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Second" {
		t.Errorf("active = %+v, want only Second", active)
	}

	done, err := svc.ListByStatus(ctx, model.StatusCompleted)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(done) != 1 || done[0].Title != "First" {
		t.Errorf("done = %+v, want only First", done)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	created, err := svc.Create(ctx, TaskInput{Title: "Temp"}, time.Now())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Remove(ctx, created.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := svc.Remove(ctx, created.ID); err != nil {
		t.Fatalf("second Remove should not error: %v", err)
	}
}

// Concurrent same-day calls must record progress exactly once; the
// per-id lock serializes the read-plan-write cycle.
func TestConcurrentRecordProgressOncePerDay(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local)

	created, err := svc.Create(ctx, TaskInput{Title: "Race"}, now)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordProgress(ctx, created.ID, now)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyUpdatedToday):
			rejections++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if rejections != callers-1 {
		t.Errorf("rejections = %d, want %d", rejections, callers-1)
	}

	task, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if task.CurrentProgress != 1 || task.Streak != 1 {
		t.Errorf("stored state = %d/%d, want 1/1", task.CurrentProgress, task.Streak)
	}
}
