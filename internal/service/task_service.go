package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

var (
	// ErrTaskNotFound signals an operation on an id with no stored task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrEmptyTitle signals a create or edit with a blank title.
	ErrEmptyTitle = errors.New("title is required")
)

// TaskInput carries caller-supplied fields for creating or editing a task.
type TaskInput struct {
	Title       string
	Description string
	Category    model.Category
	GoalDays    int
}

// TaskService is the surface the presentation layer talks to; it never
// touches the store directly.
type TaskService struct {
	repo *repository.TaskRepository

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewTaskService(repo *repository.TaskRepository) *TaskService {
	return &TaskService{repo: repo, locks: make(map[uint]*sync.Mutex)}
}

// Create persists a new task. Missing category and goal fall back to
// their defaults; the title must be non-blank.
func (s *TaskService) Create(ctx context.Context, input TaskInput, now time.Time) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	task := model.Task{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      model.StatusInProgress,
		Category:    input.Category,
		CreatedAt:   now.UnixMilli(),
		GoalDays:    input.GoalDays,
	}
	if task.Category == "" {
		task.Category = model.CategoryOther
	}
	if task.GoalDays <= 0 {
		task.GoalDays = model.DefaultGoalDays
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Edit replaces a task's caller-editable fields. Status, progress,
// streak and creation time are carried over from the stored record.
func (s *TaskService) Edit(ctx context.Context, id uint, input TaskInput) (*model.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	task.Title = title
	task.Description = strings.TrimSpace(input.Description)
	if input.Category != "" {
		task.Category = input.Category
	}
	if input.GoalDays > 0 {
		task.GoalDays = input.GoalDays
	}

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// GetByID returns (nil, nil) for an unknown id, mirroring the store.
func (s *TaskService) GetByID(ctx context.Context, id uint) (*model.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaskService) ListByStatus(ctx context.Context, status model.Status) ([]model.Task, error) {
	return s.repo.List(ctx, repository.TaskFilter{Status: &status}, repository.OrderCreatedDesc)
}

// RecordProgress applies the once-per-day progress rule to a task.
// Calls are serialized per task id so the at-most-once-per-day
// guarantee holds under concurrent callers; the task state is re-read
// inside the lock, never reused from a stale copy.
func (s *TaskService) RecordProgress(ctx context.Context, id uint, now time.Time) (*model.Task, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	delta, err := PlanProgress(task, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ApplyProgress(ctx, id, delta); err != nil {
		return nil, err
	}

	task.CurrentProgress = delta.CurrentProgress
	task.Streak = delta.Streak
	task.LastProgressDate = &delta.LastProgressDate
	return task, nil
}

// Complete marks a task completed. Progress and streak are untouched;
// completion is independent of reaching the goal.
func (s *TaskService) Complete(ctx context.Context, id uint) error {
	return s.setStatus(ctx, id, model.StatusCompleted)
}

// Reopen puts a completed task back in progress without resetting
// progress or streak.
func (s *TaskService) Reopen(ctx context.Context, id uint) error {
	return s.setStatus(ctx, id, model.StatusInProgress)
}

// Remove deletes the task permanently.
func (s *TaskService) Remove(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) setStatus(ctx context.Context, id uint, status model.Status) error {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *TaskService) lockFor(id uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
