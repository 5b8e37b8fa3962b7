package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-tracker/internal/civildate"
	"habit-tracker/internal/model"
)

// TaskFilter narrows List results. Nil fields are ignored.
type TaskFilter struct {
	Status   *model.Status
	Category *model.Category
	// Incomplete keeps only tasks with current_progress < goal_days.
	Incomplete bool
	// ProgressOn keeps tasks whose last progress update falls on the
	// given calendar day (half-open interval in local time).
	ProgressOn *civildate.Date
}

// TaskOrder selects the List sort order.
type TaskOrder int

const (
	OrderCreatedDesc TaskOrder = iota
	OrderProgressDesc
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create persists the task, assigning an id if it has none. A task
// carrying an existing id replaces that row wholesale.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(task).Error
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetByID returns (nil, nil) when the id is unknown; absence is not an
// error.
func (r *TaskRepository) GetByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find task: %w", err)
	}
}

// Update replaces all fields of the row matching task.ID. Updating a
// missing id affects zero rows and is not reported as an error.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	err := r.db.WithContext(ctx).Model(task).Select("*").Omit("id").Updates(task).Error
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateStatus changes exactly the status column.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id uint, status model.Status) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// ApplyProgress writes a progress delta, touching only the progress,
// streak and last-progress-date columns.
func (r *TaskRepository) ApplyProgress(ctx context.Context, id uint, delta model.ProgressDelta) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).
		Updates(map[string]any{
			"current_progress":   delta.CurrentProgress,
			"streak":             delta.Streak,
			"last_progress_date": delta.LastProgressDate,
		}).Error
	if err != nil {
		return fmt.Errorf("apply progress: %w", err)
	}
	return nil
}

// Delete removes the row; deleting a missing id is a no-op.
func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&model.Task{}, id).Error
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// List returns a freshly materialized slice of tasks matching the
// filter, in the requested order.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter, order TaskOrder) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})

	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Category != nil {
		q = q.Where("category = ?", *filter.Category)
	}
	if filter.Incomplete {
		q = q.Where("current_progress < goal_days")
	}
	if filter.ProgressOn != nil {
		lo := filter.ProgressOn.StartIn(time.Local).UnixMilli()
		hi := filter.ProgressOn.Next().StartIn(time.Local).UnixMilli()
		q = q.Where("last_progress_date >= ? AND last_progress_date < ?", lo, hi)
	}

	switch order {
	case OrderProgressDesc:
		q = q.Order("last_progress_date DESC").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
