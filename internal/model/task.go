package model

import (
	"time"

	"habit-tracker/internal/civildate"
)

// DefaultGoalDays is the goal length used when a task is created without one.
const DefaultGoalDays = 30

// Task is a habit tracked against a goal number of days. Timestamps are
// stored as milliseconds since epoch; LastProgressDate stays nil until
// the first progress update.
type Task struct {
	ID               uint     `gorm:"primaryKey"`
	Title            string   `gorm:"not null"`
	Description      string   `gorm:"not null;default:''"`
	Status           Status   `gorm:"type:text;not null;default:'inProgress'"`
	Category         Category `gorm:"type:text;not null;default:'other'"`
	CreatedAt        int64    `gorm:"autoCreateTime:milli;not null;default:0"`
	GoalDays         int      `gorm:"not null;default:30"`
	CurrentProgress  int      `gorm:"not null;default:0"`
	LastProgressDate *int64
	Streak           int `gorm:"not null;default:0"`
}

// ProgressDelta covers exactly the fields a progress update may change.
type ProgressDelta struct {
	CurrentProgress  int
	Streak           int
	LastProgressDate int64
}

// CreatedTime returns the creation timestamp as a time.Time.
func (t *Task) CreatedTime() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

// LastProgressTime reports the last progress timestamp, if any.
func (t *Task) LastProgressTime() (time.Time, bool) {
	if t.LastProgressDate == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*t.LastProgressDate), true
}

// ProgressPercentage is CurrentProgress over GoalDays. It returns 0 for
// a non-positive goal instead of dividing by zero, and may exceed 1.0
// since progress is not clamped at the goal.
func (t *Task) ProgressPercentage() float64 {
	if t.GoalDays <= 0 {
		return 0
	}
	return float64(t.CurrentProgress) / float64(t.GoalDays)
}

// ProgressUpdatedToday reports whether progress was already recorded on
// the calendar day of now.
func (t *Task) ProgressUpdatedToday(now time.Time) bool {
	last, ok := t.LastProgressTime()
	if !ok {
		return false
	}
	return civildate.Of(last).Equal(civildate.Of(now))
}
