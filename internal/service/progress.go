package service

import (
	"errors"
	"time"

	"habit-tracker/internal/civildate"
	"habit-tracker/internal/model"
)

// ErrAlreadyUpdatedToday rejects a second progress update within one
// calendar day. It is an expected outcome, not a failure.
var ErrAlreadyUpdatedToday = errors.New("progress already recorded today")

// PlanProgress decides the next progress state for a task as of now. It
// never mutates the task; the returned delta covers exactly the fields
// a progress update may change.
//
// The streak starts at 1 on the first-ever update, extends by one when
// the previous update was exactly the previous calendar day, and resets
// to 1 on any gap. A last-progress date in the future (clock moved
// backwards) is treated as a gap. Progress itself always increments and
// is not clamped at the goal.
func PlanProgress(task *model.Task, now time.Time) (model.ProgressDelta, error) {
	today := civildate.Of(now)

	last, recorded := task.LastProgressTime()
	if recorded && civildate.Of(last).Equal(today) {
		return model.ProgressDelta{}, ErrAlreadyUpdatedToday
	}

	streak := 1
	if recorded && today.DaysSince(civildate.Of(last)) == 1 {
		streak = task.Streak + 1
	}

	return model.ProgressDelta{
		CurrentProgress:  task.CurrentProgress + 1,
		Streak:           streak,
		LastProgressDate: now.UnixMilli(),
	}, nil
}
