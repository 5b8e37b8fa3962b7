package bot

import (
	"fmt"
	"strings"
	"time"

	"habit-tracker/internal/model"
)

const progressBarWidth = 10

// formatTaskLine renders one task as a list entry.
func formatTaskLine(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.ProgressUpdatedToday(now) {
		icon = "✅"
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d %s</b> <i>(%s)</i>\n", icon, task.ID, escape(task.Title), task.Category))
	sb.WriteString(fmt.Sprintf("   %s %d/%d", progressBar(task), task.CurrentProgress, task.GoalDays))
	if task.Streak > 1 {
		sb.WriteString(fmt.Sprintf(" · 🔥 %d", task.Streak))
	}
	if last, ok := task.LastProgressTime(); ok {
		sb.WriteString(fmt.Sprintf(" · last %s", last.Format("2006-01-02")))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", escape(task.Description)))
	}
	sb.WriteString("\n\n")
	return sb.String()
}

// progressBar caps the fill at the goal even though stored progress may
// exceed it.
func progressBar(task model.Task) string {
	ratio := task.ProgressPercentage()
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * progressBarWidth)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", progressBarWidth-filled)
}
