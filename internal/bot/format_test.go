package bot

import (
	"strings"
	"testing"
	"time"

	"habit-tracker/internal/model"
)

func TestFormatTaskLine(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.Local)
	last := time.Date(2026, time.March, 13, 8, 0, 0, 0, time.Local).UnixMilli()

	task := model.Task{
		ID:               3,
		Title:            "Read <books>",
		Description:      "ten pages",
		Category:         model.CategoryStudy,
		GoalDays:         30,
		CurrentProgress:  15,
		Streak:           4,
		LastProgressDate: &last,
	}

	line := formatTaskLine(task, now)

	for _, want := range []string{"#3", "Read &lt;books&gt;", "15/30", "🔥 4", "2026-03-13", "ten pages", "study"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasPrefix(line, "🟢") {
		t.Errorf("line %q should carry the pending icon", line)
	}

	millis := now.UnixMilli()
	task.LastProgressDate = &millis
	line = formatTaskLine(task, now)
	if !strings.HasPrefix(line, "✅") {
		t.Errorf("line %q should carry the done-today icon", line)
	}
}

func TestProgressBarCapsAtGoal(t *testing.T) {
	task := model.Task{GoalDays: 30, CurrentProgress: 45}
	bar := progressBar(task)
	if strings.Contains(bar, "▱") {
		t.Errorf("bar %q should be full when progress exceeds the goal", bar)
	}

	empty := progressBar(model.Task{GoalDays: 0, CurrentProgress: 5})
	if strings.Contains(empty, "▰") {
		t.Errorf("bar %q should be empty for a zero goal", empty)
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("short", 20); got != "short" {
		t.Errorf("shortTitle = %q, want unchanged", got)
	}
	got := shortTitle("a very long habit title that keeps going", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("shortTitle = %q, want 10 runes ending in ellipsis", got)
	}
}
