package ui

import (
	"testing"

	"github.com/clipforge/clipforge/internal/render"
	"github.com/clipforge/clipforge/internal/timeline"
)

func TestTimelineSummary(t *testing.T) {
	st := timeline.New()
	if got := timelineSummary(st); got != "Timeline: 0 clips, 0:00" {
		t.Errorf("empty = %q", got)
	}

	st.Clips = []timeline.Clip{{ID: "a"}}
	st.Duration = 65.4
	if got := timelineSummary(st); got != "Timeline: 1 clip, 1:05" {
		t.Errorf("one clip = %q", got)
	}
}

func TestExportSummary(t *testing.T) {
	tests := []struct {
		ev   render.Event
		want string
	}{
		{render.Event{Status: render.JobStatusPending}, "Export: starting"},
		{render.Event{Status: render.JobStatusRunning, Progress: 42.7}, "Export: 42%"},
		{render.Event{Status: render.JobStatusCompleted, Progress: 100}, "Export: done"},
		{render.Event{Status: render.JobStatusFailed}, "Export: failed"},
		{render.Event{Status: render.JobStatusCancelled}, "Export: cancelled"},
		{render.Event{}, "Export: idle"},
	}
	for _, tt := range tests {
		if got := exportSummary(tt.ev); got != tt.want {
			t.Errorf("exportSummary(%q) = %q, want %q", tt.ev.Status, got, tt.want)
		}
	}
	if !isRunning(render.JobStatusRunning) || isRunning(render.JobStatusCompleted) {
		t.Error("isRunning misclassifies statuses")
	}
}
