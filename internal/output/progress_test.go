package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rampede/rampede/internal/ramp"
	"github.com/rampede/rampede/internal/schedule"
)

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name string
		snap ramp.Snapshot
		want string
	}{
		{
			name: "warm-up",
			snap: ramp.Snapshot{Phase: ramp.PhaseWarmUp, Rate: 500, Issued: 120, Total: 500},
			want: "warm-up at 500/min | issued 120/500 | elapsed 33s",
		},
		{
			name: "running level",
			snap: ramp.Snapshot{Phase: ramp.PhaseLevel, LevelIndex: 2, LevelCount: 5, Rate: 400, Issued: 220, Total: 400},
			want: "level 3/5 | rate 400/min | issued 220/400 | elapsed 33s",
		},
		{
			name: "settling",
			snap: ramp.Snapshot{Phase: ramp.PhaseSettling, LevelCount: 5, Completed: make([]schedule.Level, 2)},
			want: "settling | 2/5 levels completed | elapsed 33s",
		},
		{
			name: "done",
			snap: ramp.Snapshot{Phase: ramp.PhaseDone, Reason: ramp.StopExhausted, Completed: make([]schedule.Level, 5)},
			want: "done: exhausted | 5 levels completed | elapsed 33s",
		},
		{
			name: "idle",
			snap: ramp.Snapshot{Phase: ramp.PhaseIdle},
			want: "starting | elapsed 33s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progressLine(tt.snap, 33*time.Second)
			if got != tt.want {
				t.Errorf("progressLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressReporterBasic(t *testing.T) {
	tracker := ramp.NewTracker()

	var buf bytes.Buffer
	reporter := NewProgressReporter(tracker, 100*time.Millisecond, &buf)

	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}

	reporter.Stop()
}

func TestProgressReporterWritesLines(t *testing.T) {
	tracker := ramp.NewTracker()
	tracker.NoteBatch(40, 100)

	var buf bytes.Buffer
	reporter := NewProgressReporter(tracker, 20*time.Millisecond, &buf)
	reporter.Start()

	time.Sleep(80 * time.Millisecond)
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "\r") {
		t.Error("Expected carriage-return rewrites in progress output")
	}
	if !strings.Contains(output, "elapsed") {
		t.Errorf("Expected elapsed time in progress output, got %q", output)
	}
}

func TestProgressReporterStartIsIdempotent(t *testing.T) {
	tracker := ramp.NewTracker()

	var buf bytes.Buffer
	reporter := NewProgressReporter(tracker, 10*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()

	time.Sleep(30 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()
}
