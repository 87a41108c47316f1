package ramp

import (
	"time"

	"github.com/rampede/rampede/internal/schedule"
)

// StopReason explains why a run ended. It is part of the run's output
// contract: a watchdog abort must be distinguishable from a normal
// latency-degradation stop.
type StopReason string

const (
	StopNone             StopReason = "none"
	StopExhausted        StopReason = "exhausted"
	StopLatencyDegraded  StopReason = "latency-degraded"
	StopFirstLevelFailed StopReason = "first-level-failed"
	StopGlobalTimeout    StopReason = "global-timeout"
	StopInterrupted      StopReason = "interrupted"
)

// RunResult is the ordered outcome of a whole ramp run: one entry per rate
// level that completed, ascending, plus the stop reason. Levels aborted by
// the watchdog are excluded; StoppedRate still names the rate that failed.
type RunResult struct {
	RunID       string           `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	Elapsed     time.Duration    `json:"-"`
	ElapsedMs   float64          `json:"elapsed_ms"`
	Levels      []schedule.Level `json:"levels"`
	StopReason  StopReason       `json:"stop_reason"`
	StoppedRate int              `json:"stopped_rate"`
}

// TopRate returns the highest rate that completed, or 0 when no measured
// level finished.
func (r *RunResult) TopRate() int {
	if len(r.Levels) == 0 {
		return 0
	}
	return r.Levels[len(r.Levels)-1].Rate
}

// Failed reports whether the run ended abnormally rather than by measuring
// its way to a stop condition.
func (r *RunResult) Failed() bool {
	switch r.StopReason {
	case StopGlobalTimeout, StopFirstLevelFailed, StopInterrupted:
		return true
	}
	return false
}
