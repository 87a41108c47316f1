package ramp_test

import (
	"testing"
	"time"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/ramp"
)

// aggOf builds a single-bucket aggregate with the given per-status average.
func aggOf(code int, count int64, avgMs float64) outcome.LevelAggregate {
	total := avgMs * float64(count)
	return outcome.LevelAggregate{
		code: outcome.StatusStats{
			Count:          count,
			TotalLatency:   time.Duration(total * float64(time.Millisecond)),
			AvgLatency:     time.Duration(avgMs * float64(time.Millisecond)),
			TotalLatencyMs: total,
			AvgLatencyMs:   avgMs,
		},
	}
}

func TestDecide(t *testing.T) {
	healthy := aggOf(200, 100, 50)

	cases := []struct {
		name         string
		baseline     outcome.LevelAggregate
		current      outcome.LevelAggregate
		timedOut     bool
		exhausted    bool
		wantContinue bool
		wantReason   ramp.StopReason
	}{
		{
			name:         "continues while latency holds",
			baseline:     healthy,
			current:      aggOf(200, 100, 9000), // 9000/200 = 45 < 50
			wantContinue: true,
			wantReason:   ramp.StopNone,
		},
		{
			name:       "stops on latency collapse",
			baseline:   healthy,
			current:    aggOf(200, 100, 11000), // 11000/200 = 55 >= 50
			wantReason: ramp.StopLatencyDegraded,
		},
		{
			name:       "boundary counts as degraded",
			baseline:   healthy,
			current:    aggOf(200, 100, 10000), // exactly 50
			wantReason: ramp.StopLatencyDegraded,
		},
		{
			name:       "timeout wins over everything",
			baseline:   healthy,
			current:    healthy,
			timedOut:   true,
			exhausted:  true,
			wantReason: ramp.StopGlobalTimeout,
		},
		{
			name:       "baseline without a 200",
			baseline:   aggOf(503, 10, 50),
			current:    healthy,
			wantReason: ramp.StopFirstLevelFailed,
		},
		{
			name:       "baseline failure beats exhaustion",
			baseline:   aggOf(503, 10, 50),
			current:    aggOf(503, 10, 50),
			exhausted:  true,
			wantReason: ramp.StopFirstLevelFailed,
		},
		{
			name:       "exhausted list stops normally",
			baseline:   healthy,
			current:    aggOf(200, 100, 60),
			exhausted:  true,
			wantReason: ramp.StopExhausted,
		},
		{
			name:       "exhaustion wins over degradation",
			baseline:   healthy,
			current:    aggOf(200, 100, 99999),
			exhausted:  true,
			wantReason: ramp.StopExhausted,
		},
		{
			name:       "current level without a 200 degrades",
			baseline:   healthy,
			current:    aggOf(500, 100, 10),
			wantReason: ramp.StopLatencyDegraded,
		},
		{
			name:         "first level compares against itself",
			baseline:     healthy,
			current:      healthy,
			wantContinue: true,
			wantReason:   ramp.StopNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ramp.Decide(tc.baseline, tc.current, 200, tc.timedOut, tc.exhausted)
			if d.Continue != tc.wantContinue {
				t.Errorf("Continue = %v, want %v", d.Continue, tc.wantContinue)
			}
			if d.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tc.wantReason)
			}
		})
	}
}
