package ramp

import (
	"net/http"

	"github.com/rampede/rampede/internal/outcome"
)

// Decision is the verdict of the continue predicate after a completed level.
type Decision struct {
	Continue bool
	Reason   StopReason // StopNone while Continue is true
}

// Decide evaluates whether the ramp may escalate to the next level. It is a
// pure function over the two aggregates and the run flags, so the whole stop
// condition is testable without driving a live level.
//
// The ramp continues only while all of: no watchdog timeout, the baseline
// level saw at least one 200, the just-completed level saw at least one 200,
// and current.avg200/timeoutFactor < baseline.avg200. That last clause is an
// intentionally loose bound: it catches catastrophic latency collapse, not
// moderate degradation. An exhausted rate list stops the ramp normally.
func Decide(baseline, current outcome.LevelAggregate, timeoutFactor int, timedOut, exhausted bool) Decision {
	if timedOut {
		return Decision{Reason: StopGlobalTimeout}
	}

	base, ok := baseline[http.StatusOK]
	if !ok || base.Count == 0 {
		return Decision{Reason: StopFirstLevelFailed}
	}

	if exhausted {
		return Decision{Reason: StopExhausted}
	}

	cur, ok := current[http.StatusOK]
	if !ok || cur.Count == 0 {
		return Decision{Reason: StopLatencyDegraded}
	}
	if timeoutFactor <= 0 {
		timeoutFactor = 1
	}
	if cur.AvgLatencyMs/float64(timeoutFactor) >= base.AvgLatencyMs {
		return Decision{Reason: StopLatencyDegraded}
	}

	return Decision{Continue: true, Reason: StopNone}
}
