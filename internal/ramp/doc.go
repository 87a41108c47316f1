// Package ramp orchestrates a whole benchmark run across its rate levels.
//
// A run is a state machine: warm-up, then one level per entry in the
// ascending rate list, a decision after each completed level, and a settle
// pause between levels. The first measured level becomes the baseline; every
// later level is compared against it:
//
//	ctrl := ramp.New(ramp.Options{
//		Rates:  []int{100, 200, 400, 800},
//		Runner: sched,
//		Spec:   spec,
//	})
//	result, err := ctrl.Run(ctx)
//
// The stop condition lives in [Decide], a pure predicate over
// (baseline, current, timedOut, exhausted), so it can be unit-tested without
// running a live level. The ramp stops on the first of: watchdog timeout
// (StopGlobalTimeout), a baseline without a single 200 (StopFirstLevelFailed),
// rate list exhausted (StopExhausted), or average 200 latency blowing past
// timeoutFactor times the baseline (StopLatencyDegraded). Operator
// interrupts surface as StopInterrupted.
//
// Whatever the reason, Run hands back a [RunResult] with every level that
// completed, in rate order. A [Tracker] carries live progress to the
// progress line and dashboard without blocking the run.
package ramp
