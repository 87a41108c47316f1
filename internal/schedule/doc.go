// Package schedule paces and settles one rate level of a ramp run.
//
// A level runs exactly one window of traffic at a target rate expressed in
// requests per minute. The scheduler derives a cadence from the target
// (interval = window / rate), then fires a fixed-size batch of concurrent
// dispatches on every tick until one window's worth of requests has been
// issued:
//
//	sched := schedule.New(schedule.Options{Dispatcher: d})
//	level, err := sched.RunLevel(ctx, 400, spec)
//
// Pacing rides on golang.org/x/time/rate: one token per tick, burst 1, with
// the limiter injectable through Options.LimiterFactory so tests can run
// levels unthrottled. Because batches are fixed-size, the last tick may
// overshoot the nominal total by up to BatchSize-1 requests; that bounded
// overshoot is intentional and the settled Level reports what was actually
// issued.
//
// Every level is raced by a watchdog of window x TimeoutFactor. The watchdog
// exists to catch total hangs, not slow responses: when it fires it cancels
// the level's shared context, in-flight dispatches abandon their calls, and
// RunLevel returns ErrGlobalTimeout instead of an aggregate.
package schedule
