package ramp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rampede/rampede/internal/dispatch"
	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/schedule"
	"github.com/rampede/rampede/internal/tracing"
)

// Defaults for the controller's process-level knobs.
const (
	DefaultWarmUpRate  = 500
	DefaultSettleDelay = 2 * time.Second
)

// LevelRunner runs one rate level to settlement. *schedule.Scheduler is the
// production implementation; tests script their own.
type LevelRunner interface {
	RunLevel(ctx context.Context, ratePerMinute int, spec *dispatch.RequestSpec) (*schedule.Level, error)
}

// Options configure a Controller.
type Options struct {
	Rates         []int         // ascending target rates, one level each
	WarmUpRate    int           // rate of the discarded warm-up level
	SettleDelay   time.Duration // recovery pause between levels
	TimeoutFactor int           // mirrors the scheduler's; feeds the continue predicate
	Runner        LevelRunner
	Spec          *dispatch.RequestSpec
	Tracker       *Tracker     // optional; one is created when nil
	RunID         string       // optional; a ULID is generated when empty
	Tracer        trace.Tracer // optional; level spans are no-ops when nil
}

func (o *Options) normalize() {
	if o.WarmUpRate <= 0 {
		o.WarmUpRate = DefaultWarmUpRate
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.TimeoutFactor <= 0 {
		o.TimeoutFactor = schedule.DefaultTimeoutFactor
	}
	if o.Tracker == nil {
		o.Tracker = NewTracker()
	}
	if o.RunID == "" {
		o.RunID = ulid.Make().String()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("rampede")
	}
}

// rampState is the controller's mutable view of one run: the level index,
// the baseline the stop condition compares against, and how it ended.
type rampState struct {
	index    int
	baseline outcome.LevelAggregate
	stopped  bool
	reason   StopReason
}

// Controller drives a whole run through its states: warm-up, then one level
// per rate with a decision and a settle pause after each, until a stop
// condition fires or the rate list is exhausted.
type Controller struct {
	opt Options
}

func New(opt Options) *Controller {
	opt.normalize()
	return &Controller{opt: opt}
}

// Tracker returns the run's shared progress sink.
func (c *Controller) Tracker() *Tracker {
	return c.opt.Tracker
}

// Run executes the ramp. Stop conditions, the watchdog and operator
// interrupts all end the run normally with a RunResult carrying the reason;
// only misconfiguration comes back as an error.
func (c *Controller) Run(ctx context.Context) (*RunResult, error) {
	if c.opt.Runner == nil {
		return nil, errors.New("level runner is required")
	}
	if len(c.opt.Rates) == 0 {
		return nil, errors.New("rate list must not be empty")
	}

	start := time.Now()
	res := &RunResult{
		RunID:      c.opt.RunID,
		StartedAt:  start.UTC(),
		StopReason: StopNone,
	}
	state := &rampState{reason: StopNone}
	tracker := c.opt.Tracker
	tracker.start(res.StartedAt, len(c.opt.Rates))

	finish := func() (*RunResult, error) {
		res.Elapsed = time.Since(start)
		res.ElapsedMs = float64(res.Elapsed) / float64(time.Millisecond)
		res.StopReason = state.reason
		tracker.finish(state.reason)
		return res, nil
	}

	// Warm-up primes connections and caches; its result is discarded.
	tracker.beginWarmup(c.opt.WarmUpRate)
	if _, err := c.opt.Runner.RunLevel(ctx, c.opt.WarmUpRate, c.opt.Spec); err != nil {
		reason, fatal := stopReasonForError(err)
		if fatal != nil {
			return nil, fmt.Errorf("warm-up at %d/min: %w", c.opt.WarmUpRate, fatal)
		}
		state.stopped = true
		state.reason = reason
		res.StoppedRate = c.opt.WarmUpRate
		return finish()
	}

	for i, rate := range c.opt.Rates {
		state.index = i

		if err := c.settle(ctx); err != nil {
			state.stopped = true
			state.reason = StopInterrupted
			res.StoppedRate = rate
			return finish()
		}

		tracker.beginLevel(i, rate)
		lctx, span := tracing.StartLevelSpan(ctx, c.opt.Tracer, i, rate)
		level, err := c.opt.Runner.RunLevel(lctx, rate, c.opt.Spec)
		if err != nil {
			tracing.EndSpan(span, err)
			reason, fatal := stopReasonForError(err)
			if fatal != nil {
				return nil, fmt.Errorf("level at %d/min: %w", rate, fatal)
			}
			state.stopped = true
			state.reason = reason
			res.StoppedRate = rate
			return finish()
		}
		tracing.EndSpan(span, nil, attribute.Int("rampede.issued", level.Issued))

		res.Levels = append(res.Levels, *level)
		tracker.endLevel(level)
		if i == 0 {
			state.baseline = level.Aggregate
		}

		exhausted := i == len(c.opt.Rates)-1
		if d := Decide(state.baseline, level.Aggregate, c.opt.TimeoutFactor, false, exhausted); !d.Continue {
			state.stopped = true
			state.reason = d.Reason
			res.StoppedRate = rate
			return finish()
		}
	}

	return finish()
}

// settle pauses between levels so the target recovers before the next rate.
func (c *Controller) settle(ctx context.Context) error {
	if c.opt.SettleDelay <= 0 {
		return nil
	}
	c.opt.Tracker.settling()

	timer := time.NewTimer(c.opt.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stopReasonForError maps a level error to a stop reason. Unexpected errors
// are returned as-is and abort Run.
func stopReasonForError(err error) (StopReason, error) {
	switch {
	case errors.Is(err, schedule.ErrGlobalTimeout):
		return StopGlobalTimeout, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StopInterrupted, nil
	default:
		return StopNone, err
	}
}
