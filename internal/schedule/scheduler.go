package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rampede/rampede/internal/dispatch"
	"github.com/rampede/rampede/internal/outcome"
)

// ErrGlobalTimeout reports that a level's watchdog fired before every
// dispatch settled. It is fatal to the run; callers must not retry the level.
var ErrGlobalTimeout = errors.New("level watchdog deadline exceeded")

// Level is the settled result of one rate level.
type Level struct {
	Rate      int                    `json:"rate"`
	Issued    int                    `json:"issued"`
	Aggregate outcome.LevelAggregate `json:"aggregate"`
	Profile   outcome.LatencyProfile `json:"latency_profile"`
	ErrKinds  map[string]int         `json:"err_kinds,omitempty"`
	Elapsed   time.Duration          `json:"-"`
	ElapsedMs float64                `json:"elapsed_ms"`
}

// Scheduler runs one rate level at a time: it paces batch emission to hit
// the level's target rate across the window, fans dispatches out, joins on
// settlement and reduces the outcomes. Each RunLevel invocation owns its
// timers, pacer and recorder; nothing carries over between levels.
type Scheduler struct {
	opt Options
}

func New(opt Options) *Scheduler {
	opt.normalize()
	return &Scheduler{opt: opt}
}

// RunLevel drives one window's worth of requests at ratePerMinute.
//
// The cadence interval is window/rate and the nominal total is rate: one
// window of traffic, issued in fixed-size concurrent batches, one batch per
// tick. The final batch may overshoot the total by up to BatchSize-1; the
// returned level reflects the requests actually issued.
//
// The aggregate is published only after every dispatch has completed, failed
// or been cancelled. If the watchdog fires first, RunLevel returns
// ErrGlobalTimeout and no level; if the parent context is cancelled, its
// error is returned instead.
func (s *Scheduler) RunLevel(ctx context.Context, ratePerMinute int, spec *dispatch.RequestSpec) (*Level, error) {
	if ratePerMinute <= 0 {
		return nil, fmt.Errorf("target rate must be positive, got %d", ratePerMinute)
	}
	if s.opt.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	interval := s.opt.Window / time.Duration(ratePerMinute)
	total := ratePerMinute

	levelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := startGuard(s.opt.Window*time.Duration(s.opt.TimeoutFactor), cancel)
	defer g.Stop()

	limiter := s.opt.LimiterFactory(interval)
	recorder := outcome.NewRecorder()
	start := time.Now()

	var wg sync.WaitGroup
	issued := 0
	for issued < total {
		if err := limiter.Wait(levelCtx); err != nil {
			// Level context cancelled: the guard fired or the caller
			// gave up. Either way the cadence stops here.
			break
		}
		wg.Add(s.opt.BatchSize)
		for i := 0; i < s.opt.BatchSize; i++ {
			go func() {
				defer wg.Done()
				recorder.Record(s.opt.Dispatcher.Dispatch(levelCtx, spec))
			}()
		}
		issued += s.opt.BatchSize
		if s.opt.OnBatch != nil {
			s.opt.OnBatch(issued, total)
		}
	}
	wg.Wait()

	if g.Fired() {
		return nil, ErrGlobalTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	records := recorder.Records()
	return &Level{
		Rate:      ratePerMinute,
		Issued:    issued,
		Aggregate: outcome.Aggregate(records),
		Profile:   recorder.Profile(),
		ErrKinds:  outcome.ErrKinds(records),
		Elapsed:   elapsed,
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
	}, nil
}
