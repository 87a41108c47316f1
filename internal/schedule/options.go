package schedule

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/rampede/rampede/internal/dispatch"
)

// Defaults for the process-level knobs. They are exposed as configuration;
// the values match the design the tool grew out of.
const (
	DefaultWindow        = 60 * time.Second
	DefaultBatchSize     = 10
	DefaultTimeoutFactor = 200
)

// Options configure a Scheduler.
type Options struct {
	Window        time.Duration       // wall-clock length a level's rate is measured over
	BatchSize     int                 // concurrent dispatches per cadence tick
	TimeoutFactor int                 // watchdog deadline = Window * TimeoutFactor
	Dispatcher    dispatch.Dispatcher // request executor (required)

	// LimiterFactory builds the cadence pacer for one level from the
	// computed tick interval. Optional injection for tests.
	LimiterFactory func(interval time.Duration) *rate.Limiter

	// OnBatch, if set, is called after each batch is launched with the
	// running issued count and the level's nominal total.
	OnBatch func(issued, total int)
}

func (o *Options) normalize() {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.TimeoutFactor <= 0 {
		o.TimeoutFactor = DefaultTimeoutFactor
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(interval time.Duration) *rate.Limiter {
			if interval <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst 1: the first tick fires immediately, the rest pace
			// out at one batch per interval.
			return rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}
