package schedule

import (
	"context"
	"sync/atomic"
	"time"
)

// guard is the level watchdog: a single-shot timer that cancels the level's
// shared context if the level has not settled within its deadline. One guard
// per RunLevel invocation; Stop disarms it on the way out so no timer
// outlives its level.
type guard struct {
	timer *time.Timer
	fired atomic.Bool
}

func startGuard(deadline time.Duration, cancel context.CancelFunc) *guard {
	g := &guard{}
	g.timer = time.AfterFunc(deadline, func() {
		g.fired.Store(true)
		cancel()
	})
	return g
}

// Stop disarms the watchdog. Safe to call after it fired.
func (g *guard) Stop() {
	g.timer.Stop()
}

// Fired reports whether the watchdog cancelled the level.
func (g *guard) Fired() bool {
	return g.fired.Load()
}
