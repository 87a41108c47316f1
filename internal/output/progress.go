package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rampede/rampede/internal/ramp"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	tracker  *ramp.Tracker
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(tracker *ramp.Tracker, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		tracker:  tracker,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			snap := p.tracker.Snapshot()
			fmt.Fprint(p.writer, "\r"+progressLine(snap, time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

// progressLine renders one status line for the current run phase.
func progressLine(snap ramp.Snapshot, elapsed time.Duration) string {
	rounded := elapsed.Round(time.Second)
	switch snap.Phase {
	case ramp.PhaseWarmUp:
		return fmt.Sprintf("warm-up at %d/min | issued %d/%d | elapsed %s",
			snap.Rate, snap.Issued, snap.Total, rounded)
	case ramp.PhaseLevel:
		return fmt.Sprintf("level %d/%d | rate %d/min | issued %d/%d | elapsed %s",
			snap.LevelIndex+1, snap.LevelCount, snap.Rate, snap.Issued, snap.Total, rounded)
	case ramp.PhaseSettling:
		return fmt.Sprintf("settling | %d/%d levels completed | elapsed %s",
			len(snap.Completed), snap.LevelCount, rounded)
	case ramp.PhaseDone:
		return fmt.Sprintf("done: %s | %d levels completed | elapsed %s",
			snap.Reason, len(snap.Completed), rounded)
	default:
		return fmt.Sprintf("starting | elapsed %s", rounded)
	}
}
