package ramp

import (
	"sync"
	"time"

	"github.com/rampede/rampede/internal/schedule"
)

// Phase is where a run currently is.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseWarmUp   Phase = "warm-up"
	PhaseLevel    Phase = "level"
	PhaseSettling Phase = "settling"
	PhaseDone     Phase = "done"
)

// Snapshot is a point-in-time copy of run progress for the progress line
// and the live dashboard. Reading it never blocks the run.
type Snapshot struct {
	Phase      Phase
	Rate       int // target rate of the running level (or warm-up rate)
	LevelIndex int // 0-based index into the measured rate list
	LevelCount int
	Issued     int // dispatches launched in the running level
	Total      int // the running level's nominal total
	Completed  []schedule.Level
	Reason     StopReason
	StartedAt  time.Time
}

// Tracker is the shared progress sink: the controller and the scheduler's
// OnBatch hook write to it, reporters poll Snapshot. One per run.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Phase: PhaseIdle, Reason: StopNone}}
}

// NoteBatch records batch launch progress for the running level. Wire it
// into schedule.Options.OnBatch.
func (t *Tracker) NoteBatch(issued, total int) {
	t.mu.Lock()
	t.snap.Issued, t.snap.Total = issued, total
	t.mu.Unlock()
}

// Snapshot returns a copy; the Completed slice is detached from the run.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snap
	snap.Completed = make([]schedule.Level, len(t.snap.Completed))
	copy(snap.Completed, t.snap.Completed)
	return snap
}

func (t *Tracker) start(at time.Time, levelCount int) {
	t.mu.Lock()
	t.snap.StartedAt = at
	t.snap.LevelCount = levelCount
	t.mu.Unlock()
}

func (t *Tracker) beginWarmup(rate int) {
	t.mu.Lock()
	t.snap.Phase = PhaseWarmUp
	t.snap.Rate = rate
	t.snap.Issued, t.snap.Total = 0, rate
	t.mu.Unlock()
}

func (t *Tracker) beginLevel(index, rate int) {
	t.mu.Lock()
	t.snap.Phase = PhaseLevel
	t.snap.LevelIndex = index
	t.snap.Rate = rate
	t.snap.Issued, t.snap.Total = 0, rate
	t.mu.Unlock()
}

func (t *Tracker) endLevel(level *schedule.Level) {
	t.mu.Lock()
	t.snap.Completed = append(t.snap.Completed, *level)
	t.mu.Unlock()
}

func (t *Tracker) settling() {
	t.mu.Lock()
	t.snap.Phase = PhaseSettling
	t.mu.Unlock()
}

func (t *Tracker) finish(reason StopReason) {
	t.mu.Lock()
	t.snap.Phase = PhaseDone
	t.snap.Reason = reason
	t.mu.Unlock()
}
