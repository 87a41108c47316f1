package outcome

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder accumulates the outcomes of one rate level in a thread-safe,
// append-only manner. Many dispatch goroutines write concurrently; the
// scheduler reads only after all of them have settled.
type Recorder struct {
	mu         sync.Mutex
	records    []Record
	hist       *hdrhistogram.Histogram
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

// LatencyProfile summarizes the latency distribution of one level. It
// enriches reports; the level aggregate itself stays count/total/avg.
type LatencyProfile struct {
	Min  time.Duration `json:"-"`
	Max  time.Duration `json:"-"`
	Mean time.Duration `json:"-"`
	P50  time.Duration `json:"-"`
	P90  time.Duration `json:"-"`
	P99  time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

func NewRecorder() *Recorder {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Recorder{hist: h}
}

// Record appends one outcome. Safe for concurrent use.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)

	if rec.Latency > 0 {
		us := rec.Latency.Microseconds()
		if us < r.hist.LowestTrackableValue() {
			us = r.hist.LowestTrackableValue()
		}
		if us > r.hist.HighestTrackableValue() {
			us = r.hist.HighestTrackableValue()
		}
		_ = r.hist.RecordValue(us)
	}
	r.sumLatency += rec.Latency

	if r.minLatency == 0 || rec.Latency < r.minLatency {
		r.minLatency = rec.Latency
	}
	if rec.Latency > r.maxLatency {
		r.maxLatency = rec.Latency
	}
}

// Len reports how many outcomes have been recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Profile computes the latency distribution of the recorded outcomes.
func (r *Recorder) Profile() LatencyProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := LatencyProfile{
		Min: r.minLatency,
		Max: r.maxLatency,
	}
	if n := int64(len(r.records)); n > 0 {
		p.Mean = time.Duration(int64(r.sumLatency) / n)
	}
	if r.hist.TotalCount() > 0 {
		p.P50 = time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond
		p.P90 = time.Duration(r.hist.ValueAtQuantile(90)) * time.Microsecond
		p.P99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	p.MinMs = float64(p.Min) / float64(time.Millisecond)
	p.MaxMs = float64(p.Max) / float64(time.Millisecond)
	p.MeanMs = float64(p.Mean) / float64(time.Millisecond)
	p.P50Ms = float64(p.P50) / float64(time.Millisecond)
	p.P90Ms = float64(p.P90) / float64(time.Millisecond)
	p.P99Ms = float64(p.P99) / float64(time.Millisecond)

	return p
}
