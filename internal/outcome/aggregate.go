package outcome

import (
	"sort"
	"strconv"
	"time"
)

// StatusStats aggregates the outcomes that shared one status code.
type StatusStats struct {
	Count        int64         `json:"count"`
	TotalLatency time.Duration `json:"-"`
	AvgLatency   time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	TotalLatencyMs float64 `json:"total_latency_ms"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}

// LevelAggregate maps a status code (StatusNone for requests that never
// reached a server) to the aggregated stats of its outcomes. It is derived
// once per level, after every dispatch has settled, and never mutated.
type LevelAggregate map[int]StatusStats

// Aggregate reduces a level's records into per-status stats. Pure function:
// grouping, counting and summing only, so the result does not depend on the
// order records were collected in.
func Aggregate(records []Record) LevelAggregate {
	agg := make(LevelAggregate, 4)
	for _, rec := range records {
		s := agg[rec.Status]
		s.Count++
		s.TotalLatency += rec.Latency
		agg[rec.Status] = s
	}
	for code, s := range agg {
		s.AvgLatency = s.TotalLatency / time.Duration(s.Count)
		s.TotalLatencyMs = float64(s.TotalLatency) / float64(time.Millisecond)
		s.AvgLatencyMs = s.TotalLatencyMs / float64(s.Count)
		agg[code] = s
	}
	return agg
}

// StatusRow is one printable row of a level aggregate.
type StatusRow struct {
	Code  int
	Label string
	Stats StatusStats
}

// Rows flattens the aggregate into rows sorted by ascending status code,
// with the no-status bucket last. StatusNone is labeled "ERR".
func (a LevelAggregate) Rows() []StatusRow {
	if len(a) == 0 {
		return nil
	}
	rows := make([]StatusRow, 0, len(a))
	for code, stats := range a {
		label := "ERR"
		if code != StatusNone {
			label = strconv.Itoa(code)
		}
		rows = append(rows, StatusRow{Code: code, Label: label, Stats: stats})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Code == StatusNone {
			return false
		}
		if rows[j].Code == StatusNone {
			return true
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}

// Total sums the counts across every status bucket.
func (a LevelAggregate) Total() int64 {
	var n int64
	for _, s := range a {
		n += s.Count
	}
	return n
}
