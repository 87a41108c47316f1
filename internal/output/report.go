package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/ramp"
)

// PrintReport outputs a human-readable summary of a finished ramp run.
func PrintReport(w io.Writer, res *ramp.RunResult) {
	fmt.Fprintln(w, "\n--- Ramp Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", res.RunID)
	fmt.Fprintf(w, "Started:           %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:          %s\n", res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Levels Completed:  %d\n", len(res.Levels))
	if top := res.TopRate(); top > 0 {
		fmt.Fprintf(w, "Top Rate:          %d req/min\n", top)
	}
	fmt.Fprintf(w, "Stop Reason:       %s\n", stopLine(res))

	for i, level := range res.Levels {
		fmt.Fprintf(w, "\nLevel %d/%d: %d req/min\n", i+1, len(res.Levels), level.Rate)
		fmt.Fprintf(w, "  Issued:          %d\n", level.Issued)
		writeStatusRows(w, level.Aggregate, "  ")
		fmt.Fprintf(w, "  Latency:         min=%.1fms mean=%.1fms p50=%.1fms p90=%.1fms p99=%.1fms\n",
			level.Profile.MinMs, level.Profile.MeanMs, level.Profile.P50Ms, level.Profile.P90Ms, level.Profile.P99Ms)
		fmt.Fprintf(w, "  Elapsed:         %s\n", level.Elapsed.Round(time.Millisecond))
		if len(level.ErrKinds) > 0 {
			writeErrKinds(w, level.ErrKinds, "  ")
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, res *ramp.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// stopLine renders the stop reason with the rate it fired at. A watchdog
// abort must read differently from a measured stop.
func stopLine(res *ramp.RunResult) string {
	switch res.StopReason {
	case ramp.StopExhausted:
		return "exhausted (all rate levels completed)"
	case ramp.StopLatencyDegraded:
		return fmt.Sprintf("latency-degraded at %d req/min", res.StoppedRate)
	case ramp.StopFirstLevelFailed:
		return fmt.Sprintf("first-level-failed at %d req/min (no successful baseline)", res.StoppedRate)
	case ramp.StopGlobalTimeout:
		return fmt.Sprintf("global-timeout at %d req/min (watchdog aborted the level)", res.StoppedRate)
	case ramp.StopInterrupted:
		return fmt.Sprintf("interrupted at %d req/min", res.StoppedRate)
	default:
		return string(res.StopReason)
	}
}

func writeStatusRows(w io.Writer, agg outcome.LevelAggregate, indent string) {
	rows := agg.Rows()
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sStatus:          none\n", indent)
		return
	}
	fmt.Fprintf(w, "%sStatus:\n", indent)
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s  - %s: count=%d, total=%.1fms, avg=%.1fms\n",
			indent,
			row.Label,
			row.Stats.Count,
			row.Stats.TotalLatencyMs,
			row.Stats.AvgLatencyMs,
		)
	}
}

func writeErrKinds(w io.Writer, kinds map[string]int, indent string) {
	fmt.Fprintf(w, "%sErrors:\n", indent)
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s  - %s: %d\n", indent, name, kinds[name])
	}
}
