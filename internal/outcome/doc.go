// Package outcome collects and reduces per-request results for one rate
// level of a ramp run.
//
// Every dispatched request produces exactly one [Record]: a status code (or
// [StatusNone] when the request never reached a server) and the elapsed
// latency. Records flow into a [Recorder], which is the only piece of state
// shared by the level's concurrent dispatches:
//
//	rec := outcome.NewRecorder()
//	// from many goroutines:
//	rec.Record(outcome.Record{Status: 200, Latency: 50 * time.Millisecond})
//
// Once every dispatch has settled, the level is reduced:
//
//	agg := outcome.Aggregate(rec.Records())
//	agg[200].AvgLatencyMs // per-status average
//
// [Aggregate] is a pure function over the record slice; its result does not
// depend on the order completions arrived in. The aggregate maps each status
// code to count, total latency and average latency, which is the contract
// the ramp controller's stop condition is built on.
//
// The Recorder additionally feeds an HDR histogram so reports can show a
// [LatencyProfile] (min/mean/max and P50/P90/P99) per level. The profile is
// an enrichment; the aggregate alone drives the ramp decisions.
package outcome
