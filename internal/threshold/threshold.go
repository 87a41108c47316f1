package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/ramp"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "avg_latency", "count", "p99", "top_rate"
	Qualifier string  // status bucket for avg_latency/count ("200", "err"); empty otherwise
	Operator  string  // e.g., "<", "<=", ">", ">=", "==", "!="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a finished ramp run.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided run result.
func (e *Evaluator) Evaluate(res *ramp.RunResult) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, res)
		results = append(results, result)
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, res *ramp.RunResult) Result {
	actual, err := extractMetricValue(t, res)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

// Parse parses a threshold string into a Threshold struct.
// Metrics that read a status bucket take a qualifier; the rest stand alone.
// Supported formats:
// - "avg_latency:200 < 250"  (average latency of the bucket in ms, final level)
// - "count:503 == 0"         (outcome count of the bucket, final level)
// - "count:err == 0"         (requests that never reached a server)
// - "p99 < 800"              (latency percentile in ms, final level; also p50, p90)
// - "top_rate >= 400"        (highest completed rate in req/min)
// - "levels >= 3"            (number of completed levels)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	// Pattern: metric[:qualifier] operator value
	// e.g., "avg_latency:200 < 250" or "top_rate >= 400"
	pattern := regexp.MustCompile(`^([a-z0-9_]+)(?::([a-zA-Z0-9]+))?\s*([<>=!]+)\s*([0-9.]+)$`)
	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric[:qualifier] operator value, e.g., 'avg_latency:200 < 250')", s)
	}

	metric := matches[1]
	qualifier := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	// Validate metric
	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: avg_latency, count, p50, p90, p99, top_rate, levels)", metric)
	}

	// Validate qualifier
	switch metric {
	case "avg_latency", "count":
		if qualifier == "" {
			return Threshold{}, fmt.Errorf("metric %q needs a status qualifier, e.g., %q", metric, metric+":200")
		}
		if _, err := statusForQualifier(qualifier); err != nil {
			return Threshold{}, err
		}
	default:
		if qualifier != "" {
			return Threshold{}, fmt.Errorf("metric %q takes no qualifier, got %q", metric, qualifier)
		}
	}

	// Validate operator
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==, !=)", operator)
	}

	return Threshold{
		Metric:    metric,
		Qualifier: qualifier,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	valid := []string{"avg_latency", "count", "p50", "p90", "p99", "top_rate", "levels"}
	for _, v := range valid {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "==", "!="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

// statusForQualifier maps a threshold qualifier to a status bucket. "err"
// names the bucket of requests that never reached a server.
func statusForQualifier(q string) (int, error) {
	if strings.EqualFold(q, "err") {
		return outcome.StatusNone, nil
	}
	code, err := strconv.Atoi(q)
	if err != nil || code < 100 || code > 599 {
		return 0, fmt.Errorf("invalid status qualifier %q (use a status code or 'err')", q)
	}
	return code, nil
}

func extractMetricValue(t Threshold, res *ramp.RunResult) (float64, error) {
	switch t.Metric {
	case "top_rate":
		return float64(res.TopRate()), nil
	case "levels":
		return float64(len(res.Levels)), nil
	}

	// The remaining metrics read the final measured level.
	if len(res.Levels) == 0 {
		return 0, fmt.Errorf("no completed levels to evaluate %q against", t.Metric)
	}
	final := res.Levels[len(res.Levels)-1]

	switch t.Metric {
	case "p50":
		return final.Profile.P50Ms, nil
	case "p90":
		return final.Profile.P90Ms, nil
	case "p99":
		return final.Profile.P99Ms, nil
	case "avg_latency":
		code, err := statusForQualifier(t.Qualifier)
		if err != nil {
			return 0, err
		}
		stats, ok := final.Aggregate[code]
		if !ok {
			return 0, fmt.Errorf("final level has no %s outcomes", t.Qualifier)
		}
		return stats.AvgLatencyMs, nil
	case "count":
		code, err := statusForQualifier(t.Qualifier)
		if err != nil {
			return 0, err
		}
		// An absent bucket counts as zero.
		return float64(final.Aggregate[code].Count), nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	case "!=":
		return math.Abs(actual-expected) >= epsilon
	default:
		return false
	}
}
