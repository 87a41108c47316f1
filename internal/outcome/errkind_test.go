package outcome_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/rampede/rampede/internal/outcome"
)

type flakyUpstreamError struct{}

func (e *flakyUpstreamError) Error() string { return "flaky upstream" }

func TestErrKindFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", context.Canceled, "Cancelled"},
		{"wrapped cancelled", fmt.Errorf("dispatch: %w", context.Canceled), "Cancelled"},
		{"deadline", context.DeadlineExceeded, "Context deadline exceeded"},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, "Request URL error"},
		{"plain", errors.New("boom"), "Error String"},
		{"custom type", &flakyUpstreamError{}, "Flaky Upstream Error (outcome_test)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := outcome.ErrKindFor(tc.err); got != tc.want {
				t.Errorf("ErrKindFor(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrKindsCountsFailures(t *testing.T) {
	records := []outcome.Record{
		{Status: 200, Latency: time.Millisecond},
		{Status: outcome.StatusNone, Latency: time.Millisecond, ErrKind: "Network error"},
		{Status: outcome.StatusNone, Latency: time.Millisecond, ErrKind: "Network error"},
		{Status: outcome.StatusNone, Latency: time.Millisecond, ErrKind: "Cancelled"},
	}

	kinds := outcome.ErrKinds(records)
	if len(kinds) != 2 {
		t.Fatalf("expected 2 kinds, got %d", len(kinds))
	}
	if kinds["Network error"] != 2 {
		t.Errorf("expected 2 network errors, got %d", kinds["Network error"])
	}
	if kinds["Cancelled"] != 1 {
		t.Errorf("expected 1 cancelled, got %d", kinds["Cancelled"])
	}
}

func TestErrKindsNilOnAllSuccess(t *testing.T) {
	records := []outcome.Record{
		{Status: 200, Latency: time.Millisecond},
		{Status: 204, Latency: time.Millisecond},
	}
	if kinds := outcome.ErrKinds(records); kinds != nil {
		t.Errorf("expected nil kinds, got %v", kinds)
	}
}
