package dispatch

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestNewSpecGETParamsAsQuery(t *testing.T) {
	spec, err := NewSpec("get", "http://example.com/search?lang=en", nil, map[string]string{
		"q":    "ramp up",
		"page": "2",
	}, false)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}

	req, err := spec.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodGet {
		t.Fatalf("expected method GET, got %s", req.Method)
	}
	q := req.URL.Query()
	if q.Get("lang") != "en" {
		t.Errorf("expected existing query preserved, got %q", q.Get("lang"))
	}
	if q.Get("q") != "ramp up" || q.Get("page") != "2" {
		t.Errorf("expected params merged into query, got %v", q)
	}
	if req.Body != nil {
		t.Errorf("expected GET request without body")
	}
}

func TestNewSpecPostParamsAsJSONBody(t *testing.T) {
	spec, err := NewSpec("post", "http://example.com/api", nil, map[string]string{
		"user": "alice",
	}, false)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}

	req, err := spec.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected application/json content type, got %q", got)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(body) != `{"user":"alice"}` {
		t.Errorf("expected JSON body, got %q", string(body))
	}
	if req.ContentLength != int64(len(body)) {
		t.Errorf("expected content length %d, got %d", len(body), req.ContentLength)
	}

	if req.GetBody == nil {
		t.Fatalf("expected request to support body replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	replayBytes, err := io.ReadAll(replay)
	if err != nil {
		t.Fatalf("read replay body failed: %v", err)
	}
	if string(replayBytes) != string(body) {
		t.Errorf("expected replay body %q, got %q", string(body), string(replayBytes))
	}
}

func TestNewSpecHeaderValidation(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"empty key", map[string]string{"": "value"}},
		{"key with newline", map[string]string{"Bad\nKey": "value"}},
		{"value with CR", map[string]string{"X-Test": "bad\rvalue"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSpec("GET", "http://example.com", tc.headers, nil, false); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestNewSpecCanonicalizesHeaders(t *testing.T) {
	spec, err := NewSpec("GET", "http://example.com", map[string]string{
		"content-type": "text/plain",
		"x-trace-id":   "12345",
	}, nil, false)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}
	if spec.Headers.Get("Content-Type") != "text/plain" {
		t.Errorf("expected canonical Content-Type, got %v", spec.Headers)
	}
	if spec.Headers.Get("X-Trace-Id") != "12345" {
		t.Errorf("expected canonical X-Trace-Id, got %v", spec.Headers)
	}
}

func TestNewSpecMethodFallbackAndCase(t *testing.T) {
	spec, err := NewSpec("", "http://example.com", nil, nil, false)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}
	if spec.Method != http.MethodGet {
		t.Fatalf("expected method fallback to GET, got %s", spec.Method)
	}

	spec, err = NewSpec("patch", "http://example.com", nil, nil, false)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}
	if spec.Method != http.MethodPatch {
		t.Fatalf("expected method PATCH, got %s", spec.Method)
	}
}

func TestNewSpecRequiresTarget(t *testing.T) {
	if _, err := NewSpec("GET", "   ", nil, nil, false); err == nil {
		t.Fatalf("expected error for empty target URL")
	}
}

func TestWithHeaderLeavesOriginalUntouched(t *testing.T) {
	spec, err := NewSpec("GET", "http://example.com", map[string]string{"X-A": "1"}, nil, true)
	if err != nil {
		t.Fatalf("expected spec, got error: %v", err)
	}

	clone, err := spec.WithHeader("cookie", "sid=abc123")
	if err != nil {
		t.Fatalf("expected clone, got error: %v", err)
	}

	if got := clone.Headers.Get("Cookie"); got != "sid=abc123" {
		t.Errorf("expected cookie on clone, got %q", got)
	}
	if got := spec.Headers.Get("Cookie"); got != "" {
		t.Errorf("expected original without cookie, got %q", got)
	}
	if clone.Headers.Get("X-A") != "1" {
		t.Errorf("expected clone to keep existing headers")
	}
	if !clone.Auth {
		t.Errorf("expected clone to keep auth flag")
	}

	if _, err := clone.WithHeader("bad\nkey", "v"); err == nil {
		t.Errorf("expected error for invalid header key")
	}
}
