package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rampede/rampede/internal/auth"
	"github.com/rampede/rampede/internal/config"
	"github.com/rampede/rampede/internal/dispatch"
	"github.com/rampede/rampede/internal/threshold"
)

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help flag", []string{"--help"}, exitOK},
		{"no args shows help", nil, exitOK},
		{"unknown flag", []string{"--definitely-not-a-flag"}, exitUsage},
		{"missing url", []string{"--rates", "100,200"}, exitUsage},
		{"descending rates", []string{"--url", "http://localhost:9", "--rates", "200,100"}, exitUsage},
		{"bad threshold", []string{"--url", "http://localhost:9", "--threshold", "nope"}, exitUsage},
		{"auth source conflict", []string{"--url", "http://localhost:9", "--session-token", "tok", "--login-test", "login"}, exitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestNewAuthProviderStatic(t *testing.T) {
	cfg := &config.Config{SessionToken: "tok123", CookieName: "sid"}
	provider, err := newAuthProvider(cfg)
	if err != nil {
		t.Fatalf("newAuthProvider() error = %v", err)
	}
	defer provider.Close()

	headers := make(http.Header)
	if err := provider.InjectHeader(context.Background(), headers); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}
	if got := headers.Get("Cookie"); got != "sid=tok123" {
		t.Errorf("Cookie = %q, want sid=tok123", got)
	}
}

func TestNewAuthProviderLoginTest(t *testing.T) {
	cfg := &config.Config{
		LoginTest:  "login",
		CookieName: "session",
		Plan: &config.Plan{Tests: map[string]config.PlanTest{
			"login": {Method: "POST", URL: "http://auth.local/login"},
		}},
	}
	provider, err := newAuthProvider(cfg)
	if err != nil {
		t.Fatalf("newAuthProvider() error = %v", err)
	}
	provider.Close()
}

func TestNewAuthProviderUnknownLoginTest(t *testing.T) {
	cfg := &config.Config{
		LoginTest:  "missing",
		CookieName: "session",
		Plan: &config.Plan{Tests: map[string]config.PlanTest{
			"login": {URL: "http://auth.local/login"},
		}},
	}
	if _, err := newAuthProvider(cfg); err == nil {
		t.Fatal("newAuthProvider() expected error for unknown login test")
	}
}

func TestAuthenticate(t *testing.T) {
	spec, err := dispatch.NewSpec("GET", "http://example.com/api", nil, nil, true)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}

	out, err := authenticate(context.Background(), spec, auth.NewStaticProvider("sid", "tok123"))
	if err != nil {
		t.Fatalf("authenticate() error = %v", err)
	}

	req, err := out.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if got := req.Header.Get("Cookie"); got != "sid=tok123" {
		t.Errorf("Cookie = %q, want sid=tok123", got)
	}

	// The input spec must stay untouched.
	orig, err := spec.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if got := orig.Header.Get("Cookie"); got != "" {
		t.Errorf("original spec Cookie = %q, want empty", got)
	}
}

func TestDashboardConfig(t *testing.T) {
	cfg := &config.Config{
		TargetURL:  "http://example.com",
		Method:     "POST",
		Rates:      []int{100, 200},
		Window:     30 * time.Second,
		BatchSize:  5,
		ConfigFile: "ramp.yaml",
	}
	got := dashboardConfig(cfg)
	if got.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", got.TargetURL)
	}
	if got.Method != "POST" {
		t.Errorf("Method = %q, want POST", got.Method)
	}
	if len(got.Rates) != 2 {
		t.Errorf("len(Rates) = %d, want 2", len(got.Rates))
	}
	if got.Window != 30*time.Second {
		t.Errorf("Window = %v, want 30s", got.Window)
	}
	if got.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", got.BatchSize)
	}
	if got.ConfigFile != "ramp.yaml" {
		t.Errorf("ConfigFile = %q, want ramp.yaml", got.ConfigFile)
	}
}

func TestThresholdWriter(t *testing.T) {
	if got := thresholdWriter(&config.Config{JSONOutput: true}); got != os.Stderr {
		t.Error("thresholdWriter(json) should write to stderr")
	}
	if got := thresholdWriter(&config.Config{}); got != os.Stdout {
		t.Error("thresholdWriter(text) should write to stdout")
	}
}

func TestPrintThresholds(t *testing.T) {
	var buf bytes.Buffer
	printThresholds(&buf, []threshold.Result{
		{Pass: true, Message: "✓ p99 < 800: 120.00 < 800.00"},
		{Pass: false, Message: "✗ count:err == 0: 3.00 == 0.00"},
	})

	out := buf.String()
	if !strings.Contains(out, "--- Thresholds ---") {
		t.Errorf("output missing header: %q", out)
	}
	if !strings.Contains(out, "✓ p99 < 800") {
		t.Errorf("output missing passing check: %q", out)
	}
	if !strings.Contains(out, "✗ count:err == 0") {
		t.Errorf("output missing failing check: %q", out)
	}
}
