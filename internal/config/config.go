package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type TracingProtocol string

const (
	TracingProtocolGRPC TracingProtocol = "grpc"
	TracingProtocolHTTP TracingProtocol = "http"
)

type Config struct {
	TargetURL      string            `mapstructure:"url"`
	Method         string            `mapstructure:"method"`
	Headers        map[string]string `mapstructure:"headers"`
	Params         map[string]string `mapstructure:"params"`
	Rates          []int             `mapstructure:"rates"`
	Window         time.Duration     `mapstructure:"window"`
	BatchSize      int               `mapstructure:"batch"`
	TimeoutFactor  int               `mapstructure:"timeout_factor"`
	WarmUpRate     int               `mapstructure:"warmup_rate"`
	SettleDelay    time.Duration     `mapstructure:"settle_delay"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	PlanFile       string            `mapstructure:"plan"`
	TestName       string            `mapstructure:"test"`
	LoginTest      string            `mapstructure:"login_test"`
	SessionToken   string            `mapstructure:"session_token"`
	CookieName     string            `mapstructure:"cookie_name"`
	TokenPath      string            `mapstructure:"token_path"`
	JSONOutput     bool              `mapstructure:"json_output"`
	HTMLReport     string            `mapstructure:"html_report"`
	HistoryFile    string            `mapstructure:"history_file"`
	Thresholds     []string          `mapstructure:"thresholds"`
	Dashboard      bool              `mapstructure:"dashboard"`
	Verbose        bool              `mapstructure:"verbose"`
	Quiet          bool              `mapstructure:"quiet"`
	Tracing        TracingConfig     `mapstructure:"tracing"`
	ConfigFile     string            `mapstructure:"-"`

	// Auth reports whether dispatches need a session token. Derived during
	// Load: plan-driven runs take it from the selected test, flag-driven
	// runs turn it on when a token source is configured.
	Auth bool `mapstructure:"-"`

	// Plan holds the parsed plan file when --plan was given.
	Plan *Plan `mapstructure:"-"`
}

type TracingConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	Endpoint    string          `mapstructure:"endpoint"`
	Protocol    TracingProtocol `mapstructure:"protocol"`
	Insecure    bool            `mapstructure:"insecure"`
	SampleRate  float64         `mapstructure:"sample_rate"`
	ServiceName string          `mapstructure:"service_name"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "url is required (use --help for usage information)")
	} else if u, err := url.Parse(c.TargetURL); err != nil {
		issues = append(issues, fmt.Sprintf("url: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("url: scheme must be http or https, got %q", u.Scheme))
	}

	if strings.TrimSpace(c.Method) == "" {
		issues = append(issues, "method cannot be empty")
	} else if strings.ContainsAny(c.Method, " \t\r\n") {
		issues = append(issues, fmt.Sprintf("method %q is not a valid token", c.Method))
	}

	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" {
			issues = append(issues, "header keys cannot be empty")
			continue
		}
		if strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("header %q must not contain CR or LF", key))
		}
	}

	for key := range c.Params {
		if strings.TrimSpace(key) == "" {
			issues = append(issues, "param keys cannot be empty")
		}
	}

	issues = append(issues, validateRates(c.Rates)...)

	if c.Window <= 0 {
		issues = append(issues, "window must be > 0")
	}
	if c.BatchSize < 1 {
		issues = append(issues, "batch must be >= 1")
	}
	if c.TimeoutFactor < 1 {
		issues = append(issues, "timeout-factor must be >= 1")
	}
	if c.WarmUpRate < 1 {
		issues = append(issues, "warmup-rate must be >= 1")
	}
	if c.SettleDelay < 0 {
		issues = append(issues, "settle-delay must be >= 0")
	}
	if c.RequestTimeout < 0 {
		issues = append(issues, "request-timeout must be >= 0")
	}

	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json are mutually exclusive")
	}
	if c.Verbose && c.Quiet {
		issues = append(issues, "verbose and quiet are mutually exclusive")
	}

	issues = append(issues, validateAuth(c)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateRates(rates []int) []string {
	if len(rates) == 0 {
		return []string{"rates cannot be empty"}
	}
	var issues []string
	for idx, rate := range rates {
		if rate <= 0 {
			issues = append(issues, fmt.Sprintf("rates[%d]: must be > 0, got %d", idx, rate))
		}
		if idx > 0 && rate <= rates[idx-1] {
			issues = append(issues, fmt.Sprintf("rates[%d]: levels must be strictly ascending (%d after %d)", idx, rate, rates[idx-1]))
		}
	}
	return issues
}

func validateAuth(c Config) []string {
	var issues []string
	if c.SessionToken != "" && c.LoginTest != "" {
		issues = append(issues, "session-token and login-test are mutually exclusive")
	}
	if c.LoginTest != "" && c.Plan == nil {
		issues = append(issues, "login-test requires a plan file")
	}
	if c.Auth {
		if c.SessionToken == "" && c.LoginTest == "" {
			issues = append(issues, "authenticated runs need --session-token or --login-test")
		}
		if strings.TrimSpace(c.CookieName) == "" {
			issues = append(issues, "cookie-name cannot be empty for authenticated runs")
		}
	}
	return issues
}

func validateTracing(tc TracingConfig) []string {
	if !tc.Enabled {
		return nil
	}
	var issues []string
	switch tc.Protocol {
	case TracingProtocolGRPC, TracingProtocolHTTP:
	default:
		issues = append(issues, fmt.Sprintf("tracing-protocol: must be 'grpc' or 'http', got %q", tc.Protocol))
	}
	if strings.TrimSpace(tc.Endpoint) == "" {
		issues = append(issues, "tracing-endpoint is required when tracing is enabled")
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing-sample-rate: must be between 0 and 1, got %g", tc.SampleRate))
	}
	return issues
}
