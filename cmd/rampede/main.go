package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rampede/rampede/internal/auth"
	"github.com/rampede/rampede/internal/config"
	"github.com/rampede/rampede/internal/dashboard"
	"github.com/rampede/rampede/internal/dispatch"
	"github.com/rampede/rampede/internal/history"
	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/output"
	"github.com/rampede/rampede/internal/ramp"
	"github.com/rampede/rampede/internal/schedule"
	"github.com/rampede/rampede/internal/threshold"
	"github.com/rampede/rampede/internal/tracing"
)

const (
	progressInterval       = 500 * time.Millisecond
	tracingShutdownTimeout = 5 * time.Second
)

// Exit codes: 0 for a clean pass, 1 for a failed run or a failed threshold,
// 2 for configuration errors.
const (
	exitOK = iota
	exitFailure
	exitUsage
)

type stderrFailureLogger struct {
	mu sync.Mutex
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return exitOK
		}
		return usageError(err)
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return usageError(err)
	}

	spec, err := dispatch.NewSpec(cfg.Method, cfg.TargetURL, cfg.Headers, cfg.Params, cfg.Auth)
	if err != nil {
		return usageError(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return runError(err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "[rampede] tracing shutdown: %v\n", err)
		}
	}()

	if cfg.Auth {
		sessions, err := newAuthProvider(cfg)
		if err != nil {
			return runError(err)
		}
		defer sessions.Close()
		// The token resolves once, before warm-up; every dispatch of the
		// run then carries the same Cookie header.
		spec, err = authenticate(ctx, spec, sessions)
		if err != nil {
			return runError(err)
		}
	}

	tracker := ramp.NewTracker()
	scheduler := schedule.New(schedule.Options{
		Window:        cfg.Window,
		BatchSize:     cfg.BatchSize,
		TimeoutFactor: cfg.TimeoutFactor,
		Dispatcher:    newDispatcher(cfg, provider),
		OnBatch:       tracker.NoteBatch,
	})

	runID := ulid.Make().String()
	controller := ramp.New(ramp.Options{
		Rates:         cfg.Rates,
		WarmUpRate:    cfg.WarmUpRate,
		SettleDelay:   cfg.SettleDelay,
		TimeoutFactor: cfg.TimeoutFactor,
		Runner:        scheduler,
		Spec:          spec,
		Tracker:       tracker,
		RunID:         runID,
		Tracer:        provider.Tracer(),
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(tracker, dashboardConfig(cfg), cancel)
		if err != nil {
			return runError(err)
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard && !cfg.Quiet {
		progress = output.NewProgressReporter(tracker, progressInterval, os.Stdout)
		progress.Start()
	}

	rctx, span := tracing.StartRunSpan(ctx, provider.Tracer(), runID, cfg.Rates, cfg.Window)
	res, runErr := controller.Run(rctx)
	tracing.EndSpan(span, runErr)

	// The terminal belongs to the live reporters until the run settles;
	// reclaim it before printing anything.
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stdout)
	}
	if runErr != nil {
		return runError(runErr)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, res); err != nil {
			return runError(err)
		}
	} else {
		output.PrintReport(os.Stdout, res)
	}

	code := exitOK
	if res.Failed() {
		code = exitFailure
	}

	var checks []threshold.Result
	if len(thresholds) > 0 {
		checks = threshold.NewEvaluator(thresholds).Evaluate(res)
		printThresholds(thresholdWriter(cfg), checks)
		for _, check := range checks {
			if !check.Pass {
				code = exitFailure
			}
		}
	}

	if cfg.HTMLReport != "" {
		if err := output.WriteHTMLReport(cfg.HTMLReport, res, checks); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = exitFailure
		}
	}
	if cfg.HistoryFile != "" {
		if err := history.Append(cfg.HistoryFile, history.FromResult(res)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = exitFailure
		}
	}

	return code
}

func usageError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitUsage
}

func runError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFailure
}

// newDispatcher assembles the dispatch chain: bare HTTP innermost, then
// failure logging, then span emission.
func newDispatcher(cfg *config.Config, provider *tracing.Provider) dispatch.Dispatcher {
	var d dispatch.Dispatcher = dispatch.NewHTTPDispatcher(dispatch.NewClient(cfg.RequestTimeout))
	if cfg.Verbose {
		d = dispatch.WithLogging(d, &stderrFailureLogger{})
	}
	if cfg.Tracing.Enabled {
		d = dispatch.WithTracing(d, provider.Tracer())
	}
	return d
}

// newAuthProvider picks the session source: a pre-issued token when one is
// configured, otherwise a login request from the plan.
func newAuthProvider(cfg *config.Config) (auth.Provider, error) {
	if cfg.SessionToken != "" {
		return auth.NewStaticProvider(cfg.CookieName, cfg.SessionToken), nil
	}
	test, err := cfg.Plan.Test(cfg.LoginTest)
	if err != nil {
		return nil, err
	}
	login, err := dispatch.NewSpec(test.Method, test.URL, test.Headers, test.Params, false)
	if err != nil {
		return nil, fmt.Errorf("login test %q: %w", cfg.LoginTest, err)
	}
	return auth.NewSessionProvider(login, cfg.CookieName, cfg.TokenPath)
}

// authenticate resolves the session and returns a spec carrying its header.
func authenticate(ctx context.Context, spec *dispatch.RequestSpec, sessions auth.Provider) (*dispatch.RequestSpec, error) {
	headers := make(http.Header)
	if err := sessions.InjectHeader(ctx, headers); err != nil {
		return nil, err
	}
	out := spec
	for key, values := range headers {
		for _, value := range values {
			next, err := out.WithHeader(key, value)
			if err != nil {
				return nil, err
			}
			out = next
		}
	}
	return out, nil
}

func dashboardConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		TargetURL:  cfg.TargetURL,
		Method:     cfg.Method,
		Rates:      cfg.Rates,
		Window:     cfg.Window,
		BatchSize:  cfg.BatchSize,
		ConfigFile: cfg.ConfigFile,
	}
}

// thresholdWriter keeps stdout parseable in JSON mode.
func thresholdWriter(cfg *config.Config) io.Writer {
	if cfg.JSONOutput {
		return os.Stderr
	}
	return os.Stdout
}

func printThresholds(w io.Writer, checks []threshold.Result) {
	fmt.Fprintln(w, "\n--- Thresholds ---")
	for _, check := range checks {
		fmt.Fprintln(w, check.Message)
	}
}

func (l *stderrFailureLogger) LogFailure(rec outcome.Record) {
	if rec.ErrKind == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[rampede] request failed: %s\n", rec.ErrKind)
}
