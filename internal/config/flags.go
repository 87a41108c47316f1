package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rampede",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Core request flags
	flags.String("url", "", "Target URL to ramp against")
	flags.StringP("method", "m", "GET", "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key:value form (repeatable)")
	flags.StringSlice("param", nil, "Request parameter in key=value form (repeatable)")

	// Ramp control flags
	flags.IntSlice("rates", nil, "Requests-per-minute levels, comma separated and strictly ascending")
	flags.Duration("window", time.Minute, "Measurement window per level")
	flags.Int("batch", 10, "Concurrent dispatches per cadence tick")
	flags.Int("timeout-factor", 200, "Level watchdog multiplier; also divides current latency in the degradation check")
	flags.Int("warmup-rate", 500, "Requests per minute for the discarded warm-up window")
	flags.Duration("settle-delay", 2*time.Second, "Pause between levels")
	flags.Duration("request-timeout", 0, "Per-request timeout (0 means transport default)")

	// Plan flags
	flags.String("plan", "", "Path to a YAML plan file with named request specs")
	flags.String("test", "", "Plan test to drive")
	flags.String("login-test", "", "Plan test that obtains the session token")

	// Auth flags
	flags.String("session-token", "", "Pre-issued session token (skips the login request)")
	flags.String("cookie-name", "session", "Session cookie name to read and inject")
	flags.String("token-path", "", "gjson path to the token in the login response body")

	// Output flags
	flags.Bool("json", false, "Emit the run result as JSON")
	flags.String("html-report", "", "Generate HTML report to the specified file path")
	flags.String("history-file", "", "Append a run summary line to this JSONL file")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'avg_latency:200 < 250')")
	flags.Bool("dashboard", false, "Show live terminal dashboard while ramping")
	flags.BoolP("verbose", "v", false, "Log each failed dispatch to stderr")
	flags.BoolP("quiet", "q", false, "Suppress progress output")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.Bool("tracing", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-endpoint", "localhost:4317", "OTLP collector endpoint")
	flags.String("tracing-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", true, "Export spans without TLS")
	flags.Float64("tracing-sample-rate", 1, "Trace sampling ratio between 0 and 1")
	flags.String("service-name", "rampede", "Service name attached to trace resources")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("rates") {
		val, err := fs.GetIntSlice("rates")
		if err != nil {
			return err
		}
		cfg.Rates = val
	}
	if fs.Changed("window") {
		val, err := fs.GetDuration("window")
		if err != nil {
			return err
		}
		cfg.Window = val
	}
	if fs.Changed("batch") {
		val, err := fs.GetInt("batch")
		if err != nil {
			return err
		}
		cfg.BatchSize = val
	}
	if fs.Changed("timeout-factor") {
		val, err := fs.GetInt("timeout-factor")
		if err != nil {
			return err
		}
		cfg.TimeoutFactor = val
	}
	if fs.Changed("warmup-rate") {
		val, err := fs.GetInt("warmup-rate")
		if err != nil {
			return err
		}
		cfg.WarmUpRate = val
	}
	if fs.Changed("settle-delay") {
		val, err := fs.GetDuration("settle-delay")
		if err != nil {
			return err
		}
		cfg.SettleDelay = val
	}
	if fs.Changed("request-timeout") {
		val, err := fs.GetDuration("request-timeout")
		if err != nil {
			return err
		}
		cfg.RequestTimeout = val
	}
	if fs.Changed("plan") {
		val, err := fs.GetString("plan")
		if err != nil {
			return err
		}
		cfg.PlanFile = strings.TrimSpace(val)
	}
	if fs.Changed("test") {
		val, err := fs.GetString("test")
		if err != nil {
			return err
		}
		cfg.TestName = strings.TrimSpace(val)
	}
	if fs.Changed("login-test") {
		val, err := fs.GetString("login-test")
		if err != nil {
			return err
		}
		cfg.LoginTest = strings.TrimSpace(val)
	}
	if fs.Changed("session-token") {
		val, err := fs.GetString("session-token")
		if err != nil {
			return err
		}
		cfg.SessionToken = strings.TrimSpace(val)
	}
	if fs.Changed("cookie-name") {
		val, err := fs.GetString("cookie-name")
		if err != nil {
			return err
		}
		cfg.CookieName = strings.TrimSpace(val)
	}
	if fs.Changed("token-path") {
		val, err := fs.GetString("token-path")
		if err != nil {
			return err
		}
		cfg.TokenPath = strings.TrimSpace(val)
	}
	if fs.Changed("json") {
		val, err := fs.GetBool("json")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("html-report") {
		val, err := fs.GetString("html-report")
		if err != nil {
			return err
		}
		cfg.HTMLReport = strings.TrimSpace(val)
	}
	if fs.Changed("history-file") {
		val, err := fs.GetString("history-file")
		if err != nil {
			return err
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("quiet") {
		val, err := fs.GetBool("quiet")
		if err != nil {
			return err
		}
		cfg.Quiet = val
	}

	headerVals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(headerVals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range headerVals {
			parts := strings.SplitN(entry, ":", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key:value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	paramVals, err := fs.GetStringSlice("param")
	if err != nil {
		return err
	}
	if len(paramVals) > 0 {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		for _, entry := range paramVals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("param must be in key=value format: %s", entry)
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				return fmt.Errorf("param key cannot be empty")
			}
			cfg.Params[key] = parts[1]
		}
	}

	if fs.Changed("tracing") {
		val, err := fs.GetBool("tracing")
		if err != nil {
			return err
		}
		cfg.Tracing.Enabled = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = TracingProtocol(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("service-name") {
		val, err := fs.GetString("service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}

	return nil
}
