package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Method:        "GET",
		Headers:       map[string]string{},
		Params:        map[string]string{},
		Rates:         []int{100, 200, 400, 800, 1600},
		Window:        time.Minute,
		BatchSize:     10,
		TimeoutFactor: 200,
		WarmUpRate:    500,
		SettleDelay:   2 * time.Second,
		CookieName:    "session",
		ConfigFile:    configPath,
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			Protocol:    TracingProtocolGRPC,
			Insecure:    true,
			SampleRate:  1,
			ServiceName: "rampede",
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}

	if err := applyPlanSelection(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "url", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "params", "parameters"); ok {
		params, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("params: %w", err)
		}
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		for k, v := range params {
			cfg.Params[k] = v
		}
	}

	if raw, ok := lookupSetting(settings, "rates", "levels"); ok {
		rates, err := asIntSlice(raw)
		if err != nil {
			return fmt.Errorf("rates: %w", err)
		}
		if len(rates) > 0 {
			cfg.Rates = rates
		}
	}

	if raw, ok := lookupSetting(settings, "window"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("window: %w", err)
		}
		cfg.Window = dur
	}

	if raw, ok := lookupSetting(settings, "batch", "batchsize", "batch_size", "batch-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}
		cfg.BatchSize = val
	}

	if raw, ok := lookupSetting(settings, "timeoutfactor", "timeout_factor", "timeout-factor"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("timeoutFactor: %w", err)
		}
		cfg.TimeoutFactor = val
	}

	if raw, ok := lookupSetting(settings, "warmuprate", "warmup_rate", "warmup-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("warmupRate: %w", err)
		}
		cfg.WarmUpRate = val
	}

	if raw, ok := lookupSetting(settings, "settledelay", "settle_delay", "settle-delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("settleDelay: %w", err)
		}
		cfg.SettleDelay = dur
	}

	if raw, ok := lookupSetting(settings, "requesttimeout", "request_timeout", "request-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("requestTimeout: %w", err)
		}
		cfg.RequestTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "plan", "plan_file", "plan-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
		cfg.PlanFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "test"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("test: %w", err)
		}
		cfg.TestName = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logintest", "login_test", "login-test"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("loginTest: %w", err)
		}
		cfg.LoginTest = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "sessiontoken", "session_token", "session-token"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("sessionToken: %w", err)
		}
		cfg.SessionToken = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "cookiename", "cookie_name", "cookie-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("cookieName: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.CookieName = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "tokenpath", "token_path", "token-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("tokenPath: %w", err)
		}
		cfg.TokenPath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "json", "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "htmlreport", "html_report", "html-report"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlReport: %w", err)
		}
		cfg.HTMLReport = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "historyfile", "history_file", "history-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("historyFile: %w", err)
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "quiet"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("quiet: %w", err)
		}
		cfg.Quiet = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

// parseTracing parses the nested tracing section. A bare boolean toggles
// tracing with the default exporter settings.
func parseTracing(value interface{}, defaults TracingConfig) (TracingConfig, error) {
	tc := defaults
	if value == nil {
		return tc, nil
	}
	if enabled, ok := value.(bool); ok {
		tc.Enabled = enabled
		return tc, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(entry, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("enabled: %w", err)
		}
		tc.Enabled = val
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			tc.Endpoint = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			tc.Protocol = TracingProtocol(strings.ToLower(strings.TrimSpace(val)))
		}
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			tc.ServiceName = strings.TrimSpace(val)
		}
	}
	return tc, nil
}

// applyPlanSelection loads the plan file when one was given and resolves the
// selected test into the effective request. The plan test defines method,
// URL and the auth requirement; its headers and params sit under any values
// given on the command line or in the config file.
func applyPlanSelection(cfg *Config) error {
	cfg.Auth = cfg.SessionToken != "" || cfg.LoginTest != ""

	if strings.TrimSpace(cfg.PlanFile) == "" {
		return nil
	}

	plan, err := LoadPlan(cfg.PlanFile)
	if err != nil {
		return err
	}
	cfg.Plan = plan

	if cfg.TestName != "" {
		test, err := plan.Test(cfg.TestName)
		if err != nil {
			return err
		}
		applyPlanTest(cfg, test)
	}

	if cfg.LoginTest != "" {
		if _, err := plan.Test(cfg.LoginTest); err != nil {
			return err
		}
	}

	return nil
}

func applyPlanTest(cfg *Config, test PlanTest) {
	if strings.TrimSpace(test.URL) != "" {
		cfg.TargetURL = strings.TrimSpace(test.URL)
	}
	if strings.TrimSpace(test.Method) != "" {
		cfg.Method = strings.ToUpper(strings.TrimSpace(test.Method))
	}
	if len(test.Headers) > 0 {
		merged := map[string]string{}
		for k, v := range test.Headers {
			merged[http.CanonicalHeaderKey(strings.TrimSpace(k))] = v
		}
		for k, v := range cfg.Headers {
			merged[k] = v
		}
		cfg.Headers = merged
	}
	if len(test.Params) > 0 {
		merged := map[string]string{}
		for k, v := range test.Params {
			merged[k] = v
		}
		for k, v := range cfg.Params {
			merged[k] = v
		}
		cfg.Params = merged
	}
	cfg.Auth = test.Auth
}
