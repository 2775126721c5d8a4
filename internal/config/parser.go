package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doridoridoriand/wifiwatch/internal/scan"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
)

// YAMLParser implements the Parser interface.
type YAMLParser struct{}

// DefaultGlobalOptions returns baseline settings used before config overrides.
func DefaultGlobalOptions() GlobalOptions {
	estimator := stats.DefaultEstimator()
	return GlobalOptions{
		Interval:           5 * time.Second,
		ListTimeout:        15 * time.Second,
		StatusTimeout:      10 * time.Second,
		ListCommands:       append([]string(nil), scan.DefaultListCommands...),
		StatusCommand:      scan.DefaultStatusCommand,
		Encoding:           "auto",
		Unit:               signal.UnitPercent,
		WindowCap:          state.DefaultWindowCap,
		StaleAfter:         0,
		SingleSampleStdDev: estimator.SingleSampleStdDev,
		MinStdDev:          estimator.MinStdDev,
		MetricsMode:        MetricsModePerNetwork,
		MetricsListen:      "",
		UIDisable:          false,
		UIMaxNetworks:      8,
		LogLevel:           "info",
		LogFormat:          "text",
		Redis: RedisOptions{
			Key:     "wifiwatch:latest",
			Channel: "wifiwatch:snapshots",
			TTL:     time.Minute,
		},
	}
}

// LoadConfig reads a YAML config file and applies CLI overrides. An empty
// path yields the defaults.
func (p YAMLParser) LoadConfig(path string, overrides CLIOverrides) (*Config, error) {
	cfg := &Config{Path: path, Global: DefaultGlobalOptions()}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := p.apply(&cfg.Global, data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	applyCLIOverrides(&cfg.Global, overrides)
	if err := Validate(cfg.Global); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p YAMLParser) apply(global *GlobalOptions, data []byte) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return applyFile(global, &fc)
}

func applyFile(global *GlobalOptions, fc *fileConfig) error {
	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"interval", fc.Interval, &global.Interval},
		{"scan.list_timeout", fc.Scan.ListTimeout, &global.ListTimeout},
		{"scan.status_timeout", fc.Scan.StatusTimeout, &global.StatusTimeout},
		{"history.stale_after", fc.History.StaleAfter, &global.StaleAfter},
		{"redis.ttl", fc.Redis.TTL, &global.Redis.TTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if fc.Unit != "" {
		u, err := signal.ParseUnit(fc.Unit)
		if err != nil {
			return fmt.Errorf("invalid unit: %w", err)
		}
		global.Unit = u
	}

	if len(fc.Scan.ListCommands) > 0 {
		global.ListCommands = fc.Scan.ListCommands
	}
	setString(&global.StatusCommand, fc.Scan.StatusCommand)
	setString(&global.Encoding, fc.Scan.Encoding)

	if fc.History.Window != nil {
		global.WindowCap = *fc.History.Window
	}
	if fc.Estimator.SingleSampleStdDev != nil {
		global.SingleSampleStdDev = *fc.Estimator.SingleSampleStdDev
	}
	if fc.Estimator.MinStdDev != nil {
		global.MinStdDev = *fc.Estimator.MinStdDev
	}

	global.IdentifierLabels = fc.Parser.IdentifierLabels
	global.SignalLabels = fc.Parser.SignalLabels
	global.ChannelLabels = fc.Parser.ChannelLabels

	if fc.Metrics.Mode != "" {
		mode, err := ParseMetricsMode(fc.Metrics.Mode)
		if err != nil {
			return err
		}
		global.MetricsMode = mode
	}
	if fc.Metrics.Listen != "" {
		global.MetricsListen = normalizeListen(fc.Metrics.Listen)
	}

	if fc.UI.Disable != nil {
		global.UIDisable = *fc.UI.Disable
	}
	if fc.UI.MaxNetworks != nil {
		global.UIMaxNetworks = *fc.UI.MaxNetworks
	}

	setString(&global.LogLevel, fc.Log.Level)
	setString(&global.LogFormat, fc.Log.Format)
	setString(&global.LogFile, fc.Log.File)

	setString(&global.Redis.Addr, fc.Redis.Addr)
	setString(&global.Redis.Password, fc.Redis.Password)
	setString(&global.Redis.Key, fc.Redis.Key)
	setString(&global.Redis.Channel, fc.Redis.Channel)
	if fc.Redis.DB != nil {
		global.Redis.DB = *fc.Redis.DB
	}
	return nil
}

// Validate rejects option sets the pipeline cannot run with.
func Validate(global GlobalOptions) error {
	switch {
	case global.Interval <= 0:
		return errInvalid("interval", global.Interval.String())
	case global.ListTimeout <= 0:
		return errInvalid("scan.list_timeout", global.ListTimeout.String())
	case global.StatusTimeout <= 0:
		return errInvalid("scan.status_timeout", global.StatusTimeout.String())
	case global.WindowCap < 1:
		return errInvalid("history.window", fmt.Sprint(global.WindowCap))
	case global.StaleAfter < 0:
		return errInvalid("history.stale_after", global.StaleAfter.String())
	case global.MinStdDev <= 0:
		return errInvalid("estimator.min_stddev", fmt.Sprint(global.MinStdDev))
	case global.SingleSampleStdDev <= 0:
		return errInvalid("estimator.single_sample_stddev", fmt.Sprint(global.SingleSampleStdDev))
	case global.UIMaxNetworks < 1:
		return errInvalid("ui.max_networks", fmt.Sprint(global.UIMaxNetworks))
	case len(global.ListCommands) == 0:
		return fmt.Errorf("scan.list_commands must not be empty")
	case strings.TrimSpace(global.StatusCommand) == "":
		return fmt.Errorf("scan.status_command must not be empty")
	}
	if _, err := signal.ParseUnit(string(global.Unit)); err != nil {
		return err
	}
	if _, err := ParseMetricsMode(string(global.MetricsMode)); err != nil {
		return err
	}
	switch global.LogFormat {
	case "text", "json":
	default:
		return errInvalid("log.format", global.LogFormat)
	}
	return nil
}

func applyCLIOverrides(global *GlobalOptions, overrides CLIOverrides) {
	if overrides.Interval != nil {
		global.Interval = *overrides.Interval
	}
	if overrides.ListTimeout != nil {
		global.ListTimeout = *overrides.ListTimeout
	}
	if overrides.StatusTimeout != nil {
		global.StatusTimeout = *overrides.StatusTimeout
	}
	if overrides.WindowCap != nil {
		global.WindowCap = *overrides.WindowCap
	}
	if overrides.Unit != nil {
		global.Unit = *overrides.Unit
	}
	if overrides.Encoding != nil {
		global.Encoding = *overrides.Encoding
	}
	if overrides.MetricsMode != nil {
		global.MetricsMode = *overrides.MetricsMode
	}
	if overrides.MetricsListen != nil {
		global.MetricsListen = normalizeListen(*overrides.MetricsListen)
	}
	if overrides.UIDisable != nil {
		global.UIDisable = *overrides.UIDisable
	}
	if overrides.LogLevel != nil {
		global.LogLevel = *overrides.LogLevel
	}
	if overrides.LogFormat != nil {
		global.LogFormat = *overrides.LogFormat
	}
	if overrides.LogFile != nil {
		global.LogFile = *overrides.LogFile
	}
	if overrides.RedisAddr != nil {
		global.Redis.Addr = *overrides.RedisAddr
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func normalizeListen(value string) string {
	if isDigits(value) {
		return ":" + value
	}
	return value
}

func errInvalid(key, value string) error {
	return fmt.Errorf("invalid %s: %q", key, value)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
