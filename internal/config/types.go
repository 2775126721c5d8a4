package config

import (
	"time"

	"github.com/doridoridoriand/wifiwatch/internal/signal"
)

// MetricsMode describes the granularity of exported metrics.
type MetricsMode string

const (
	MetricsModePerNetwork MetricsMode = "per-network"
	MetricsModeAggregated MetricsMode = "aggregated"
	MetricsModeBoth       MetricsMode = "both"
)

// ParseMetricsMode validates a metrics mode name.
func ParseMetricsMode(value string) (MetricsMode, error) {
	switch MetricsMode(value) {
	case MetricsModePerNetwork, MetricsModeAggregated, MetricsModeBoth:
		return MetricsMode(value), nil
	default:
		return "", errInvalid("metrics.mode", value)
	}
}

// RedisOptions configures the optional snapshot sink. An empty Addr disables it.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
	TTL      time.Duration
}

// Enabled reports whether a Redis address was configured.
func (r RedisOptions) Enabled() bool {
	return r.Addr != ""
}

// GlobalOptions holds settings parsed from the config file and CLI overrides.
type GlobalOptions struct {
	Interval      time.Duration
	ListTimeout   time.Duration
	StatusTimeout time.Duration
	ListCommands  []string
	StatusCommand string
	Encoding      string

	Unit       signal.Unit
	WindowCap  int
	StaleAfter time.Duration

	SingleSampleStdDev float64
	MinStdDev          float64

	IdentifierLabels []string
	SignalLabels     []string
	ChannelLabels    []string

	MetricsMode   MetricsMode
	MetricsListen string

	UIDisable     bool
	UIMaxNetworks int

	LogLevel  string
	LogFormat string
	LogFile   string

	Redis RedisOptions
}

// Config is the parsed configuration.
type Config struct {
	Path   string
	Global GlobalOptions
}

// CLIOverrides holds optional CLI values that override config file values.
type CLIOverrides struct {
	Interval      *time.Duration
	ListTimeout   *time.Duration
	StatusTimeout *time.Duration
	WindowCap     *int
	Unit          *signal.Unit
	Encoding      *string
	MetricsMode   *MetricsMode
	MetricsListen *string
	UIDisable     *bool
	LogLevel      *string
	LogFormat     *string
	LogFile       *string
	RedisAddr     *string
}

// Parser defines config parsing behavior.
type Parser interface {
	LoadConfig(path string, overrides CLIOverrides) (*Config, error)
}

// fileConfig mirrors the YAML layout. Durations are strings so that errors
// name the offending key.
type fileConfig struct {
	Interval string `yaml:"interval"`
	Unit     string `yaml:"unit"`

	Scan struct {
		ListTimeout   string   `yaml:"list_timeout"`
		StatusTimeout string   `yaml:"status_timeout"`
		ListCommands  []string `yaml:"list_commands"`
		StatusCommand string   `yaml:"status_command"`
		Encoding      string   `yaml:"encoding"`
	} `yaml:"scan"`

	History struct {
		Window     *int   `yaml:"window"`
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"history"`

	Estimator struct {
		SingleSampleStdDev *float64 `yaml:"single_sample_stddev"`
		MinStdDev          *float64 `yaml:"min_stddev"`
	} `yaml:"estimator"`

	Parser struct {
		IdentifierLabels []string `yaml:"identifier_labels"`
		SignalLabels     []string `yaml:"signal_labels"`
		ChannelLabels    []string `yaml:"channel_labels"`
	} `yaml:"parser"`

	Metrics struct {
		Mode   string `yaml:"mode"`
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	UI struct {
		Disable     *bool `yaml:"disable"`
		MaxNetworks *int  `yaml:"max_networks"`
	} `yaml:"ui"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
		Key      string `yaml:"key"`
		Channel  string `yaml:"channel"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
}
