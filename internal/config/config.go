package config

import (
	"errors"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Schedule        ScheduleConfig    `yaml:"schedule"`
	ErrorReport     ErrorReportConfig `yaml:"error_report"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// ScheduleConfig points at the remote schedule endpoint
type ScheduleConfig struct {
	URL          string   `yaml:"url"`
	AuthHeader   string   `yaml:"auth_header"` // Header carrying the token on POST (default: x-custom-auth)
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // 0 = unlimited
}

// ErrorReportConfig contains remote error sink settings
type ErrorReportConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`
	Token       string   `yaml:"token"`
	ServiceName string   `yaml:"service_name"`
	Timeout     Duration `yaml:"timeout"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains sync ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RetentionPeriod Duration `yaml:"retention_period"` // 0 = keep forever
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// HealthcheckConfig contains settings for the serve command's HTTP server
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 64)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 64
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ErrMissingURL is returned when no schedule endpoint is configured.
var ErrMissingURL = errors.New("schedule.url is required")

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Config{
		Ledger: LedgerConfig{Enabled: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if cfg.Schedule.URL == "" {
		return nil, ErrMissingURL
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lightsched.sqlite"
	}

	// Schedule endpoint defaults
	if cfg.Schedule.AuthHeader == "" {
		cfg.Schedule.AuthHeader = "x-custom-auth"
	}
	if cfg.Schedule.Timeout == 0 {
		cfg.Schedule.Timeout = Duration(10 * time.Second)
	}

	// Error report defaults
	if cfg.ErrorReport.ServiceName == "" {
		cfg.ErrorReport.ServiceName = "lightsched"
	}
	if cfg.ErrorReport.Timeout == 0 {
		cfg.ErrorReport.Timeout = Duration(5 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.RetentionPeriod == 0 {
		cfg.Ledger.RetentionPeriod = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
