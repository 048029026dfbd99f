package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/datahub/internal/timespec"
)

// DefaultPath is where datahub looks for its config when none is given.
const DefaultPath = "datahub.yml"

// Duration is a time.Duration that reads as seconds ("30") or a Go duration
// ("1m30s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := timespec.ParseTimeout(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HubConfig represents the top-level datahub.yml configuration
type HubConfig struct {
	Version       string    `yaml:"version"`
	Listen        string    `yaml:"listen"`                    // HTTP listen address
	Instance      string    `yaml:"instance"`                  // Namespace for Redis channels
	DefaultWait   Duration  `yaml:"default_wait"`              // Used when a read gives no timeout
	MaxWait       Duration  `yaml:"max_wait"`                  // Longer timeouts are clamped to this
	MaxKeyLength  int       `yaml:"max_key_length"`            // Bytes
	MaxValueBytes int       `yaml:"max_value_bytes"`           // 0 = unlimited
	RedisURL      string    `yaml:"redis_url,omitempty"`       // Optional write-event fan-out
	Log           LogConfig `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *HubConfig {
	return &HubConfig{
		Version:       "1.0",
		Listen:        ":8000",
		Instance:      "default",
		DefaultWait:   Duration(30 * time.Second),
		MaxWait:       Duration(10 * time.Minute),
		MaxKeyLength:  256,
		MaxValueBytes: 1 << 20,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks every field and reports all problems at once.
func (c *HubConfig) Validate() error {
	var merr *multierror.Error

	if c.Version != "1.0" {
		merr = multierror.Append(merr, fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version))
	}

	if c.Listen == "" {
		merr = multierror.Append(merr, fmt.Errorf("listen address is required"))
	}

	if c.Instance == "" {
		merr = multierror.Append(merr, fmt.Errorf("instance name is required"))
	} else if strings.ContainsAny(c.Instance, ": \t\n") {
		merr = multierror.Append(merr, fmt.Errorf("instance name %q must not contain ':' or whitespace", c.Instance))
	}

	if c.MaxWait <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("max_wait must be > 0"))
	}

	if c.DefaultWait < 0 {
		merr = multierror.Append(merr, fmt.Errorf("default_wait must be >= 0"))
	} else if c.MaxWait > 0 && c.DefaultWait > c.MaxWait {
		merr = multierror.Append(merr, fmt.Errorf("default_wait (%s) exceeds max_wait (%s)", c.DefaultWait.Std(), c.MaxWait.Std()))
	}

	if c.MaxKeyLength < 1 || c.MaxKeyLength > 4096 {
		merr = multierror.Append(merr, fmt.Errorf("max_key_length must be between 1 and 4096, got %d", c.MaxKeyLength))
	}

	if c.MaxValueBytes < 0 {
		merr = multierror.Append(merr, fmt.Errorf("max_value_bytes must be >= 0 (0 = unlimited), got %d", c.MaxValueBytes))
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("invalid redis_url: %w", err))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		merr = multierror.Append(merr, fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn' or 'error')", c.Log.Level))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		merr = multierror.Append(merr, fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format))
	}

	return merr.ErrorOrNil()
}

// ApplyEnv overrides fields from environment variables:
// DATAHUB_LISTEN, DATAHUB_INSTANCE, REDIS_URL, DATAHUB_LOG_LEVEL, DATAHUB_LOG_FORMAT.
func (c *HubConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("DATAHUB_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := getenv("DATAHUB_INSTANCE"); v != "" {
		c.Instance = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("DATAHUB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("DATAHUB_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Load reads datahub.yml from the specified path on top of Default().
// Validation is left to the caller so flags and env can be applied first.
func Load(path string) (*HubConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return config, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*HubConfig, error) {
	config, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return config, nil
}
