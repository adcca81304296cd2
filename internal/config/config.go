// Package config provides unified configuration loading for layerbench.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/constants"
)

// Config contains all layerbench configuration settings.
type Config struct {
	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Comparison holds the verdict thresholds.
	Comparison ComparisonConfig `json:"comparison" yaml:"comparison"`

	// Vocabularies lists extra YAML vocabulary files loaded on top of the
	// built-in lwm2m and matter mappings.
	Vocabularies []string `json:"vocabularies,omitempty" yaml:"vocabularies,omitempty"`

	// Store configures comparison history persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Publish configures delivery of results to an MQTT broker.
	Publish PublishConfig `json:"publish" yaml:"publish"`
}

// LoggingConfig configures layerbench's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default),
	// "debug", or "trace". "debug" enables decision logging to
	// .layerbench/decisions.jsonl. "trace" additionally logs every sample.
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ComparisonConfig mirrors compare.Config.
type ComparisonConfig struct {
	TieThresholdPct float64 `json:"tie_threshold_pct" yaml:"tie_threshold_pct"`
	Alpha           float64 `json:"alpha" yaml:"alpha"`
	ConfidenceZ     float64 `json:"confidence_z" yaml:"confidence_z"`
}

// StoreConfig configures the results store.
type StoreConfig struct {
	// Enabled persists every comparison made by the CLI.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir overrides the directory holding results.db. Defaults to
	// <root>/.layerbench.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// PublishConfig configures the MQTT result publisher.
type PublishConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker,omitempty" yaml:"broker,omitempty"`
	Topic    string `json:"topic,omitempty" yaml:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	QoS      int    `json:"qos" yaml:"qos"`
	Retained bool   `json:"retained,omitempty" yaml:"retained,omitempty"`

	// Username and Password authenticate against the broker. Password
	// supports ${VAR} syntax for env vars.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Timeout bounds connecting and waiting for publish acknowledgement.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RedactedPassword returns "(set)" when a password is configured.
func (c PublishConfig) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "(set)"
}

// String implements fmt.Stringer to prevent accidental password logging.
func (c PublishConfig) String() string {
	return fmt.Sprintf("PublishConfig{Enabled:%t, Broker:%s, Topic:%s, Username:%s, Password:%s}",
		c.Enabled, c.Broker, c.Topic, c.Username, c.RedactedPassword())
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Comparison: ComparisonConfig{
			TieThresholdPct: constants.DefaultTieThresholdPct,
			Alpha:           constants.DefaultAlpha,
			ConfidenceZ:     constants.DefaultConfidenceZ,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Publish: PublishConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			Topic:    "layerbench/results",
			ClientID: "layerbench",
			QoS:      1,
			Timeout:  5 * time.Second,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.layerbench/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, constants.DirName, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads an explicit config file and applies environment overrides.
func LoadPath(path string) (*Config, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Publish.Password = expandEnvVars(config.Publish.Password)

	// Relative vocabulary paths are resolved against the config file.
	base := filepath.Dir(path)
	for i, v := range config.Vocabularies {
		if !filepath.IsAbs(v) {
			config.Vocabularies[i] = filepath.Join(base, v)
		}
	}

	return config, nil
}

// ComparatorConfig converts the comparison settings for the comparator.
func (c *Config) ComparatorConfig() compare.Config {
	return compare.Config{
		TieThresholdPct: c.Comparison.TieThresholdPct,
		Alpha:           c.Comparison.Alpha,
		ConfidenceZ:     c.Comparison.ConfidenceZ,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.ComparatorConfig().Validate(); err != nil {
		return fmt.Errorf("comparison: %w", err)
	}

	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	if c.Publish.Enabled {
		if c.Publish.Broker == "" {
			return fmt.Errorf("publish.broker is required when publishing is enabled")
		}
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish.topic is required when publishing is enabled")
		}
	}
	if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
		return fmt.Errorf("publish.qos must be 0, 1 or 2, got %d", c.Publish.QoS)
	}
	if c.Publish.Timeout < 0 {
		return fmt.Errorf("publish.timeout must be non-negative, got %v", c.Publish.Timeout)
	}

	return nil
}

func env(name string) string {
	return os.Getenv(constants.EnvPrefix + name)
}

func envBool(v string) bool {
	return v == "true" || v == "1"
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := env("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if v := env("TIE_THRESHOLD_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Comparison.TieThresholdPct = f
		}
	}
	if v := env("ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Comparison.Alpha = f
		}
	}
	if v := env("CONFIDENCE_Z"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Comparison.ConfidenceZ = f
		}
	}

	if v := env("VOCABULARIES"); v != "" {
		config.Vocabularies = filepath.SplitList(v)
	}

	if v := env("STORE_ENABLED"); v != "" {
		config.Store.Enabled = envBool(v)
	}
	if v := env("STORE_DIR"); v != "" {
		config.Store.Dir = v
	}

	if v := env("PUBLISH_ENABLED"); v != "" {
		config.Publish.Enabled = envBool(v)
	}
	if v := env("MQTT_BROKER"); v != "" {
		config.Publish.Broker = v
	}
	if v := env("MQTT_TOPIC"); v != "" {
		config.Publish.Topic = v
	}
	if v := env("MQTT_USERNAME"); v != "" {
		config.Publish.Username = v
	}
	if v := env("MQTT_PASSWORD"); v != "" {
		config.Publish.Password = v
	}
	if v := env("MQTT_QOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Publish.QoS = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
