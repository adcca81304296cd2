package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/layerbench/internal/config"
	"github.com/nvandessel/layerbench/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage layerbench configuration",
		Long: `View and modify layerbench configuration settings.

Configuration is stored in ~/.layerbench/config.yaml unless --config is
given. LAYERBENCH_* environment variables override the file.

Examples:
  layerbench config list                         # Show all settings
  layerbench config get comparison.alpha         # Get a specific setting
  layerbench config set publish.enabled true     # Set a setting
  layerbench config set publish.password '${MQTT_PASSWORD}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			cfg := app.cfg

			if app.jsonOut {
				// Redact password before JSON serialization to prevent leakage
				redacted := *cfg
				redacted.Publish.Password = cfg.Publish.RedactedPassword()
				return json.NewEncoder(cmd.OutOrStdout()).Encode(redacted)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Logging:")
			fmt.Fprintf(w, "  logging.level:                 %s\n", cfg.Logging.Level)
			fmt.Fprintf(w, "  logging.format:                %s\n", valueOrDefault(cfg.Logging.Format, "text"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Comparison:")
			fmt.Fprintf(w, "  comparison.tie_threshold_pct:  %g\n", cfg.Comparison.TieThresholdPct)
			fmt.Fprintf(w, "  comparison.alpha:              %g\n", cfg.Comparison.Alpha)
			fmt.Fprintf(w, "  comparison.confidence_z:       %g\n", cfg.Comparison.ConfidenceZ)
			fmt.Fprintf(w, "  vocabularies:                  %s\n", valueOrDefault(strings.Join(cfg.Vocabularies, ", "), "(built-in only)"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Store:")
			fmt.Fprintf(w, "  store.enabled:                 %v\n", cfg.Store.Enabled)
			fmt.Fprintf(w, "  store.dir:                     %s\n", valueOrDefault(cfg.Store.Dir, "(<root>/.layerbench)"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Publish:")
			fmt.Fprintf(w, "  publish.enabled:               %v\n", cfg.Publish.Enabled)
			fmt.Fprintf(w, "  publish.broker:                %s\n", cfg.Publish.Broker)
			fmt.Fprintf(w, "  publish.topic:                 %s\n", cfg.Publish.Topic)
			fmt.Fprintf(w, "  publish.client_id:             %s\n", cfg.Publish.ClientID)
			fmt.Fprintf(w, "  publish.qos:                   %d\n", cfg.Publish.QoS)
			fmt.Fprintf(w, "  publish.retained:              %v\n", cfg.Publish.Retained)
			fmt.Fprintf(w, "  publish.username:              %s\n", valueOrDefault(cfg.Publish.Username, "(not set)"))
			fmt.Fprintf(w, "  publish.password:              %s\n", valueOrDefault(cfg.Publish.RedactedPassword(), "(not set)"))
			fmt.Fprintf(w, "  publish.timeout:               %v\n", cfg.Publish.Timeout)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			key := args[0]

			value, found := getConfigValue(app.cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if app.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			// Edit the raw file so environment overrides and ${VAR}
			// expansion are not persisted.
			cfg := config.Default()
			if data, readErr := os.ReadFile(path); readErr == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return fmt.Errorf("failed to parse config: %w", err)
				}
			} else if !os.IsNotExist(readErr) {
				return fmt.Errorf("failed to read config: %w", readErr)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := saveConfig(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// configFilePath returns --config, or ~/.layerbench/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (interface{}, bool) {
	switch key {
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.format":
		return cfg.Logging.Format, true
	case "comparison.tie_threshold_pct":
		return cfg.Comparison.TieThresholdPct, true
	case "comparison.alpha":
		return cfg.Comparison.Alpha, true
	case "comparison.confidence_z":
		return cfg.Comparison.ConfidenceZ, true
	case "store.enabled":
		return cfg.Store.Enabled, true
	case "store.dir":
		return cfg.Store.Dir, true
	case "publish.enabled":
		return cfg.Publish.Enabled, true
	case "publish.broker":
		return cfg.Publish.Broker, true
	case "publish.topic":
		return cfg.Publish.Topic, true
	case "publish.client_id":
		return cfg.Publish.ClientID, true
	case "publish.qos":
		return cfg.Publish.QoS, true
	case "publish.retained":
		return cfg.Publish.Retained, true
	case "publish.username":
		return cfg.Publish.Username, true
	case "publish.password":
		return cfg.Publish.RedactedPassword(), true
	case "publish.timeout":
		return cfg.Publish.Timeout.String(), true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return f, nil
	}

	switch key {
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "comparison.tie_threshold_pct":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Comparison.TieThresholdPct = f
	case "comparison.alpha":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Comparison.Alpha = f
	case "comparison.confidence_z":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Comparison.ConfidenceZ = f
	case "store.enabled":
		cfg.Store.Enabled = value == "true" || value == "1"
	case "store.dir":
		cfg.Store.Dir = value
	case "publish.enabled":
		cfg.Publish.Enabled = value == "true" || value == "1"
	case "publish.broker":
		cfg.Publish.Broker = value
	case "publish.topic":
		cfg.Publish.Topic = value
	case "publish.client_id":
		cfg.Publish.ClientID = value
	case "publish.qos":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid qos: %s (must be 0, 1 or 2)", value)
		}
		cfg.Publish.QoS = n
	case "publish.retained":
		cfg.Publish.Retained = value == "true" || value == "1"
	case "publish.username":
		cfg.Publish.Username = value
	case "publish.password":
		cfg.Publish.Password = value
	case "publish.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Publish.Timeout = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// saveConfig writes the configuration as YAML.
func saveConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
