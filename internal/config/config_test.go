package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Comparison defaults
	if config.Comparison.TieThresholdPct != 1.0 {
		t.Errorf("expected TieThresholdPct 1.0, got %f", config.Comparison.TieThresholdPct)
	}
	if config.Comparison.Alpha != 0.05 {
		t.Errorf("expected Alpha 0.05, got %f", config.Comparison.Alpha)
	}
	if config.Comparison.ConfidenceZ != 1.96 {
		t.Errorf("expected ConfidenceZ 1.96, got %f", config.Comparison.ConfidenceZ)
	}

	// Store and publish defaults
	if !config.Store.Enabled {
		t.Error("expected Store.Enabled to be true by default")
	}
	if config.Publish.Enabled {
		t.Error("expected Publish.Enabled to be false by default")
	}
	if config.Publish.Timeout != 5*time.Second {
		t.Errorf("expected Publish.Timeout 5s, got %v", config.Publish.Timeout)
	}
	if config.Publish.QoS != 1 {
		t.Errorf("expected Publish.QoS 1, got %d", config.Publish.QoS)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
comparison:
  tie_threshold_pct: 2.5
  alpha: 0.01
  confidence_z: 2.576

vocabularies:
  - vocab/coap.yaml
  - /etc/layerbench/zigbee.yaml

store:
  enabled: false

publish:
  enabled: true
  broker: tcp://broker.local:1883
  topic: lab/results
  qos: 2
  timeout: 10s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Comparison.TieThresholdPct != 2.5 || config.Comparison.Alpha != 0.01 {
		t.Errorf("comparison = %+v", config.Comparison)
	}
	if config.Store.Enabled {
		t.Error("expected Store.Enabled to be false")
	}
	if !config.Publish.Enabled || config.Publish.Broker != "tcp://broker.local:1883" || config.Publish.QoS != 2 {
		t.Errorf("publish = %v", config.Publish)
	}
	if config.Publish.Timeout != 10*time.Second {
		t.Errorf("expected Publish.Timeout 10s, got %v", config.Publish.Timeout)
	}
	// Unset fields keep their defaults.
	if config.Publish.ClientID != "layerbench" {
		t.Errorf("expected default ClientID, got %q", config.Publish.ClientID)
	}

	if want := filepath.Join(tmpDir, "vocab", "coap.yaml"); config.Vocabularies[0] != want {
		t.Errorf("relative vocabulary = %q, want %q", config.Vocabularies[0], want)
	}
	if config.Vocabularies[1] != "/etc/layerbench/zigbee.yaml" {
		t.Errorf("absolute vocabulary = %q", config.Vocabularies[1])
	}

	cmp := config.ComparatorConfig()
	if cmp.Alpha != 0.01 || cmp.ConfidenceZ != 2.576 {
		t.Errorf("ComparatorConfig() = %+v", cmp)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
publish:
  username: lab
  password: ${TEST_MQTT_PASSWORD}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_MQTT_PASSWORD", "expanded-secret")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Publish.Password != "expanded-secret" {
		t.Errorf("expected Password 'expanded-secret', got '%s'", config.Publish.Password)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LAYERBENCH_LOG_LEVEL", "debug")
	t.Setenv("LAYERBENCH_ALPHA", "0.1")
	t.Setenv("LAYERBENCH_TIE_THRESHOLD_PCT", "5")
	t.Setenv("LAYERBENCH_STORE_ENABLED", "false")
	t.Setenv("LAYERBENCH_PUBLISH_ENABLED", "1")
	t.Setenv("LAYERBENCH_MQTT_BROKER", "tcp://10.0.0.5:1883")
	t.Setenv("LAYERBENCH_MQTT_QOS", "0")
	t.Setenv("LAYERBENCH_VOCABULARIES", "/a.yaml"+string(os.PathListSeparator)+"/b.yaml")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if config.Comparison.Alpha != 0.1 {
		t.Errorf("expected Alpha 0.1, got %f", config.Comparison.Alpha)
	}
	if config.Comparison.TieThresholdPct != 5 {
		t.Errorf("expected TieThresholdPct 5, got %f", config.Comparison.TieThresholdPct)
	}
	if config.Store.Enabled {
		t.Error("expected Store.Enabled to be false")
	}
	if !config.Publish.Enabled || config.Publish.Broker != "tcp://10.0.0.5:1883" || config.Publish.QoS != 0 {
		t.Errorf("publish = %v", config.Publish)
	}
	if len(config.Vocabularies) != 2 {
		t.Errorf("expected 2 vocabularies, got %v", config.Vocabularies)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("LAYERBENCH_ALPHA", "five percent")

	config := Default()
	applyEnvOverrides(config)

	if config.Comparison.Alpha != 0.05 {
		t.Errorf("expected default Alpha to survive, got %f", config.Comparison.Alpha)
	}
}

func TestLoadPath_AppliesEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LAYERBENCH_LOG_LEVEL", "trace")

	config, err := LoadPath(configPath)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected env to win over file, got %q", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative tie threshold", func(c *Config) { c.Comparison.TieThresholdPct = -1 }, true},
		{"alpha zero", func(c *Config) { c.Comparison.Alpha = 0 }, true},
		{"alpha one", func(c *Config) { c.Comparison.Alpha = 1 }, true},
		{"zero z", func(c *Config) { c.Comparison.ConfidenceZ = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"publish without broker", func(c *Config) {
			c.Publish.Enabled = true
			c.Publish.Broker = ""
		}, true},
		{"publish without topic", func(c *Config) {
			c.Publish.Enabled = true
			c.Publish.Topic = ""
		}, true},
		{"disabled publish without broker", func(c *Config) { c.Publish.Broker = "" }, false},
		{"qos out of range", func(c *Config) { c.Publish.QoS = 3 }, true},
		{"negative timeout", func(c *Config) { c.Publish.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "error", "warn", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestPublishConfigString(t *testing.T) {
	cfg := PublishConfig{
		Enabled:  true,
		Broker:   "tcp://broker:1883",
		Topic:    "lab/results",
		Username: "lab",
		Password: "hunter2-very-secret",
	}

	s := cfg.String()
	if strings.Contains(s, cfg.Password) {
		t.Errorf("String() must not contain the password, got: %s", s)
	}
	if !strings.Contains(s, "(set)") {
		t.Errorf("String() should show the password as set, got: %s", s)
	}
	if !strings.Contains(s, "tcp://broker:1883") {
		t.Errorf("String() should contain broker, got: %s", s)
	}
	if (PublishConfig{}).RedactedPassword() != "" {
		t.Error("RedactedPassword() of empty password should be empty")
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
comparison:
  alpha: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_UsesHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LAYERBENCH_LOG_LEVEL", "")

	dir := filepath.Join(home, ".layerbench")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("logging:\n  level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("expected Logging.Level 'warn', got %q", config.Logging.Level)
	}
}
