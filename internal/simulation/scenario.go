package simulation

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/layerbench/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Kind selects how a metric is captured by the harness.
type Kind string

const (
	// KindValue records a drawn value through Harness.MeasureValue.
	KindValue Kind = "value"

	// KindTime advances the virtual clock by a drawn duration in
	// milliseconds inside Harness.Measure.
	KindTime Kind = "time"
)

// MetricSpec describes one source key a driver reports each trial.
type MetricSpec struct {
	Key    string       `yaml:"key"`
	Layer  models.Layer `yaml:"layer"`
	Unit   models.Unit  `yaml:"unit"`
	Kind   Kind         `yaml:"kind,omitempty"`
	Mean   float64      `yaml:"mean"`
	StdDev float64      `yaml:"stddev,omitempty"`

	// FailureRate is the probability in [0, 1] that the operation fails.
	FailureRate float64 `yaml:"failure_rate,omitempty"`
}

// DriverSpec is a synthetic protocol driver.
type DriverSpec struct {
	// Preset names a built-in driver. Fields set alongside it override the
	// preset's.
	Preset      string       `yaml:"preset,omitempty"`
	Protocol    string       `yaml:"protocol,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Metrics     []MetricSpec `yaml:"metrics,omitempty"`

	// FailureRate applies to every metric that sets none of its own.
	FailureRate float64 `yaml:"failure_rate,omitempty"`
}

// Scenario is a complete simulation: drivers and how many trials each runs.
type Scenario struct {
	Name    string       `yaml:"name"`
	Trials  int          `yaml:"trials"`
	Seed    int64        `yaml:"seed"`
	Drivers []DriverSpec `yaml:"drivers"`
}

// Validate checks a resolved driver.
func (d DriverSpec) Validate() error {
	if d.Protocol == "" {
		return fmt.Errorf("driver has no protocol")
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("driver %s has no metrics", d.Protocol)
	}
	if d.FailureRate < 0 || d.FailureRate > 1 {
		return fmt.Errorf("driver %s: failure_rate %v outside [0, 1]", d.Protocol, d.FailureRate)
	}
	seen := make(map[string]bool, len(d.Metrics))
	for _, m := range d.Metrics {
		if m.Key == "" {
			return fmt.Errorf("driver %s: metric with empty key", d.Protocol)
		}
		if seen[m.Key] {
			return fmt.Errorf("driver %s: key %s listed twice", d.Protocol, m.Key)
		}
		seen[m.Key] = true
		if !m.Layer.Valid() {
			return fmt.Errorf("driver %s: key %s has invalid layer %q", d.Protocol, m.Key, m.Layer)
		}
		if !m.Unit.Valid() {
			return fmt.Errorf("driver %s: key %s has invalid unit %q", d.Protocol, m.Key, m.Unit)
		}
		switch m.Kind {
		case "", KindValue:
		case KindTime:
			if m.Unit != models.UnitMilliseconds {
				return fmt.Errorf("driver %s: timed key %s must use ms", d.Protocol, m.Key)
			}
		default:
			return fmt.Errorf("driver %s: key %s has unknown kind %q", d.Protocol, m.Key, m.Kind)
		}
		if m.StdDev < 0 {
			return fmt.Errorf("driver %s: key %s has negative stddev", d.Protocol, m.Key)
		}
		if m.FailureRate < 0 || m.FailureRate > 1 {
			return fmt.Errorf("driver %s: key %s failure_rate %v outside [0, 1]", d.Protocol, m.Key, m.FailureRate)
		}
	}
	return nil
}

// Resolve expands a preset reference and applies overrides.
func (d DriverSpec) Resolve() (DriverSpec, error) {
	if d.Preset == "" {
		return d, d.Validate()
	}
	base, err := Preset(d.Preset)
	if err != nil {
		return DriverSpec{}, err
	}
	if d.Protocol != "" {
		base.Protocol = d.Protocol
	}
	if d.Description != "" {
		base.Description = d.Description
	}
	if len(d.Metrics) > 0 {
		base.Metrics = d.Metrics
	}
	if d.FailureRate != 0 {
		base.FailureRate = d.FailureRate
	}
	return base, base.Validate()
}

// Resolve validates the scenario and resolves every driver.
func (s Scenario) Resolve() (Scenario, error) {
	if s.Trials <= 0 {
		return Scenario{}, fmt.Errorf("scenario %s: trials must be positive, got %d", s.Name, s.Trials)
	}
	if len(s.Drivers) == 0 {
		return Scenario{}, fmt.Errorf("scenario %s: no drivers", s.Name)
	}
	out := s
	out.Drivers = make([]DriverSpec, len(s.Drivers))
	seen := make(map[string]bool, len(s.Drivers))
	for i, d := range s.Drivers {
		r, err := d.Resolve()
		if err != nil {
			return Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		if seen[r.Protocol] {
			return Scenario{}, fmt.Errorf("scenario %s: protocol %s appears twice", s.Name, r.Protocol)
		}
		seen[r.Protocol] = true
		out.Drivers[i] = r
	}
	return out, nil
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return s, nil
}

// LoadScenarioFile reads a YAML scenario from path.
func LoadScenarioFile(p string) (Scenario, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario %s: %w", p, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", p, err)
	}
	return s, nil
}

// Preset returns a built-in driver by name.
func Preset(name string) (DriverSpec, error) {
	data, err := presetFS.ReadFile(path.Join("presets", name+".yaml"))
	if err != nil {
		return DriverSpec{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	var d DriverSpec
	if err := yaml.Unmarshal(data, &d); err != nil {
		return DriverSpec{}, fmt.Errorf("preset %s: %w", name, err)
	}
	return d, nil
}

// Presets lists the built-in driver names, sorted.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
