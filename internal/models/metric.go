package models

import "fmt"

// MetricDef is the canonical definition of a metric. Polarity always travels
// with the definition so nothing downstream has to guess direction from a name.
type MetricDef struct {
	Name     string   `json:"name" yaml:"name"`
	Layer    Layer    `json:"layer" yaml:"layer"`
	Unit     Unit     `json:"unit" yaml:"unit"`
	Polarity Polarity `json:"polarity" yaml:"polarity"`

	// PracticalThreshold is the absolute difference, in Unit, above which a
	// gap between two protocols is considered practically meaningful.
	// Zero disables the check.
	PracticalThreshold float64 `json:"practical_threshold,omitempty" yaml:"practical_threshold,omitempty"`
}

// Validate checks that the definition is complete.
func (d MetricDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	if !d.Layer.Valid() {
		return fmt.Errorf("metric %s: invalid layer %q", d.Name, d.Layer)
	}
	if !d.Unit.Valid() {
		return fmt.Errorf("metric %s: invalid unit %q", d.Name, d.Unit)
	}
	if !d.Polarity.Valid() {
		return fmt.Errorf("metric %s: invalid polarity %q", d.Name, d.Polarity)
	}
	if d.PracticalThreshold < 0 {
		return fmt.Errorf("metric %s: practical threshold must be non-negative", d.Name)
	}
	return nil
}

// SameShape reports whether two definitions agree on layer, unit and polarity.
func (d MetricDef) SameShape(o MetricDef) bool {
	return d.Name == o.Name && d.Layer == o.Layer && d.Unit == o.Unit && d.Polarity == o.Polarity
}

// Less orders definitions by OSI layer, then by name.
func (d MetricDef) Less(o MetricDef) bool {
	if d.Layer.Index() != o.Layer.Index() {
		return d.Layer.Index() < o.Layer.Index()
	}
	return d.Name < o.Name
}
