// Package models defines the canonical measurement types shared by the
// harness, normalizer, aggregator and comparator.
package models

import (
	"encoding/json"
	"math"
	"time"
)

// RawSample is a measurement expressed in a driver's own vocabulary.
// Layer and Unit are optional hints; when set they must agree with the
// vocabulary entry the key maps to.
type RawSample struct {
	Key        string    `json:"key"`
	Layer      Layer     `json:"layer,omitempty"`
	Unit       Unit      `json:"unit,omitempty"`
	Value      float64   `json:"value"`
	Failed     bool      `json:"failed,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LayerSample is a single canonical measurement for one layer of one
// protocol trial. It is a value type with no mutators.
type LayerSample struct {
	Layer      Layer
	MetricName string
	Value      float64
	Unit       Unit
	Polarity   Polarity
	RecordedAt time.Time

	// Failed marks a sample whose operation returned an error. Value is NaN.
	Failed bool
}

// NewLayerSample builds a successful sample for the given definition.
func NewLayerSample(def MetricDef, value float64, at time.Time) LayerSample {
	return LayerSample{
		Layer:      def.Layer,
		MetricName: def.Name,
		Value:      value,
		Unit:       def.Unit,
		Polarity:   def.Polarity,
		RecordedAt: at,
	}
}

// FailedLayerSample builds a failed sample for the given definition.
func FailedLayerSample(def MetricDef, at time.Time) LayerSample {
	s := NewLayerSample(def, math.NaN(), at)
	s.Failed = true
	return s
}

// Usable reports whether the sample carries a finite measured value.
func (s LayerSample) Usable() bool {
	return !s.Failed && !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// Raw converts the sample back to a driver-vocabulary sample keyed by its
// metric name.
func (s LayerSample) Raw() RawSample {
	return RawSample{
		Key:        s.MetricName,
		Layer:      s.Layer,
		Unit:       s.Unit,
		Value:      s.Value,
		Failed:     s.Failed,
		RecordedAt: s.RecordedAt,
	}
}

type layerSampleJSON struct {
	Layer      Layer     `json:"layer"`
	MetricName string    `json:"metric_name"`
	Value      *float64  `json:"value"`
	Unit       Unit      `json:"unit"`
	Polarity   Polarity  `json:"polarity,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Failed     bool      `json:"failed,omitempty"`
}

// MarshalJSON encodes failed or non-finite values as null.
func (s LayerSample) MarshalJSON() ([]byte, error) {
	out := layerSampleJSON{
		Layer:      s.Layer,
		MetricName: s.MetricName,
		Unit:       s.Unit,
		Polarity:   s.Polarity,
		RecordedAt: s.RecordedAt,
		Failed:     s.Failed,
	}
	if s.Usable() {
		v := s.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null value as NaN.
func (s *LayerSample) UnmarshalJSON(data []byte) error {
	var in layerSampleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = LayerSample{
		Layer:      in.Layer,
		MetricName: in.MetricName,
		Value:      math.NaN(),
		Unit:       in.Unit,
		Polarity:   in.Polarity,
		RecordedAt: in.RecordedAt,
		Failed:     in.Failed,
	}
	if in.Value != nil {
		s.Value = *in.Value
	}
	return nil
}
