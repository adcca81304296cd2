package models

import (
	"fmt"
	"math"
	"time"
)

// ProtocolRunRecord is the raw per-protocol input shape exchanged with the
// tools that collect samples.
type ProtocolRunRecord struct {
	Protocol string         `json:"protocol" yaml:"protocol"`
	Trials   []RecordSample `json:"trials" yaml:"trials"`
}

// RecordSample is one entry of a ProtocolRunRecord. MetricName may be either
// a canonical metric name or a key from the protocol's own vocabulary.
type RecordSample struct {
	// Trial groups entries into trials. When nil, a new trial starts each
	// time a metric name repeats.
	Trial      *int      `json:"trial,omitempty" yaml:"trial,omitempty"`
	Layer      string    `json:"layer,omitempty" yaml:"layer,omitempty"`
	MetricName string    `json:"metric_name" yaml:"metric_name"`
	Value      *float64  `json:"value" yaml:"value"`
	Unit       string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Failed     bool      `json:"failed,omitempty" yaml:"failed,omitempty"`
	RecordedAt time.Time `json:"recorded_at,omitempty" yaml:"recorded_at,omitempty"`
}

// Raw converts the entry to a RawSample, parsing the optional layer and
// unit hints. A missing value is treated as a failed sample.
func (r RecordSample) Raw() (RawSample, error) {
	raw := RawSample{
		Key:        r.MetricName,
		Value:      math.NaN(),
		Failed:     r.Failed || r.Value == nil,
		RecordedAt: r.RecordedAt,
	}
	if r.MetricName == "" {
		return RawSample{}, fmt.Errorf("record sample has no metric_name")
	}
	if r.Value != nil && !r.Failed {
		raw.Value = *r.Value
	}
	if r.Layer != "" {
		l, err := ParseLayer(r.Layer)
		if err != nil {
			return RawSample{}, fmt.Errorf("metric %s: %w", r.MetricName, err)
		}
		raw.Layer = l
	}
	if r.Unit != "" {
		u, err := ParseUnit(r.Unit)
		if err != nil {
			return RawSample{}, fmt.Errorf("metric %s: %w", r.MetricName, err)
		}
		raw.Unit = u
	}
	return raw, nil
}

// GroupTrials splits the record's flat sample list into trials.
//
// Entries with an explicit trial index are grouped by that index, in
// ascending index order. Entries without one are split positionally: a
// metric name seen twice starts a new trial. Mixing both styles is an error.
func (rec ProtocolRunRecord) GroupTrials() ([][]RawSample, error) {
	if len(rec.Trials) == 0 {
		return nil, nil
	}

	indexed := rec.Trials[0].Trial != nil
	for i, s := range rec.Trials {
		if (s.Trial != nil) != indexed {
			return nil, fmt.Errorf("record %s: entry %d mixes indexed and positional trials", rec.Protocol, i)
		}
	}

	if indexed {
		return rec.groupIndexed()
	}
	return rec.groupPositional()
}

func (rec ProtocolRunRecord) groupIndexed() ([][]RawSample, error) {
	byIndex := make(map[int][]RawSample)
	maxIdx := -1
	for _, s := range rec.Trials {
		idx := *s.Trial
		if idx < 0 {
			return nil, fmt.Errorf("record %s: negative trial index %d", rec.Protocol, idx)
		}
		raw, err := s.Raw()
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Protocol, err)
		}
		byIndex[idx] = append(byIndex[idx], raw)
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	trials := make([][]RawSample, 0, len(byIndex))
	for i := 0; i <= maxIdx; i++ {
		if samples, ok := byIndex[i]; ok {
			trials = append(trials, samples)
		}
	}
	return trials, nil
}

func (rec ProtocolRunRecord) groupPositional() ([][]RawSample, error) {
	var trials [][]RawSample
	var current []RawSample
	seen := make(map[string]bool)

	for _, s := range rec.Trials {
		raw, err := s.Raw()
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Protocol, err)
		}
		if seen[raw.Key] {
			trials = append(trials, current)
			current = nil
			seen = make(map[string]bool)
		}
		seen[raw.Key] = true
		current = append(current, raw)
	}
	if len(current) > 0 {
		trials = append(trials, current)
	}
	return trials, nil
}

// RecordFromTrials flattens trials of raw samples into a record with
// explicit trial indices.
func RecordFromTrials(protocol string, trials [][]RawSample) ProtocolRunRecord {
	rec := ProtocolRunRecord{Protocol: protocol}
	for i, trial := range trials {
		for _, raw := range trial {
			idx := i
			entry := RecordSample{
				Trial:      &idx,
				Layer:      string(raw.Layer),
				MetricName: raw.Key,
				Unit:       string(raw.Unit),
				Failed:     raw.Failed,
				RecordedAt: raw.RecordedAt,
			}
			if !raw.Failed && !math.IsNaN(raw.Value) && !math.IsInf(raw.Value, 0) {
				v := raw.Value
				entry.Value = &v
			}
			rec.Trials = append(rec.Trials, entry)
		}
	}
	return rec
}
