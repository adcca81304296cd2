package models

import (
	"fmt"
	"sort"
)

// DuplicateSampleError reports a metric that appears more than once in a
// single trial. Each (trial, layer, metric) is measured exactly once.
type DuplicateSampleError struct {
	Protocol string
	Metric   string
}

func (e *DuplicateSampleError) Error() string {
	if e.Protocol == "" {
		return fmt.Sprintf("duplicate sample for metric %q in trial", e.Metric)
	}
	return fmt.Sprintf("%s: duplicate sample for metric %q in trial", e.Protocol, e.Metric)
}

// Trial is one measurement pass: one sample per tracked metric, keyed by
// canonical metric name.
type Trial map[string]LayerSample

// NewTrial indexes samples by metric name, rejecting duplicates.
func NewTrial(samples []LayerSample) (Trial, error) {
	t := make(Trial, len(samples))
	for _, s := range samples {
		if _, dup := t[s.MetricName]; dup {
			return nil, &DuplicateSampleError{Metric: s.MetricName}
		}
		t[s.MetricName] = s
	}
	return t, nil
}

// MetricSet returns the trial's metric names, sorted.
func (t Trial) MetricSet() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Samples returns the trial's samples ordered by layer, then metric name.
func (t Trial) Samples() []LayerSample {
	out := make([]LayerSample, 0, len(t))
	for _, s := range t {
		out = append(out, s)
	}
	SortSamples(out)
	return out
}

// Clone returns a copy of the trial.
func (t Trial) Clone() Trial {
	c := make(Trial, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// SortSamples orders samples by OSI layer, then metric name.
func SortSamples(samples []LayerSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if a.Layer.Index() != b.Layer.Index() {
			return a.Layer.Index() < b.Layer.Index()
		}
		return a.MetricName < b.MetricName
	})
}
