// Package run aggregates repeated trials of one protocol into a ProtocolRun
// and keeps per-metric summary statistics current as trials arrive.
//
// A ProtocolRun has a single writer. AddTrial and Seal must be called from
// one logical sequence; concurrent submission for the same run needs
// external locking. Once sealed, a run is read-only and may be read from
// any number of goroutines.
package run

import (
	"errors"
	"sort"

	"github.com/nvandessel/layerbench/internal/models"
)

// State is the lifecycle state of a run.
type State string

const (
	StateOpen   State = "open"
	StateSealed State = "sealed"
)

// ProtocolRun owns the ordered trials of one protocol identity and the
// statistics derived from them.
type ProtocolRun struct {
	protocol string
	id       string
	state    State

	trials  []models.Trial
	defs    map[string]models.MetricDef // fixed by the first accepted trial
	stats   map[string]LayerStat
	partial bool
	flagged map[string]bool

	rejected int
}

// New creates an open, empty run.
func New(protocol, id string) *ProtocolRun {
	return &ProtocolRun{
		protocol: protocol,
		id:       id,
		state:    StateOpen,
		stats:    make(map[string]LayerStat),
		flagged:  make(map[string]bool),
	}
}

// Protocol returns the run's protocol identity.
func (r *ProtocolRun) Protocol() string { return r.protocol }

// ID returns the run identifier.
func (r *ProtocolRun) ID() string { return r.id }

// State returns the lifecycle state.
func (r *ProtocolRun) State() State { return r.state }

// Sealed reports whether the run is sealed.
func (r *ProtocolRun) Sealed() bool { return r.state == StateSealed }

// Len returns the number of accepted trials.
func (r *ProtocolRun) Len() int { return len(r.trials) }

// Partial reports whether any trial was rejected for a schema mismatch.
func (r *ProtocolRun) Partial() bool { return r.partial }

// Rejected returns the number of trials rejected for a schema mismatch.
func (r *ProtocolRun) Rejected() int { return r.rejected }

// AddTrial appends one trial of canonical samples. Every sample must carry
// a valid layer, unit and polarity; otherwise the trial is rejected with
// InvalidSampleError.
//
// The first accepted trial fixes the run's metric set. A later trial whose
// set differs is rejected with SchemaMismatchError; the run keeps its
// earlier trials, becomes partial, and the divergent metrics are flagged.
// Statistics are recomputed after every accepted trial.
func (r *ProtocolRun) AddTrial(samples []models.LayerSample) error {
	if r.state == StateSealed {
		return &SealedRunMutationError{Protocol: r.protocol, RunID: r.id}
	}
	if len(samples) == 0 {
		return ErrEmptyTrial
	}
	for _, s := range samples {
		if err := definitionOf(s).Validate(); err != nil {
			return &InvalidSampleError{Protocol: r.protocol, Metric: s.MetricName, Err: err}
		}
	}

	trial, err := models.NewTrial(samples)
	if err != nil {
		var dup *DuplicateSampleError
		if errors.As(err, &dup) {
			dup.Protocol = r.protocol
		}
		return err
	}

	if r.defs == nil {
		r.defs = make(map[string]models.MetricDef, len(trial))
		for name, s := range trial {
			r.defs[name] = definitionOf(s)
		}
	} else if mismatch := r.diff(trial); mismatch != nil {
		r.partial = true
		r.rejected++
		for _, m := range mismatch.Metrics() {
			r.flagged[m] = true
		}
		return mismatch
	}

	r.trials = append(r.trials, trial)
	r.recompute()
	return nil
}

func (r *ProtocolRun) diff(trial models.Trial) *SchemaMismatchError {
	var missing, extra, changed []string
	for name, def := range r.defs {
		s, ok := trial[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !definitionOf(s).SameShape(def) {
			changed = append(changed, name)
		}
	}
	for name := range trial {
		if _, ok := r.defs[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(changed) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(changed)
	return &SchemaMismatchError{Protocol: r.protocol, Missing: missing, Extra: extra, Changed: changed}
}

func (r *ProtocolRun) recompute() {
	for name, def := range r.defs {
		samples := make([]models.LayerSample, 0, len(r.trials))
		for _, t := range r.trials {
			samples = append(samples, t[name])
		}
		r.stats[name] = computeStat(def, samples)
	}
}

// Summarize returns a copy of the current per-metric statistics. Calling it
// repeatedly without adding trials yields identical results.
func (r *ProtocolRun) Summarize() map[string]LayerStat {
	out := make(map[string]LayerStat, len(r.stats))
	for k, v := range r.stats {
		out[k] = v
	}
	return out
}

// MetricSet returns the run's established metric names, sorted. It is
// empty until the first trial is accepted.
func (r *ProtocolRun) MetricSet() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlaggedMetrics returns the metrics named by rejected trials, sorted.
func (r *ProtocolRun) FlaggedMetrics() []string {
	names := make([]string, 0, len(r.flagged))
	for name := range r.flagged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trials returns a deep copy of the accepted trials in order.
func (r *ProtocolRun) Trials() []models.Trial {
	out := make([]models.Trial, len(r.trials))
	for i, t := range r.trials {
		out[i] = t.Clone()
	}
	return out
}

// Seal makes the run read-only. Sealing twice is a no-op.
func (r *ProtocolRun) Seal() {
	r.state = StateSealed
}

// Snapshot copies the run's summary by value, so the run may be discarded
// afterwards without invalidating anything built from the snapshot.
func (r *ProtocolRun) Snapshot() RunSummary {
	return RunSummary{
		Protocol:       r.protocol,
		RunID:          r.id,
		Trials:         len(r.trials),
		Rejected:       r.rejected,
		Sealed:         r.Sealed(),
		Partial:        r.partial,
		FlaggedMetrics: r.FlaggedMetrics(),
		Stats:          r.Summarize(),
	}
}

func definitionOf(s models.LayerSample) models.MetricDef {
	return models.MetricDef{Name: s.MetricName, Layer: s.Layer, Unit: s.Unit, Polarity: s.Polarity}
}
