// Package normalize maps each protocol driver's own sample vocabulary onto
// the canonical LayerSample schema.
//
// Vocabularies are validated once, when the Normalizer is built, so an
// unmapped or contradictory key fails at startup instead of corrupting a
// comparison later. Normalize itself is pure.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nvandessel/layerbench/internal/models"
)

type table struct {
	vocab  Vocabulary
	direct map[string]models.MetricDef // source key or canonical name
	parts  map[string]models.MetricDef // composite part key
	sumOf  map[string][]string         // composite metric -> part keys
	ignore map[string]bool
	defs   map[string]models.MetricDef // canonical name
}

// Normalizer holds the validated vocabularies of every known protocol.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	tables map[string]*table
	defs   map[string]models.MetricDef
}

// New validates the vocabularies and builds a Normalizer. A canonical
// metric must carry the same layer, unit and polarity in every protocol
// that reports it.
func New(vocabs ...Vocabulary) (*Normalizer, error) {
	n := &Normalizer{
		tables: make(map[string]*table, len(vocabs)),
		defs:   make(map[string]models.MetricDef),
	}
	for _, v := range vocabs {
		if err := n.add(v); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewBuiltin builds a Normalizer from the embedded vocabularies plus any
// extra ones supplied.
func NewBuiltin(extra ...Vocabulary) (*Normalizer, error) {
	vocabs, err := Builtin()
	if err != nil {
		return nil, err
	}
	return New(append(vocabs, extra...)...)
}

func (n *Normalizer) add(v Vocabulary) error {
	if v.Protocol == "" {
		return &VocabularyError{Reason: "protocol is required"}
	}
	if _, dup := n.tables[v.Protocol]; dup {
		return &VocabularyError{Protocol: v.Protocol, Reason: "registered twice"}
	}
	if len(v.Metrics) == 0 {
		return &VocabularyError{Protocol: v.Protocol, Reason: "no metrics defined"}
	}

	t := &table{
		vocab:  v,
		direct: make(map[string]models.MetricDef),
		parts:  make(map[string]models.MetricDef),
		sumOf:  make(map[string][]string),
		ignore: make(map[string]bool),
		defs:   make(map[string]models.MetricDef),
	}
	owner := make(map[string]string) // source key -> metric name

	claim := func(key, metric string) error {
		if key == "" {
			return &VocabularyError{Protocol: v.Protocol, Reason: fmt.Sprintf("metric %s has an empty key", metric)}
		}
		if prev, ok := owner[key]; ok && prev != metric {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("key %q mapped to both %s and %s", key, prev, metric)}
		} else if ok {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("key %q listed twice for %s", key, metric)}
		}
		owner[key] = metric
		return nil
	}

	for _, e := range v.Metrics {
		if err := e.Validate(); err != nil {
			return &VocabularyError{Protocol: v.Protocol, Reason: err.Error()}
		}
		if _, dup := t.defs[e.Name]; dup {
			return &VocabularyError{Protocol: v.Protocol, Reason: fmt.Sprintf("metric %s defined twice", e.Name)}
		}
		if e.Composite() && len(e.Keys) > 0 {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("metric %s: keys and sum_of are mutually exclusive", e.Name)}
		}
		if e.Composite() && len(e.SumOf) < 2 {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("metric %s: sum_of needs at least two parts", e.Name)}
		}
		if e.Composite() && e.Unit != models.UnitMilliseconds && e.Unit != models.UnitBytes {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("metric %s: only ms and bytes metrics can be summed", e.Name)}
		}

		if err := n.register(e.MetricDef); err != nil {
			return &VocabularyError{Protocol: v.Protocol, Reason: err.Error()}
		}

		if err := claim(e.Name, e.Name); err != nil {
			return err
		}
		t.direct[e.Name] = e.MetricDef
		for _, k := range e.Keys {
			if err := claim(k, e.Name); err != nil {
				return err
			}
			t.direct[k] = e.MetricDef
		}
		for _, k := range e.SumOf {
			if err := claim(k, e.Name); err != nil {
				return err
			}
			t.parts[k] = e.MetricDef
		}
		if e.Composite() {
			t.sumOf[e.Name] = append([]string(nil), e.SumOf...)
		}
		t.defs[e.Name] = e.MetricDef
	}

	for _, k := range v.Ignore {
		if metric, ok := owner[k]; ok {
			return &VocabularyError{Protocol: v.Protocol,
				Reason: fmt.Sprintf("ignored key %q is mapped to %s", k, metric)}
		}
		t.ignore[k] = true
	}

	n.tables[v.Protocol] = t
	return nil
}

// register records a canonical definition, enforcing cross-protocol agreement.
func (n *Normalizer) register(def models.MetricDef) error {
	prev, ok := n.defs[def.Name]
	if !ok {
		n.defs[def.Name] = def
		return nil
	}
	if !prev.SameShape(def) {
		return fmt.Errorf("metric %s conflicts with an earlier definition (%s/%s/%s vs %s/%s/%s)",
			def.Name, prev.Layer, prev.Unit, prev.Polarity, def.Layer, def.Unit, def.Polarity)
	}
	switch {
	case prev.PracticalThreshold == 0:
		n.defs[def.Name] = def
	case def.PracticalThreshold != 0 && def.PracticalThreshold != prev.PracticalThreshold:
		return fmt.Errorf("metric %s: practical threshold %v conflicts with %v",
			def.Name, def.PracticalThreshold, prev.PracticalThreshold)
	}
	return nil
}

// Normalize converts one trial's raw samples into canonical samples,
// ordered by layer then metric name.
//
// An unmapped key fails the whole trial with UnknownMetricError; nothing is
// dropped silently. Keys on the vocabulary's ignore list are skipped.
// Composite metrics are summed from their parts; a failed part fails the
// composite.
func (n *Normalizer) Normalize(protocol string, raw []models.RawSample) ([]models.LayerSample, error) {
	t, ok := n.tables[protocol]
	if !ok {
		return nil, &UnknownProtocolError{Protocol: protocol}
	}

	out := make([]models.LayerSample, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	collected := make(map[string]map[string]models.RawSample)

	for _, r := range raw {
		if t.ignore[r.Key] {
			continue
		}

		if def, ok := t.direct[r.Key]; ok {
			if err := checkHints(protocol, r, def); err != nil {
				return nil, err
			}
			if seen[def.Name] {
				return nil, &DuplicateSampleError{Protocol: protocol, Metric: def.Name}
			}
			seen[def.Name] = true
			out = append(out, toSample(def, r.Value, r.Failed, r.RecordedAt))
			continue
		}

		if def, ok := t.parts[r.Key]; ok {
			if err := checkHints(protocol, r, def); err != nil {
				return nil, err
			}
			got := collected[def.Name]
			if got == nil {
				got = make(map[string]models.RawSample)
				collected[def.Name] = got
			}
			if _, dup := got[r.Key]; dup {
				return nil, &DuplicateSampleError{Protocol: protocol, Metric: def.Name}
			}
			got[r.Key] = r
			continue
		}

		return nil, &UnknownMetricError{Protocol: protocol, Key: r.Key}
	}

	metrics := make([]string, 0, len(collected))
	for name := range collected {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	for _, name := range metrics {
		got := collected[name]
		if seen[name] {
			return nil, &DuplicateSampleError{Protocol: protocol, Metric: name}
		}

		var (
			missing []string
			sum     float64
			failed  bool
			latest  time.Time
		)
		for _, k := range t.sumOf[name] {
			part, ok := got[k]
			if !ok {
				missing = append(missing, k)
				continue
			}
			if part.Failed || math.IsNaN(part.Value) {
				failed = true
			}
			sum += part.Value
			if part.RecordedAt.After(latest) {
				latest = part.RecordedAt
			}
		}
		if len(missing) > 0 {
			return nil, &IncompleteMetricError{Protocol: protocol, Metric: name, Missing: missing}
		}
		seen[name] = true
		out = append(out, toSample(t.defs[name], sum, failed, latest))
	}

	models.SortSamples(out)
	return out, nil
}

// Check verifies already-canonical samples against the protocol's
// vocabulary. A metric the vocabulary does not define fails with
// UnknownMetricError; a sample whose layer, unit or polarity differs from
// the definition fails with SchemaConflictError.
func (n *Normalizer) Check(protocol string, samples []models.LayerSample) error {
	t, ok := n.tables[protocol]
	if !ok {
		return &UnknownProtocolError{Protocol: protocol}
	}
	for _, s := range samples {
		def, ok := t.defs[s.MetricName]
		if !ok {
			return &UnknownMetricError{Protocol: protocol, Key: s.MetricName}
		}
		conflict := func(field, got, want string) error {
			return &SchemaConflictError{Protocol: protocol, Key: s.MetricName, Field: field, Got: got, Want: want}
		}
		switch {
		case s.Layer != def.Layer:
			return conflict("layer", string(s.Layer), string(def.Layer))
		case s.Unit != def.Unit:
			return conflict("unit", string(s.Unit), string(def.Unit))
		case s.Polarity != def.Polarity:
			return conflict("polarity", string(s.Polarity), string(def.Polarity))
		}
	}
	return nil
}

func checkHints(protocol string, r models.RawSample, def models.MetricDef) error {
	if r.Layer != "" && r.Layer != def.Layer {
		return &SchemaConflictError{Protocol: protocol, Key: r.Key, Field: "layer", Got: string(r.Layer), Want: string(def.Layer)}
	}
	if r.Unit != "" && r.Unit != def.Unit {
		return &SchemaConflictError{Protocol: protocol, Key: r.Key, Field: "unit", Got: string(r.Unit), Want: string(def.Unit)}
	}
	return nil
}

func toSample(def models.MetricDef, value float64, failed bool, at time.Time) models.LayerSample {
	if failed || math.IsNaN(value) {
		return models.FailedLayerSample(def, at)
	}
	return models.NewLayerSample(def, value, at)
}

// Definitions returns the canonical metric catalog across all protocols,
// ordered by layer then name.
func (n *Normalizer) Definitions() []models.MetricDef {
	defs := make([]models.MetricDef, 0, len(n.defs))
	for _, d := range n.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Less(defs[j]) })
	return defs
}

// Definition looks up one canonical metric.
func (n *Normalizer) Definition(name string) (models.MetricDef, bool) {
	d, ok := n.defs[name]
	return d, ok
}

// Protocols returns the registered protocol identities, sorted.
func (n *Normalizer) Protocols() []string {
	out := make([]string, 0, len(n.tables))
	for p := range n.tables {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Vocabulary returns the vocabulary registered for protocol.
func (n *Normalizer) Vocabulary(protocol string) (Vocabulary, bool) {
	t, ok := n.tables[protocol]
	if !ok {
		return Vocabulary{}, false
	}
	return t.vocab, true
}
