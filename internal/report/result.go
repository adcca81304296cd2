// Package report assembles the canonical ComparisonResult handed to
// reporting collaborators, and its JSON record form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/run"
)

// Result is an immutable comparison of two protocol runs. Every accessor
// returns a copy; a new comparison always produces a new Result.
type Result struct {
	id          string
	protocolA   string
	protocolB   string
	generatedAt time.Time
	verdicts    []compare.Verdict
	efficiencyA float64
	efficiencyB float64
	summaryA    run.RunSummary
	summaryB    run.RunSummary
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	id  string
	now func() time.Time
}

// WithID fixes the result ID instead of generating a UUID.
func WithID(id string) BuildOption {
	return func(o *buildOptions) { o.id = id }
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) BuildOption {
	return func(o *buildOptions) { o.now = now }
}

// Build assembles a Result. Inputs are copied, so the runs behind the
// summaries may be discarded afterwards.
func Build(protocolA, protocolB string, verdicts []compare.Verdict, a, b run.RunSummary, opts ...BuildOption) *Result {
	o := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	r := &Result{
		id:          o.id,
		protocolA:   protocolA,
		protocolB:   protocolB,
		generatedAt: o.now().UTC(),
		verdicts:    cloneVerdicts(verdicts),
		summaryA:    a.Clone(),
		summaryB:    b.Clone(),
	}
	r.efficiencyA, r.efficiencyB = OverallEfficiency(r.verdicts)
	return r
}

func (r *Result) ID() string             { return r.id }
func (r *Result) ProtocolA() string      { return r.protocolA }
func (r *Result) ProtocolB() string      { return r.protocolB }
func (r *Result) GeneratedAt() time.Time { return r.generatedAt }

// Verdicts returns a copy of the verdicts in layer, then metric order.
func (r *Result) Verdicts() []compare.Verdict {
	return cloneVerdicts(r.verdicts)
}

// OverallEfficiencyA returns protocol A's advisory score, NaN if undefined.
func (r *Result) OverallEfficiencyA() float64 { return r.efficiencyA }

// OverallEfficiencyB returns protocol B's advisory score, NaN if undefined.
func (r *Result) OverallEfficiencyB() float64 { return r.efficiencyB }

// SummaryA returns a copy of protocol A's run summary.
func (r *Result) SummaryA() run.RunSummary { return r.summaryA.Clone() }

// SummaryB returns a copy of protocol B's run summary.
func (r *Result) SummaryB() run.RunSummary { return r.summaryB.Clone() }

// Winners tallies verdicts by outcome.
func (r *Result) Winners() map[compare.Winner]int {
	out := make(map[compare.Winner]int)
	for _, v := range r.verdicts {
		out[v.Winner]++
	}
	return out
}

// Record is the serialized form of a Result.
type Record struct {
	ID                 string            `json:"id"`
	ProtocolA          string            `json:"protocol_a"`
	ProtocolB          string            `json:"protocol_b"`
	GeneratedAt        time.Time         `json:"generated_at"`
	Verdicts           []compare.Verdict `json:"verdicts"`
	OverallEfficiencyA *float64          `json:"overall_efficiency_a"`
	OverallEfficiencyB *float64          `json:"overall_efficiency_b"`
	SummaryA           run.RunSummary    `json:"summary_a"`
	SummaryB           run.RunSummary    `json:"summary_b"`
}

// Record returns the result's serializable form.
func (r *Result) Record() Record {
	return Record{
		ID:                 r.id,
		ProtocolA:          r.protocolA,
		ProtocolB:          r.protocolB,
		GeneratedAt:        r.generatedAt,
		Verdicts:           cloneVerdicts(r.verdicts),
		OverallEfficiencyA: finite(r.efficiencyA),
		OverallEfficiencyB: finite(r.efficiencyB),
		SummaryA:           r.summaryA.Clone(),
		SummaryB:           r.summaryB.Clone(),
	}
}

// FromRecord rebuilds a Result from its record. Verdict order and values
// are kept exactly as recorded.
func FromRecord(rec Record) (*Result, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("result record has no id")
	}
	if rec.ProtocolA == "" || rec.ProtocolB == "" {
		return nil, fmt.Errorf("result record %s: both protocol identities are required", rec.ID)
	}
	return &Result{
		id:          rec.ID,
		protocolA:   rec.ProtocolA,
		protocolB:   rec.ProtocolB,
		generatedAt: rec.GeneratedAt.UTC(),
		verdicts:    cloneVerdicts(rec.Verdicts),
		efficiencyA: orNaN(rec.OverallEfficiencyA),
		efficiencyB: orNaN(rec.OverallEfficiencyB),
		summaryA:    rec.SummaryA.Clone(),
		summaryB:    rec.SummaryB.Clone(),
	}, nil
}

// MarshalJSON encodes the result as its Record.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// UnmarshalJSON decodes a Record into an empty Result.
func (r *Result) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	decoded, err := FromRecord(rec)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// Encode writes the result as indented JSON.
func Encode(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// Decode reads a result written by Encode.
func Decode(rd io.Reader) (*Result, error) {
	var r Result
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &r, nil
}

func cloneVerdicts(vs []compare.Verdict) []compare.Verdict {
	out := make([]compare.Verdict, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
