// Package compare computes per-metric verdicts between two sealed runs:
// relative delta, Welch's t-test, Cohen's d, a confidence interval of the
// mean difference and a polarity-aware winner.
package compare

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/nvandessel/layerbench/internal/constants"
	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/run"
)

// ErrRunNotSealed is returned when Compare is given an open run.
var ErrRunNotSealed = errors.New("run is not sealed")

// Config holds the verdict thresholds.
type Config struct {
	// TieThresholdPct is the |delta_pct| below which a verdict is a tie.
	TieThresholdPct float64 `json:"tie_threshold_pct" yaml:"tie_threshold_pct"`

	// Alpha is the significance level for the Welch test.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// ConfidenceZ is the z-score used for the difference interval.
	ConfidenceZ float64 `json:"confidence_z" yaml:"confidence_z"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TieThresholdPct: constants.DefaultTieThresholdPct,
		Alpha:           constants.DefaultAlpha,
		ConfidenceZ:     constants.DefaultConfidenceZ,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.TieThresholdPct < 0 || math.IsNaN(c.TieThresholdPct) {
		return fmt.Errorf("tie_threshold_pct must be non-negative, got %v", c.TieThresholdPct)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("alpha must be in (0, 1), got %v", c.Alpha)
	}
	if !(c.ConfidenceZ > 0) {
		return fmt.Errorf("confidence_z must be positive, got %v", c.ConfidenceZ)
	}
	return nil
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithDecisionLogger records every verdict as a decision event.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(c *Comparator) { c.decisions = dl }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefinitions supplies canonical definitions so practical-significance
// thresholds can be applied.
func WithDefinitions(defs []models.MetricDef) Option {
	return func(c *Comparator) {
		for _, d := range defs {
			c.thresholds[d.Name] = d.PracticalThreshold
		}
	}
}

// Comparator turns two run summaries into verdicts. It holds no per-call
// state and is safe for concurrent use.
type Comparator struct {
	cfg        Config
	thresholds map[string]float64
	decisions  *logging.DecisionLogger
	logger     *slog.Logger
}

// New creates a Comparator.
func New(cfg Config, opts ...Option) *Comparator {
	c := &Comparator{
		cfg:        cfg,
		thresholds: make(map[string]float64),
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the thresholds in use.
func (c *Comparator) Config() Config {
	return c.cfg
}

// Compare produces one verdict per metric present in either run, ordered
// by OSI layer then metric name. Metrics present in only one run get an
// Incomparable verdict naming the side that lacks them; nothing is
// zero-filled. Both runs must be sealed.
func (c *Comparator) Compare(a, b run.RunSummary) ([]Verdict, error) {
	if !a.Sealed {
		return nil, fmt.Errorf("protocol A (%s): %w", a.Protocol, ErrRunNotSealed)
	}
	if !b.Sealed {
		return nil, fmt.Errorf("protocol B (%s): %w", b.Protocol, ErrRunNotSealed)
	}

	flagged := make(map[string]bool)
	for _, m := range a.FlaggedMetrics {
		flagged[m] = true
	}
	for _, m := range b.FlaggedMetrics {
		flagged[m] = true
	}

	names := make(map[string]bool, len(a.Stats)+len(b.Stats))
	for name := range a.Stats {
		names[name] = true
	}
	for name := range b.Stats {
		names[name] = true
	}

	verdicts := make([]Verdict, 0, len(names))
	for name := range names {
		sa, inA := a.Stats[name]
		sb, inB := b.Stats[name]

		var v Verdict
		switch {
		case inA && inB:
			v = c.CompareMetric(sa, sb)
		case inA:
			v = incomparable(sa, "B")
		default:
			v = incomparable(sb, "A")
		}
		v.Flagged = flagged[name]
		verdicts = append(verdicts, v)
	}
	SortVerdicts(verdicts)

	for _, v := range verdicts {
		c.logDecision(a.Protocol, b.Protocol, v)
	}
	c.logger.Debug("comparison complete",
		"protocol_a", a.Protocol, "protocol_b", b.Protocol, "verdicts", len(verdicts))
	return verdicts, nil
}

// CompareMetric compares one metric present in both runs.
func (c *Comparator) CompareMetric(a, b run.LayerStat) Verdict {
	v := Verdict{
		MetricName:      a.MetricName,
		Layer:           a.Layer,
		Unit:            a.Unit,
		Polarity:        a.Polarity,
		ProtocolAMean:   finite(a.Mean),
		ProtocolBMean:   finite(b.Mean),
		NA:              a.N,
		NB:              b.N,
		EffectMagnitude: constants.EffectUnknown,
	}

	if v.ProtocolAMean != nil && v.ProtocolBMean != nil && a.Mean != 0 {
		v.DeltaPct = finite((b.Mean - a.Mean) / a.Mean * 100)
	}

	res, err := WelchTest(a, b)
	var insufficient *InsufficientSampleError
	switch {
	case errors.As(err, &insufficient):
		v.Significance = Inconclusive
	case err != nil:
		c.logger.Warn("significance test failed", "metric", a.MetricName, "error", err)
		v.Significance = Inconclusive
	default:
		v.PValue = finite(res.P)
		if res.P < c.cfg.Alpha {
			v.Significance = Significant
		} else {
			v.Significance = NotSignificant
		}
	}

	if d, ok := CohensD(a, b); ok {
		v.EffectSize = &d
		v.EffectMagnitude = constants.ClassifyEffect(d)
	}
	if lo, hi, ok := DiffInterval(a, b, c.cfg.ConfidenceZ); ok {
		v.CILow, v.CIHigh = finite(lo), finite(hi)
	}
	if th := c.thresholds[a.MetricName]; th > 0 && v.ProtocolAMean != nil && v.ProtocolBMean != nil {
		v.PracticallySignificant = math.Abs(b.Mean-a.Mean) > th
	}

	v.Winner = c.decide(v, a, b)
	return v
}

// decide applies the winner rule: ties first, then significance, then
// polarity.
func (c *Comparator) decide(v Verdict, a, b run.LayerStat) Winner {
	if v.Significance == Inconclusive || a.Mean == b.Mean {
		return WinnerTie
	}
	if v.DeltaPct != nil && math.Abs(*v.DeltaPct) < c.cfg.TieThresholdPct {
		return WinnerTie
	}
	if v.Significance != Significant || !a.Polarity.Valid() {
		return WinnerInconclusive
	}
	if a.Polarity.Better(a.Mean, b.Mean) {
		return WinnerA
	}
	return WinnerB
}

func incomparable(s run.LayerStat, missingFrom string) Verdict {
	v := Verdict{
		MetricName:      s.MetricName,
		Layer:           s.Layer,
		Unit:            s.Unit,
		Polarity:        s.Polarity,
		EffectMagnitude: constants.EffectUnknown,
		Significance:    NotTested,
		Winner:          WinnerIncomparable,
		MissingFrom:     missingFrom,
	}
	if missingFrom == "B" {
		v.ProtocolAMean = finite(s.Mean)
		v.NA = s.N
	} else {
		v.ProtocolBMean = finite(s.Mean)
		v.NB = s.N
	}
	return v
}

func (c *Comparator) logDecision(protocolA, protocolB string, v Verdict) {
	if c.decisions == nil {
		return
	}
	c.decisions.Log("verdict", map[string]any{
		"protocol_a":   protocolA,
		"protocol_b":   protocolB,
		"metric":       v.MetricName,
		"layer":        v.Layer,
		"mean_a":       v.ProtocolAMean,
		"mean_b":       v.ProtocolBMean,
		"delta_pct":    v.DeltaPct,
		"p_value":      v.PValue,
		"effect_size":  v.EffectSize,
		"significance": v.Significance,
		"winner":       v.Winner,
		"missing_from": v.MissingFrom,
	})
}

// SortVerdicts orders verdicts by OSI layer, then metric name.
func SortVerdicts(vs []Verdict) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Layer.Index() != vs[j].Layer.Index() {
			return vs[i].Layer.Index() < vs[j].Layer.Index()
		}
		return vs[i].MetricName < vs[j].MetricName
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
