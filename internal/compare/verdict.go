package compare

import (
	"github.com/nvandessel/layerbench/internal/constants"
	"github.com/nvandessel/layerbench/internal/models"
)

// Winner is the per-metric outcome of a comparison.
type Winner string

const (
	WinnerA            Winner = "A"
	WinnerB            Winner = "B"
	WinnerTie          Winner = "Tie"
	WinnerInconclusive Winner = "Inconclusive"
	WinnerIncomparable Winner = "Incomparable"
)

// Significance is the outcome of the significance test.
type Significance string

const (
	Significant    Significance = "significant"
	NotSignificant Significance = "not_significant"

	// Inconclusive means the test could not be run, usually because a
	// side had fewer than two successful samples.
	Inconclusive Significance = "inconclusive"

	// NotTested is used for metrics present in only one run.
	NotTested Significance = "not_tested"
)

// Verdict compares one metric between protocol A and protocol B.
// Nil pointers mark values that are undefined for this comparison.
type Verdict struct {
	MetricName string          `json:"metric_name"`
	Layer      models.Layer    `json:"layer"`
	Unit       models.Unit     `json:"unit"`
	Polarity   models.Polarity `json:"polarity"`

	ProtocolAMean *float64 `json:"protocol_a_mean"`
	ProtocolBMean *float64 `json:"protocol_b_mean"`
	NA            int      `json:"n_a"`
	NB            int      `json:"n_b"`

	// DeltaPct is (meanB - meanA) / meanA * 100; nil when meanA is zero.
	DeltaPct *float64 `json:"delta_pct"`

	PValue          *float64                  `json:"p_value"`
	EffectSize      *float64                  `json:"effect_size"`
	EffectMagnitude constants.EffectMagnitude `json:"effect_magnitude"`
	CILow           *float64                  `json:"ci_low"`
	CIHigh          *float64                  `json:"ci_high"`

	Significance           Significance `json:"significance"`
	PracticallySignificant bool         `json:"practically_significant"`
	Winner                 Winner       `json:"winner"`

	// MissingFrom names the side lacking the metric ("A" or "B") when
	// Winner is Incomparable.
	MissingFrom string `json:"missing_from,omitempty"`

	// Flagged is set when either run rejected a trial over this metric.
	Flagged bool `json:"flagged,omitempty"`
}

// Definition returns the metric definition the verdict was computed for.
func (v Verdict) Definition() models.MetricDef {
	return models.MetricDef{Name: v.MetricName, Layer: v.Layer, Unit: v.Unit, Polarity: v.Polarity}
}

// Comparable reports whether the metric was present in both runs.
func (v Verdict) Comparable() bool {
	return v.Winner != WinnerIncomparable
}

// Clone returns a deep copy of the verdict.
func (v Verdict) Clone() Verdict {
	c := v
	c.ProtocolAMean = clonePtr(v.ProtocolAMean)
	c.ProtocolBMean = clonePtr(v.ProtocolBMean)
	c.DeltaPct = clonePtr(v.DeltaPct)
	c.PValue = clonePtr(v.PValue)
	c.EffectSize = clonePtr(v.EffectSize)
	c.CILow = clonePtr(v.CILow)
	c.CIHigh = clonePtr(v.CIHigh)
	return c
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
