package report

import (
	"math"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/models"
)

// OverallEfficiency scores each protocol as the unweighted mean of its
// per-metric scores in [0, 1]. Only metrics with a finite mean on both
// sides count. For a cost metric the better side scores 1 and the other
// best/x; for a benefit metric x/best. NaN is returned when no metric
// qualifies. The figure is advisory and never replaces the verdicts.
func OverallEfficiency(verdicts []compare.Verdict) (a, b float64) {
	var sumA, sumB float64
	n := 0
	for _, v := range verdicts {
		if !v.Comparable() || !v.Polarity.Valid() || v.ProtocolAMean == nil || v.ProtocolBMean == nil {
			continue
		}
		sa, sb := MetricScores(v.Polarity, *v.ProtocolAMean, *v.ProtocolBMean)
		sumA += sa
		sumB += sb
		n++
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	return sumA / float64(n), sumB / float64(n)
}

// MetricScores normalizes two means of one metric to [0, 1] by polarity.
// Both scores are NaN when the polarity is not recognized.
func MetricScores(p models.Polarity, a, b float64) (float64, float64) {
	switch p {
	case models.PolarityBenefit:
		best := math.Max(a, b)
		return benefitScore(a, best), benefitScore(b, best)
	case models.PolarityCost:
		best := math.Min(a, b)
		return costScore(a, best), costScore(b, best)
	}
	return math.NaN(), math.NaN()
}

func costScore(x, best float64) float64 {
	if x <= 0 || x == best {
		return 1
	}
	return clamp(best / x)
}

func benefitScore(x, best float64) float64 {
	if x == best {
		return 1
	}
	if best <= 0 {
		return 0
	}
	return clamp(x / best)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
