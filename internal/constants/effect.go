package constants

import "math"

// EffectMagnitude is the conventional label for a Cohen's d value.
type EffectMagnitude string

const (
	EffectNegligible EffectMagnitude = "negligible"
	EffectSmall      EffectMagnitude = "small"
	EffectMedium     EffectMagnitude = "medium"
	EffectLarge      EffectMagnitude = "large"

	// EffectUnknown is used when no effect size could be computed.
	EffectUnknown EffectMagnitude = "unknown"
)

// ClassifyEffect maps a Cohen's d value to its magnitude band.
func ClassifyEffect(d float64) EffectMagnitude {
	if math.IsNaN(d) {
		return EffectUnknown
	}
	switch a := math.Abs(d); {
	case a < SmallEffect:
		return EffectNegligible
	case a < MediumEffect:
		return EffectSmall
	case a < LargeEffect:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// String returns the string representation of the magnitude.
func (m EffectMagnitude) String() string {
	return string(m)
}
