package compare

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/nvandessel/layerbench/internal/constants"
	"github.com/nvandessel/layerbench/internal/run"
)

// InsufficientSampleError is returned by WelchTest when either side has
// fewer than two successful samples. Compare absorbs it into an
// Inconclusive significance.
type InsufficientSampleError struct {
	Metric string
	NA, NB int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("metric %s: need at least %d samples per run for a significance test, have %d and %d",
		e.Metric, constants.MinSamplesForTest, e.NA, e.NB)
}

// TestResult is the outcome of a two-sided Welch t-test.
type TestResult struct {
	T   float64
	DoF float64
	P   float64
}

// WelchTest runs a two-sided Welch's t-test on the moments of two stats.
//
// When both samples have zero variance the test statistic is undefined;
// the difference is then deterministic, so P is 0 if the means differ and
// 1 if they are equal.
func WelchTest(a, b run.LayerStat) (TestResult, error) {
	if a.N < constants.MinSamplesForTest || b.N < constants.MinSamplesForTest {
		return TestResult{}, &InsufficientSampleError{Metric: a.MetricName, NA: a.N, NB: b.N}
	}

	if a.StdDev == 0 && b.StdDev == 0 {
		if a.Mean == b.Mean {
			return TestResult{T: 0, DoF: math.NaN(), P: 1}, nil
		}
		return TestResult{T: math.Copysign(math.Inf(1), a.Mean-b.Mean), DoF: math.NaN(), P: 0}, nil
	}

	res, err := stats.TwoSampleWelchTTest(a.Sample(), b.Sample(), stats.LocationDiffers)
	if err != nil {
		return TestResult{}, fmt.Errorf("welch test for %s: %w", a.MetricName, err)
	}
	return TestResult{T: res.T, DoF: res.DoF, P: res.P}, nil
}

// CohensD returns the standardized mean difference (b - a) over the
// pooled standard deviation. ok is false when either side has fewer than
// two samples or the pooled deviation is zero.
func CohensD(a, b run.LayerStat) (d float64, ok bool) {
	if a.N < 2 || b.N < 2 {
		return 0, false
	}
	na, nb := float64(a.N), float64(b.N)
	pooled := math.Sqrt(((na-1)*a.StdDev*a.StdDev + (nb-1)*b.StdDev*b.StdDev) / (na + nb - 2))
	if pooled == 0 || math.IsNaN(pooled) {
		return 0, false
	}
	return (b.Mean - a.Mean) / pooled, true
}

// DiffInterval returns the z-based confidence interval of the mean
// difference b - a, using the Welch standard error.
func DiffInterval(a, b run.LayerStat, z float64) (lo, hi float64, ok bool) {
	if a.N < 2 || b.N < 2 {
		return 0, 0, false
	}
	se := math.Sqrt(a.StdDev*a.StdDev/float64(a.N) + b.StdDev*b.StdDev/float64(b.N))
	diff := b.Mean - a.Mean
	return diff - z*se, diff + z*se, true
}
