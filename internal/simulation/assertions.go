package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/report"
	"github.com/nvandessel/layerbench/internal/run"
)

// AssertWinner asserts the winner for one metric.
func AssertWinner(t *testing.T, res *report.Result, metric string, want compare.Winner) {
	t.Helper()
	v := VerdictFor(t, res, metric)
	if v.Winner != want {
		t.Errorf("AssertWinner: %s winner = %s, want %s (delta %v, p %v)",
			metric, v.Winner, want, deref(v.DeltaPct), deref(v.PValue))
	}
}

// AssertIncomparable asserts that metric was reported by one side only.
func AssertIncomparable(t *testing.T, res *report.Result, metric, missingFrom string) {
	t.Helper()
	v := VerdictFor(t, res, metric)
	if v.Winner != compare.WinnerIncomparable || v.MissingFrom != missingFrom {
		t.Errorf("AssertIncomparable: %s = %s missing from %q, want Incomparable missing from %q",
			metric, v.Winner, v.MissingFrom, missingFrom)
	}
}

// AssertPolarityConsistent checks every decided verdict against the sign
// of its delta: for a cost metric B is better when the delta is negative,
// for a benefit metric when it is positive.
func AssertPolarityConsistent(t *testing.T, res *report.Result) {
	t.Helper()
	for _, v := range res.Verdicts() {
		if v.Winner != compare.WinnerA && v.Winner != compare.WinnerB {
			continue
		}
		if v.DeltaPct == nil || *v.DeltaPct == 0 {
			t.Errorf("AssertPolarityConsistent: %s decided as %s without a delta", v.MetricName, v.Winner)
			continue
		}
		bHigher := *v.DeltaPct > 0
		bBetter := bHigher == (v.Polarity == models.PolarityBenefit)
		if bBetter != (v.Winner == compare.WinnerB) {
			t.Errorf("AssertPolarityConsistent: %s (%s) delta %.2f%% but winner %s",
				v.MetricName, v.Polarity, *v.DeltaPct, v.Winner)
		}
	}
}

// AssertVerdictOrder asserts verdicts are ordered by layer, then metric name.
func AssertVerdictOrder(t *testing.T, res *report.Result) {
	t.Helper()
	vs := res.Verdicts()
	for i := 1; i < len(vs); i++ {
		prev, cur := vs[i-1], vs[i]
		li, lj := prev.Layer.Index(), cur.Layer.Index()
		if li > lj || (li == lj && prev.MetricName >= cur.MetricName) {
			t.Errorf("AssertVerdictOrder: %s/%s before %s/%s",
				prev.Layer, prev.MetricName, cur.Layer, cur.MetricName)
		}
	}
}

// AssertSummaryStable asserts that summarizing a run twice yields identical
// statistics.
func AssertSummaryStable(t *testing.T, r *run.ProtocolRun) {
	t.Helper()
	first, second := r.Summarize(), r.Summarize()
	if len(first) != len(second) {
		t.Fatalf("AssertSummaryStable: %d stats then %d", len(first), len(second))
	}
	for name, a := range first {
		b, ok := second[name]
		if !ok {
			t.Errorf("AssertSummaryStable: %s missing from second summary", name)
			continue
		}
		if !sameFloat(a.Mean, b.Mean) || !sameFloat(a.StdDev, b.StdDev) ||
			!sameFloat(a.Median, b.Median) || a.N != b.N || a.Failed != b.Failed {
			t.Errorf("AssertSummaryStable: %s changed: %+v then %+v", name, a, b)
		}
	}
}

// AssertMeanNear asserts that a summarized mean lies within tol of want.
func AssertMeanNear(t *testing.T, s run.RunSummary, metric string, want, tol float64) {
	t.Helper()
	st, ok := s.Stat(metric)
	if !ok {
		t.Fatalf("AssertMeanNear: %s not summarized for %s", metric, s.Protocol)
	}
	if math.Abs(st.Mean-want) > tol {
		t.Errorf("AssertMeanNear: %s %s mean = %.3f, want %.3f ± %.3f", s.Protocol, metric, st.Mean, want, tol)
	}
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
