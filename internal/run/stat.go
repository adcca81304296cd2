package run

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/nvandessel/layerbench/internal/models"
)

// LayerStat summarizes one metric over every accepted trial of a run.
// N counts successful samples; failed samples are counted in Failed and
// never enter the moments.
type LayerStat struct {
	MetricName string
	Layer      models.Layer
	Unit       models.Unit
	Polarity   models.Polarity

	Mean   float64
	StdDev float64 // sample standard deviation, n-1 denominator
	Median float64
	Min    float64
	Max    float64
	N      int
	Failed int

	// InsufficientSample is set when fewer than two successful samples
	// exist, so StdDev carries no information.
	InsufficientSample bool
}

// Definition returns the metric definition the stat was computed for.
func (s LayerStat) Definition() models.MetricDef {
	return models.MetricDef{Name: s.MetricName, Layer: s.Layer, Unit: s.Unit, Polarity: s.Polarity}
}

// Sample returns the stat as a moments-only sample usable by Welch's test.
func (s LayerStat) Sample() stats.TTestSample {
	return moments{n: s.N, mean: s.Mean, sd: s.StdDev}
}

type moments struct {
	n    int
	mean float64
	sd   float64
}

func (m moments) Weight() float64   { return float64(m.n) }
func (m moments) Mean() float64     { return m.mean }
func (m moments) Variance() float64 { return m.sd * m.sd }

// computeStat derives the summary for one metric from its samples.
func computeStat(def models.MetricDef, samples []models.LayerSample) LayerStat {
	st := LayerStat{
		MetricName: def.Name,
		Layer:      def.Layer,
		Unit:       def.Unit,
		Polarity:   def.Polarity,
	}

	xs := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !s.Usable() {
			st.Failed++
			continue
		}
		xs = append(xs, s.Value)
	}
	st.N = len(xs)
	st.InsufficientSample = st.N < 2

	if st.N == 0 {
		nan := math.NaN()
		st.Mean, st.StdDev, st.Median, st.Min, st.Max = nan, nan, nan, nan, nan
		return st
	}

	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}
	st.Mean = sample.Mean()
	st.Min, st.Max = sample.Bounds()
	st.Median = sample.Quantile(0.5)
	if st.N >= 2 {
		st.StdDev = sample.StdDev()
	}
	return st
}

type layerStatJSON struct {
	MetricName         string          `json:"metric_name"`
	Layer              models.Layer    `json:"layer"`
	Unit               models.Unit     `json:"unit"`
	Polarity           models.Polarity `json:"polarity"`
	Mean               *float64        `json:"mean"`
	StdDev             *float64        `json:"stddev"`
	Median             *float64        `json:"median"`
	Min                *float64        `json:"min"`
	Max                *float64        `json:"max"`
	N                  int             `json:"n"`
	Failed             int             `json:"failed,omitempty"`
	InsufficientSample bool            `json:"insufficient_sample,omitempty"`
}

// MarshalJSON writes NaN moments as null.
func (s LayerStat) MarshalJSON() ([]byte, error) {
	return json.Marshal(layerStatJSON{
		MetricName:         s.MetricName,
		Layer:              s.Layer,
		Unit:               s.Unit,
		Polarity:           s.Polarity,
		Mean:               finite(s.Mean),
		StdDev:             finite(s.StdDev),
		Median:             finite(s.Median),
		Min:                finite(s.Min),
		Max:                finite(s.Max),
		N:                  s.N,
		Failed:             s.Failed,
		InsufficientSample: s.InsufficientSample,
	})
}

// UnmarshalJSON reads null moments back as NaN.
func (s *LayerStat) UnmarshalJSON(data []byte) error {
	var in layerStatJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = LayerStat{
		MetricName:         in.MetricName,
		Layer:              in.Layer,
		Unit:               in.Unit,
		Polarity:           in.Polarity,
		Mean:               orNaN(in.Mean),
		StdDev:             orNaN(in.StdDev),
		Median:             orNaN(in.Median),
		Min:                orNaN(in.Min),
		Max:                orNaN(in.Max),
		N:                  in.N,
		Failed:             in.Failed,
		InsufficientSample: in.InsufficientSample,
	}
	return nil
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
