package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/report"
	"github.com/nvandessel/layerbench/internal/run"
)

func fp(v float64) *float64 { return &v }

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testResult(id, a, b string, at time.Time, transportWinner compare.Winner) *report.Result {
	verdicts := []compare.Verdict{
		{
			MetricName: "transport_time", Layer: models.LayerTransport,
			Unit: models.UnitMilliseconds, Polarity: models.PolarityCost,
			ProtocolAMean: fp(9), ProtocolBMean: fp(40), NA: 3, NB: 3,
			DeltaPct: fp(344.44), PValue: fp(0.03),
			Significance: compare.Significant, Winner: transportWinner,
		},
		{
			MetricName: "compression_ratio", Layer: models.LayerPresentation,
			Unit: models.UnitRatio, Polarity: models.PolarityBenefit,
			ProtocolAMean: fp(2.1), NA: 3,
			Significance: compare.NotTested, Winner: compare.WinnerIncomparable, MissingFrom: "B",
		},
	}
	return report.Build(a, b, verdicts,
		run.RunSummary{Protocol: a, Sealed: true, Trials: 3},
		run.RunSummary{Protocol: b, Sealed: true, Trials: 3},
		report.WithID(id), report.WithClock(func() time.Time { return at }))
}

// storeFactories runs the same contract against every implementation.
func storeFactories(t *testing.T) map[string]func() ResultStore {
	return map[string]func() ResultStore{
		"memory": func() ResultStore { return NewMemoryResultStore() },
		"sqlite": func() ResultStore {
			s, err := NewSQLiteResultStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewSQLiteResultStore() error = %v", err)
			}
			return s
		},
	}
}

func TestResultStore_SaveGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			want := testResult("r1", "lwm2m", "matter", epoch, compare.WinnerA)
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := s.Get(ctx, "r1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ProtocolA() != "lwm2m" || got.ProtocolB() != "matter" {
				t.Errorf("protocols = %s/%s, want lwm2m/matter", got.ProtocolA(), got.ProtocolB())
			}
			if !got.GeneratedAt().Equal(epoch) {
				t.Errorf("GeneratedAt() = %v, want %v", got.GeneratedAt(), epoch)
			}
			vs := got.Verdicts()
			if len(vs) != 2 || vs[0].MetricName != "transport_time" || vs[1].MissingFrom != "B" {
				t.Errorf("Verdicts() = %+v", vs)
			}
			if got.OverallEfficiencyA() != want.OverallEfficiencyA() {
				t.Errorf("OverallEfficiencyA() = %v, want %v", got.OverallEfficiencyA(), want.OverallEfficiencyA())
			}
		})
	}
}

func TestResultStore_SaveDuplicate(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			r := testResult("dup", "lwm2m", "matter", epoch, compare.WinnerA)
			if err := s.Save(ctx, r); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			err := s.Save(ctx, r)
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("second Save() error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestResultStore_GetMissing(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			_, err := s.Get(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestResultStore_List(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			results := []*report.Result{
				testResult("old", "lwm2m", "matter", epoch, compare.WinnerA),
				testResult("new", "lwm2m", "matter", epoch.Add(2*time.Hour), compare.WinnerB),
				testResult("mid", "coap", "mqtt", epoch.Add(time.Hour), compare.WinnerTie),
			}
			for _, r := range results {
				if err := s.Save(ctx, r); err != nil {
					t.Fatalf("Save(%s) error = %v", r.ID(), err)
				}
			}

			tests := []struct {
				name string
				opts ListOptions
				want []string
			}{
				{"all newest first", ListOptions{}, []string{"new", "mid", "old"}},
				{"by protocol", ListOptions{Protocol: "matter"}, []string{"new", "old"}},
				{"limit", ListOptions{Limit: 1}, []string{"new"}},
				{"no match", ListOptions{Protocol: "zigbee"}, nil},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.List(ctx, tt.opts)
					if err != nil {
						t.Fatalf("List() error = %v", err)
					}
					if len(got) != len(tt.want) {
						t.Fatalf("List() returned %d rows, want %d", len(got), len(tt.want))
					}
					for i, id := range tt.want {
						if got[i].ID != id {
							t.Errorf("row %d = %s, want %s", i, got[i].ID, id)
						}
					}
				})
			}

			all, _ := s.List(ctx, ListOptions{Protocol: "lwm2m"})
			if all[0].WinsB != 1 || all[0].WinsA != 0 || all[0].Verdicts != 2 {
				t.Errorf("summary = %+v, want 1 B win over 2 verdicts", all[0])
			}
		})
	}
}

func TestResultStore_MetricHistory(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			s.Save(ctx, testResult("second", "lwm2m", "matter", epoch.Add(time.Hour), compare.WinnerB))
			s.Save(ctx, testResult("first", "lwm2m", "matter", epoch, compare.WinnerA))

			points, err := s.MetricHistory(ctx, "transport_time")
			if err != nil {
				t.Fatalf("MetricHistory() error = %v", err)
			}
			if len(points) != 2 {
				t.Fatalf("MetricHistory() returned %d points, want 2", len(points))
			}
			if points[0].ResultID != "first" || points[0].Winner != compare.WinnerA {
				t.Errorf("points[0] = %+v, want first/A", points[0])
			}
			if points[1].Winner != compare.WinnerB {
				t.Errorf("points[1].Winner = %s, want B", points[1].Winner)
			}
			if points[0].PValue == nil || *points[0].PValue != 0.03 {
				t.Errorf("points[0].PValue = %v, want 0.03", points[0].PValue)
			}

			missing, err := s.MetricHistory(ctx, "compression_ratio")
			if err != nil {
				t.Fatalf("MetricHistory() error = %v", err)
			}
			if len(missing) != 2 || missing[0].DeltaPct != nil {
				t.Errorf("incomparable history = %+v, want 2 points with nil delta", missing)
			}
		})
	}
}

func TestResultStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			s.Save(ctx, testResult("r1", "lwm2m", "matter", epoch, compare.WinnerA))
			if err := s.Delete(ctx, "r1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, "r1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
			}
			points, _ := s.MetricHistory(ctx, "transport_time")
			if len(points) != 0 {
				t.Errorf("history after Delete() has %d points, want 0", len(points))
			}
			if err := s.Delete(ctx, "r1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}
