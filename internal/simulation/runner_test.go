package simulation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/normalize"
)

func fixedDriver(kind Kind, mean, stddev, failureRate float64) DriverSpec {
	unit := models.UnitBytes
	if kind == KindTime {
		unit = models.UnitMilliseconds
	}
	return DriverSpec{
		Protocol: "lwm2m",
		Metrics: []MetricSpec{{
			Key: "connection_time_ms", Layer: models.LayerTransport, Unit: unit,
			Kind: kind, Mean: mean, StdDev: stddev, FailureRate: failureRate,
		}},
	}
}

func TestRunnerDeterministic(t *testing.T) {
	sc := Scenario{Name: "det", Trials: 5, Seed: 42, Drivers: []DriverSpec{MustPreset("lwm2m"), MustPreset("matter")}}

	first := MustRun(t, sc)
	second := MustRun(t, sc)
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed produced different records")
	}

	sc.Seed = 43
	third := MustRun(t, sc)
	if reflect.DeepEqual(first, third) {
		t.Error("different seeds produced identical records")
	}
}

func TestRunnerRecordShape(t *testing.T) {
	records := MustRun(t, Scenario{Trials: 3, Seed: 1, Drivers: []DriverSpec{MustPreset("lwm2m"), MustPreset("matter")}})
	if len(records) != 2 || records[0].Protocol != "lwm2m" || records[1].Protocol != "matter" {
		t.Fatalf("records out of driver order: %v", records)
	}

	for i, rec := range records {
		trials, err := rec.GroupTrials()
		if err != nil {
			t.Fatalf("GroupTrials() error = %v", err)
		}
		if len(trials) != 3 {
			t.Errorf("%s: %d trials, want 3", rec.Protocol, len(trials))
		}
		want := len(MustPreset(rec.Protocol).Metrics)
		for j, trial := range trials {
			if len(trial) != want {
				t.Errorf("record %d trial %d: %d samples, want %d", i, j, len(trial), want)
			}
		}
	}
}

func TestRunnerTimedMetricUsesVirtualClock(t *testing.T) {
	trials, err := NewRunner(WithStart(Epoch)).RunDriver(context.Background(), fixedDriver(KindTime, 32, 0, 0), 4, 1)
	if err != nil {
		t.Fatalf("RunDriver() error = %v", err)
	}
	for i, trial := range trials {
		if len(trial) != 1 {
			t.Fatalf("trial %d has %d samples", i, len(trial))
		}
		s := trial[0]
		if s.Value != 32 || s.Failed {
			t.Errorf("trial %d: value = %v failed = %t, want 32", i, s.Value, s.Failed)
		}
		if s.Layer != models.LayerTransport || s.Unit != models.UnitMilliseconds {
			t.Errorf("trial %d: hints = %s/%s", i, s.Layer, s.Unit)
		}
	}
	if !trials[3][0].RecordedAt.After(trials[0][0].RecordedAt) {
		t.Error("virtual clock did not advance between trials")
	}
}

func TestRunnerFailures(t *testing.T) {
	trials, err := NewRunner().RunDriver(context.Background(), fixedDriver(KindValue, 12, 0, 1), 3, 1)
	if err != nil {
		t.Fatalf("RunDriver() error = %v", err)
	}
	for i, trial := range trials {
		if !trial[0].Failed {
			t.Errorf("trial %d should have failed", i)
		}
	}

	rec := models.RecordFromTrials("lwm2m", trials)
	if rec.Trials[0].Value != nil {
		t.Error("failed sample should be written with a null value")
	}
}

func TestRunnerDriverLevelFailureRate(t *testing.T) {
	d := fixedDriver(KindValue, 12, 0, 0)
	d.FailureRate = 1
	trials, err := NewRunner().RunDriver(context.Background(), d, 2, 1)
	if err != nil {
		t.Fatalf("RunDriver() error = %v", err)
	}
	if !trials[0][0].Failed || !trials[1][0].Failed {
		t.Error("driver failure rate should apply to metrics without their own")
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Run(ctx, Scenario{Trials: 10, Drivers: []DriverSpec{MustPreset("lwm2m")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunnerRejectsInvalidScenario(t *testing.T) {
	if _, err := NewRunner().Run(context.Background(), Scenario{Trials: 0, Drivers: []DriverSpec{MustPreset("lwm2m")}}); err == nil {
		t.Error("Run() with zero trials = nil error")
	}
	if _, err := NewRunner().RunDriver(context.Background(), MustPreset("lwm2m"), 0, 1); err == nil {
		t.Error("RunDriver() with zero trials = nil error")
	}
}

func TestPresetsNormalizeCompletely(t *testing.T) {
	n, err := normalize.NewBuiltin()
	if err != nil {
		t.Fatalf("NewBuiltin() error = %v", err)
	}

	for _, name := range Presets() {
		t.Run(name, func(t *testing.T) {
			trials, err := NewRunner().RunDriver(context.Background(), MustPreset(name), 1, 3)
			if err != nil {
				t.Fatalf("RunDriver() error = %v", err)
			}
			samples, err := n.Normalize(name, trials[0])
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			vocab, _ := n.Vocabulary(name)
			if len(samples) != len(vocab.Metrics) {
				t.Errorf("normalized %d metrics, vocabulary defines %d", len(samples), len(vocab.Metrics))
			}
		})
	}
}
