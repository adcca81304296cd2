package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/engine"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/normalize"
	"github.com/nvandessel/layerbench/internal/report"
)

// Epoch is the fixed virtual start time used by test helpers.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// MustPreset returns a built-in driver or panics.
func MustPreset(name string) DriverSpec {
	d, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return d
}

// MustRun runs a scenario with a fixed virtual clock, failing the test on
// error.
func MustRun(t *testing.T, sc Scenario) []models.ProtocolRunRecord {
	t.Helper()
	records, err := NewRunner(WithStart(Epoch)).Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("simulation %s failed: %v", sc.Name, err)
	}
	return records
}

// NewEngine builds an engine over the built-in vocabularies with default
// comparison settings.
func NewEngine(t *testing.T) *engine.Engine {
	t.Helper()
	n, err := normalize.NewBuiltin()
	if err != nil {
		t.Fatalf("failed to build normalizer: %v", err)
	}
	c := compare.New(compare.DefaultConfig(), compare.WithDefinitions(n.Definitions()))
	return engine.New(n, c, engine.WithClock(func() time.Time { return Epoch }))
}

// Compare ingests and seals both records, then compares them. Rejected
// trials fail the test.
func Compare(t *testing.T, a, b models.ProtocolRunRecord) *report.Result {
	t.Helper()
	e := NewEngine(t)

	ha, repA, err := e.IngestRecord(a, engine.IngestOptions{Seal: true})
	if err != nil {
		t.Fatalf("ingest %s: %v", a.Protocol, err)
	}
	if err := repA.Err(); err != nil {
		t.Fatalf("ingest %s rejected trials: %v", a.Protocol, err)
	}
	hb, repB, err := e.IngestRecord(b, engine.IngestOptions{Seal: true})
	if err != nil {
		t.Fatalf("ingest %s: %v", b.Protocol, err)
	}
	if err := repB.Err(); err != nil {
		t.Fatalf("ingest %s rejected trials: %v", b.Protocol, err)
	}

	res, err := e.Compare(ha, hb)
	if err != nil {
		t.Fatalf("compare %s vs %s: %v", a.Protocol, b.Protocol, err)
	}
	return res
}

// VerdictFor finds the verdict for metric, failing the test if absent.
func VerdictFor(t *testing.T, res *report.Result, metric string) compare.Verdict {
	t.Helper()
	for _, v := range res.Verdicts() {
		if v.MetricName == metric {
			return v
		}
	}
	t.Fatalf("no verdict for metric %s", metric)
	return compare.Verdict{}
}
