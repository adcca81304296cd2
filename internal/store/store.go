// Package store defines the ResultStore interface for persisting
// comparison results, with SQLite and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/report"
)

// ErrNotFound is returned when no result has the requested ID.
var ErrNotFound = errors.New("result not found")

// ErrDuplicate is returned when a result with the same ID is already stored.
var ErrDuplicate = errors.New("result already stored")

// ResultSummary is one row of the comparison history.
type ResultSummary struct {
	ID                 string    `json:"id"`
	ProtocolA          string    `json:"protocol_a"`
	ProtocolB          string    `json:"protocol_b"`
	GeneratedAt        time.Time `json:"generated_at"`
	Verdicts           int       `json:"verdicts"`
	WinsA              int       `json:"wins_a"`
	WinsB              int       `json:"wins_b"`
	OverallEfficiencyA *float64  `json:"overall_efficiency_a"`
	OverallEfficiencyB *float64  `json:"overall_efficiency_b"`
}

// MetricPoint is one metric's verdict within a stored comparison.
type MetricPoint struct {
	ResultID    string         `json:"result_id"`
	ProtocolA   string         `json:"protocol_a"`
	ProtocolB   string         `json:"protocol_b"`
	GeneratedAt time.Time      `json:"generated_at"`
	Winner      compare.Winner `json:"winner"`
	DeltaPct    *float64       `json:"delta_pct"`
	PValue      *float64       `json:"p_value"`
}

// ListOptions filters List.
type ListOptions struct {
	// Protocol keeps results where either side matches. Empty keeps all.
	Protocol string

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// ResultStore persists comparison results. Results are immutable, so
// saving an ID that already exists is an error.
type ResultStore interface {
	Save(ctx context.Context, r *report.Result) error
	Get(ctx context.Context, id string) (*report.Result, error)

	// List returns results newest first.
	List(ctx context.Context, opts ListOptions) ([]ResultSummary, error)

	// MetricHistory returns every stored verdict for one metric, oldest first.
	MetricHistory(ctx context.Context, metric string) ([]MetricPoint, error)

	Delete(ctx context.Context, id string) error
	Close() error
}

func summarize(r *report.Result) ResultSummary {
	rec := r.Record()
	wins := r.Winners()
	return ResultSummary{
		ID:                 rec.ID,
		ProtocolA:          rec.ProtocolA,
		ProtocolB:          rec.ProtocolB,
		GeneratedAt:        rec.GeneratedAt,
		Verdicts:           len(rec.Verdicts),
		WinsA:              wins[compare.WinnerA],
		WinsB:              wins[compare.WinnerB],
		OverallEfficiencyA: rec.OverallEfficiencyA,
		OverallEfficiencyB: rec.OverallEfficiencyB,
	}
}
