// Package engine exposes the two collaborator entry points: Ingest, which
// normalizes and aggregates raw trials into a run handle, and Compare,
// which turns two sealed handles into a ComparisonResult.
//
// There is no package-level registry. Handles are returned to the caller
// and passed back explicitly.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/normalize"
	"github.com/nvandessel/layerbench/internal/report"
	"github.com/nvandessel/layerbench/internal/run"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDecisionLogger records rejected trials as decision events.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(e *Engine) { e.decisions = dl }
}

// WithClock overrides the timestamp source for results.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine wires a Normalizer and a Comparator together.
type Engine struct {
	normalizer *normalize.Normalizer
	comparator *compare.Comparator
	logger     *slog.Logger
	decisions  *logging.DecisionLogger
	now        func() time.Time
}

// New creates an Engine.
func New(n *normalize.Normalizer, c *compare.Comparator, opts ...Option) *Engine {
	e := &Engine{
		normalizer: n,
		comparator: c,
		logger:     logging.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalizer returns the engine's normalizer.
func (e *Engine) Normalizer() *normalize.Normalizer { return e.normalizer }

// Open starts an empty run for protocol. The protocol must have a
// registered vocabulary.
func (e *Engine) Open(protocol string) (*Handle, error) {
	if _, ok := e.normalizer.Vocabulary(protocol); !ok {
		return nil, &normalize.UnknownProtocolError{Protocol: protocol}
	}
	id := uuid.NewString()
	return &Handle{
		id:         id,
		protocol:   protocol,
		run:        run.New(protocol, id),
		normalizer: e.normalizer,
	}, nil
}

// TrialError ties a rejected trial to its position in the input.
type TrialError struct {
	Index int
	Err   error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %d: %v", e.Index, e.Err)
}

func (e *TrialError) Unwrap() error { return e.Err }

// IngestOptions controls Ingest.
type IngestOptions struct {
	// Seal seals the run once every trial has been offered.
	Seal bool
}

// IngestReport lists which trials were accepted and why others were not.
type IngestReport struct {
	Protocol string
	RunID    string
	Accepted []int
	Rejected []*TrialError
}

// Err joins every rejection, or returns nil when all trials were accepted.
func (r *IngestReport) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, te := range r.Rejected {
		errs[i] = te
	}
	return errors.Join(errs...)
}

// Ingest normalizes and aggregates each trial into a new run.
//
// A bad trial (unknown metric, schema mismatch, duplicate sample) is
// rejected on its own and listed in the report; the remaining trials are
// still ingested. The returned error is reserved for problems that
// invalidate the whole call, such as an unknown protocol.
func (e *Engine) Ingest(protocol string, trials [][]models.RawSample, opts IngestOptions) (*Handle, *IngestReport, error) {
	h, err := e.Open(protocol)
	if err != nil {
		return nil, nil, err
	}

	rep := &IngestReport{Protocol: protocol, RunID: h.id}
	for i, raw := range trials {
		if err := h.AddRaw(raw); err != nil {
			te := &TrialError{Index: i, Err: err}
			rep.Rejected = append(rep.Rejected, te)
			e.logger.Warn("trial rejected", "protocol", protocol, "run", h.id, "trial", i, "error", err)
			e.decisions.Log("trial_rejected", map[string]any{
				"protocol": protocol,
				"run_id":   h.id,
				"trial":    i,
				"error":    err.Error(),
			})
			continue
		}
		rep.Accepted = append(rep.Accepted, i)
	}

	if opts.Seal {
		h.Seal()
	}
	e.logger.Info("run ingested",
		"protocol", protocol, "run", h.id,
		"accepted", len(rep.Accepted), "rejected", len(rep.Rejected), "sealed", h.Sealed())
	return h, rep, nil
}

// IngestRecord ingests the external per-protocol record shape.
func (e *Engine) IngestRecord(rec models.ProtocolRunRecord, opts IngestOptions) (*Handle, *IngestReport, error) {
	trials, err := rec.GroupTrials()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run record: %w", err)
	}
	return e.Ingest(rec.Protocol, trials, opts)
}

// Compare compares two sealed runs and builds a new result. Run summaries
// are copied into the result, so both handles may be dropped afterwards.
func (e *Engine) Compare(a, b *Handle) (*report.Result, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("compare requires two run handles")
	}
	sa, sb := a.Summary(), b.Summary()

	verdicts, err := e.comparator.Compare(sa, sb)
	if err != nil {
		return nil, err
	}

	res := report.Build(a.protocol, b.protocol, verdicts, sa, sb, report.WithClock(e.now))
	e.logger.Info("comparison built",
		"result", res.ID(), "protocol_a", a.protocol, "protocol_b", b.protocol, "verdicts", len(verdicts))
	return res, nil
}
