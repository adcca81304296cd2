package engine

import (
	"fmt"

	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/normalize"
	"github.com/nvandessel/layerbench/internal/run"
)

// Handle is the caller's reference to one protocol run. It has a single
// writer: AddRaw and Seal must not be called concurrently. After Seal,
// Summary may be called from any goroutine.
type Handle struct {
	id         string
	protocol   string
	run        *run.ProtocolRun
	normalizer *normalize.Normalizer
}

// ID returns the run's UUID.
func (h *Handle) ID() string { return h.id }

// Protocol returns the protocol identity.
func (h *Handle) Protocol() string { return h.protocol }

// Sealed reports whether the run is sealed.
func (h *Handle) Sealed() bool { return h.run.Sealed() }

// Len returns the number of accepted trials.
func (h *Handle) Len() int { return h.run.Len() }

// AddRaw normalizes one trial of raw samples and appends it to the run.
func (h *Handle) AddRaw(raw []models.RawSample) error {
	if h.run.Sealed() {
		return &run.SealedRunMutationError{Protocol: h.protocol, RunID: h.id}
	}
	samples, err := h.normalizer.Normalize(h.protocol, raw)
	if err != nil {
		return fmt.Errorf("failed to normalize trial: %w", err)
	}
	return h.run.AddTrial(samples)
}

// AddTrial appends an already-normalized trial. Each sample must match
// the protocol's vocabulary exactly, polarity included; harness output
// goes through AddRaw instead.
func (h *Handle) AddTrial(samples []models.LayerSample) error {
	if h.run.Sealed() {
		return &run.SealedRunMutationError{Protocol: h.protocol, RunID: h.id}
	}
	if err := h.normalizer.Check(h.protocol, samples); err != nil {
		return fmt.Errorf("failed to check trial: %w", err)
	}
	return h.run.AddTrial(samples)
}

// Seal makes the run read-only.
func (h *Handle) Seal() { h.run.Seal() }

// Summary returns a value copy of the run.
func (h *Handle) Summary() run.RunSummary { return h.run.Snapshot() }

// Trials returns a copy of the accepted trials.
func (h *Handle) Trials() []models.Trial { return h.run.Trials() }
