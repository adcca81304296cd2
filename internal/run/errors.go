package run

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/layerbench/internal/models"
)

// ErrEmptyTrial is returned when a trial carries no samples.
var ErrEmptyTrial = errors.New("trial has no samples")

// DuplicateSampleError is returned when a trial carries the same metric twice.
type DuplicateSampleError = models.DuplicateSampleError

// SchemaMismatchError is returned when a trial's metric set differs from
// the set established by the run's first trial. The trial is rejected and
// the run continues with its earlier trials.
type SchemaMismatchError struct {
	Protocol string
	Missing  []string // in the run, absent from the trial
	Extra    []string // in the trial, unknown to the run
	Changed  []string // present in both with a different layer, unit or polarity
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra "+strings.Join(e.Extra, ", "))
	}
	if len(e.Changed) > 0 {
		parts = append(parts, "redefined "+strings.Join(e.Changed, ", "))
	}
	return fmt.Sprintf("%s: trial metric set differs from run: %s", e.Protocol, strings.Join(parts, "; "))
}

// Metrics returns every metric named by the error, sorted and deduplicated.
func (e *SchemaMismatchError) Metrics() []string {
	return sortedUnique(e.Missing, e.Extra, e.Changed)
}

// InvalidSampleError is returned when a sample does not carry a complete
// canonical definition (name, layer, unit and polarity). The trial is
// rejected before it can shape the run.
type InvalidSampleError struct {
	Protocol string
	Metric   string
	Err      error
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("%s: invalid sample: %v", e.Protocol, e.Err)
}

func (e *InvalidSampleError) Unwrap() error { return e.Err }

// SealedRunMutationError is returned when a trial is added to a sealed run.
// It indicates a caller bug.
type SealedRunMutationError struct {
	Protocol string
	RunID    string
}

func (e *SealedRunMutationError) Error() string {
	return fmt.Sprintf("run %s (%s) is sealed; no trials may be added", e.RunID, e.Protocol)
}
