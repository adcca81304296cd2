package normalize

import (
	"fmt"
	"strings"

	"github.com/nvandessel/layerbench/internal/models"
)

// DuplicateSampleError is returned when a trial carries the same metric twice.
type DuplicateSampleError = models.DuplicateSampleError

// UnknownMetricError is returned when a raw sample's key has no mapping in
// the protocol's vocabulary. It is fatal to the trial, not the run.
type UnknownMetricError struct {
	Protocol string
	Key      string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("%s: unknown metric key %q", e.Protocol, e.Key)
}

// UnknownProtocolError is returned when no vocabulary is registered for a protocol.
type UnknownProtocolError struct {
	Protocol string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("no vocabulary registered for protocol %q", e.Protocol)
}

// IncompleteMetricError is returned when a composite metric received some
// but not all of its parts.
type IncompleteMetricError struct {
	Protocol string
	Metric   string
	Missing  []string
}

func (e *IncompleteMetricError) Error() string {
	return fmt.Sprintf("%s: metric %s is missing parts: %s",
		e.Protocol, e.Metric, strings.Join(e.Missing, ", "))
}

// SchemaConflictError is returned when a sample declares a layer, unit or
// polarity that contradicts the vocabulary entry its key maps to.
type SchemaConflictError struct {
	Protocol string
	Key      string
	Field    string // "layer", "unit" or "polarity"
	Got      string
	Want     string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("%s: key %q declares %s %q, vocabulary says %q",
		e.Protocol, e.Key, e.Field, e.Got, e.Want)
}

// VocabularyError reports an invalid vocabulary detected at startup.
type VocabularyError struct {
	Protocol string
	Reason   string
}

func (e *VocabularyError) Error() string {
	if e.Protocol == "" {
		return "invalid vocabulary: " + e.Reason
	}
	return fmt.Sprintf("invalid vocabulary %s: %s", e.Protocol, e.Reason)
}
