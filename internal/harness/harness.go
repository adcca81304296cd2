// Package harness captures per-layer timing and overhead samples around a
// protocol driver's instrumented operations.
//
// A Harness is bound to a single driver. It is not safe for concurrent use
// and must never be shared between drivers; each driver goroutine creates its
// own.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/models"
)

// Option configures a Harness.
type Option func(*Harness)

// WithClock overrides the time source. Durations are measured as the
// difference of two clock readings.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets the logger used for failed operations and trace output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Harness accumulates the samples of the current trial.
type Harness struct {
	protocol string
	now      func() time.Time
	logger   *slog.Logger
	pending  []models.LayerSample
}

// New creates a harness for the named protocol driver.
func New(protocol string, opts ...Option) *Harness {
	h := &Harness{
		protocol: protocol,
		now:      time.Now,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Protocol returns the protocol identity the harness was created for.
func (h *Harness) Protocol() string {
	return h.protocol
}

// Measure times op and records its wall-clock duration in milliseconds.
//
// The clock is read immediately before op is invoked and immediately after
// it returns. If op returns an error the sample is still recorded, with
// Failed set and a NaN value. If op panics the failed sample is recorded
// before the panic continues. The harness never retries op.
//
// The returned sample carries no polarity; that is assigned when the
// trial is normalized.
func (h *Harness) Measure(layer models.Layer, metricName string, unit models.Unit, op func() error) (sample models.LayerSample) {
	var (
		start time.Time
		err   error
		done  bool
	)
	defer func() {
		if done {
			return
		}
		r := recover()
		sample = h.record(layer, metricName, unit, math.NaN(), fmt.Errorf("operation aborted: %v", r))
		if r != nil {
			panic(r)
		}
	}()

	start = h.now()
	err = op()
	elapsed := h.now().Sub(start)
	done = true

	return h.record(layer, metricName, unit, float64(elapsed)/float64(time.Millisecond), err)
}

// MeasureValue records the value returned by op, for non-timing metrics
// such as overhead bytes or efficiency scores. Failure handling matches
// Measure.
func (h *Harness) MeasureValue(layer models.Layer, metricName string, unit models.Unit, op func() (float64, error)) (sample models.LayerSample) {
	done := false
	defer func() {
		if done {
			return
		}
		r := recover()
		sample = h.record(layer, metricName, unit, math.NaN(), fmt.Errorf("operation aborted: %v", r))
		if r != nil {
			panic(r)
		}
	}()

	v, err := op()
	done = true
	return h.record(layer, metricName, unit, v, err)
}

// Record adds an externally obtained value to the current trial.
func (h *Harness) Record(layer models.Layer, metricName string, unit models.Unit, value float64) models.LayerSample {
	return h.record(layer, metricName, unit, value, nil)
}

func (h *Harness) record(layer models.Layer, metricName string, unit models.Unit, value float64, err error) models.LayerSample {
	s := models.LayerSample{
		Layer:      layer,
		MetricName: metricName,
		Value:      value,
		Unit:       unit,
		RecordedAt: h.now().UTC(),
	}
	if err != nil {
		s.Value = math.NaN()
		s.Failed = true
		h.logger.Warn("measured operation failed",
			"protocol", h.protocol, "layer", layer, "metric", metricName, "error", err)
	} else {
		h.logger.Log(context.Background(), logging.LevelTrace, "sample",
			"protocol", h.protocol, "layer", layer, "metric", metricName, "value", value, "unit", unit)
	}
	h.pending = append(h.pending, s)
	return s
}

// Pending returns the number of samples recorded in the current trial.
func (h *Harness) Pending() int {
	return len(h.pending)
}

// Trial drains the current trial's samples as raw samples keyed by metric
// name. The next trial starts empty.
func (h *Harness) Trial() []models.RawSample {
	out := make([]models.RawSample, len(h.pending))
	for i, s := range h.pending {
		out[i] = s.Raw()
	}
	h.pending = nil
	return out
}
