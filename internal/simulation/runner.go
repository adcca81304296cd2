package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/layerbench/internal/harness"
	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/models"
)

// errSimulated is the error a driver operation returns when it is drawn
// to fail.
var errSimulated = errors.New("simulated operation failure")

// Runner executes scenarios.
type Runner struct {
	logger *slog.Logger
	start  time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger handed to every driver's harness.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithStart fixes the virtual clock's starting instant.
func WithStart(t time.Time) RunnerOption {
	return func(r *Runner) { r.start = t }
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: logging.Discard(),
		start:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves the scenario and runs every driver concurrently. Records
// are returned in driver order. The first driver error cancels the rest.
func (r *Runner) Run(ctx context.Context, sc Scenario) ([]models.ProtocolRunRecord, error) {
	sc, err := sc.Resolve()
	if err != nil {
		return nil, err
	}

	records := make([]models.ProtocolRunRecord, len(sc.Drivers))
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range sc.Drivers {
		g.Go(func() error {
			trials, err := r.runDriver(ctx, d, sc.Trials, sc.Seed+int64(i))
			if err != nil {
				return fmt.Errorf("driver %s: %w", d.Protocol, err)
			}
			records[i] = models.RecordFromTrials(d.Protocol, trials)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("simulation complete", "scenario", sc.Name, "drivers", len(sc.Drivers), "trials", sc.Trials)
	return records, nil
}

// RunDriver runs a single driver for the given number of trials.
func (r *Runner) RunDriver(ctx context.Context, d DriverSpec, trials int, seed int64) ([][]models.RawSample, error) {
	d, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}
	return r.runDriver(ctx, d, trials, seed)
}

func (r *Runner) runDriver(ctx context.Context, d DriverSpec, trials int, seed int64) ([][]models.RawSample, error) {
	clock := &virtualClock{now: r.start}
	h := harness.New(d.Protocol,
		harness.WithClock(clock.Now),
		harness.WithLogger(r.logger))
	rng := rand.New(rand.NewSource(seed))

	out := make([][]models.RawSample, 0, trials)
	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range d.Metrics {
			rate := m.FailureRate
			if rate == 0 {
				rate = d.FailureRate
			}
			fail := rate > 0 && rng.Float64() < rate
			v := draw(rng, m.Mean, m.StdDev)

			switch m.Kind {
			case KindTime:
				h.Measure(m.Layer, m.Key, m.Unit, func() error {
					clock.Advance(time.Duration(v * float64(time.Millisecond)))
					if fail {
						return errSimulated
					}
					return nil
				})
			default:
				h.MeasureValue(m.Layer, m.Key, m.Unit, func() (float64, error) {
					if fail {
						return 0, errSimulated
					}
					return v, nil
				})
			}
		}
		out = append(out, h.Trial())
	}
	return out, nil
}

// draw samples a non-negative value from N(mean, stddev).
func draw(rng *rand.Rand, mean, stddev float64) float64 {
	if stddev == 0 {
		return mean
	}
	v := mean + rng.NormFloat64()*stddev
	if v < 0 {
		return 0
	}
	return v
}

// virtualClock only moves when a driver operation advances it.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
