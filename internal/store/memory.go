package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/layerbench/internal/report"
)

// MemoryResultStore is an in-memory ResultStore, used when persistence is
// disabled and in tests.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]report.Record
}

// NewMemoryResultStore creates an empty in-memory store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]report.Record)}
}

func (s *MemoryResultStore) Save(_ context.Context, r *report.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[r.ID()]; exists {
		return fmt.Errorf("%s: %w", r.ID(), ErrDuplicate)
	}
	s.results[r.ID()] = r.Record()
	return nil
}

func (s *MemoryResultStore) Get(_ context.Context, id string) (*report.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return report.FromRecord(rec)
}

func (s *MemoryResultStore) List(_ context.Context, opts ListOptions) ([]ResultSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ResultSummary
	for _, rec := range s.sorted(true) {
		if opts.Protocol != "" && rec.ProtocolA != opts.Protocol && rec.ProtocolB != opts.Protocol {
			continue
		}
		r, err := report.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(r))
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryResultStore) MetricHistory(_ context.Context, metric string) ([]MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []MetricPoint
	for _, rec := range s.sorted(false) {
		for _, v := range rec.Verdicts {
			if v.MetricName != metric {
				continue
			}
			out = append(out, MetricPoint{
				ResultID:    rec.ID,
				ProtocolA:   rec.ProtocolA,
				ProtocolB:   rec.ProtocolB,
				GeneratedAt: rec.GeneratedAt,
				Winner:      v.Winner,
				DeltaPct:    copyFloat(v.DeltaPct),
				PValue:      copyFloat(v.PValue),
			})
		}
	}
	return out, nil
}

func (s *MemoryResultStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.results, id)
	return nil
}

func (s *MemoryResultStore) Close() error {
	return nil
}

// sorted returns records by generation time, ties broken by ID.
func (s *MemoryResultStore) sorted(newestFirst bool) []report.Record {
	recs := make([]report.Record, 0, len(s.results))
	for _, rec := range s.results {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.GeneratedAt.Equal(b.GeneratedAt) {
			if newestFirst {
				return a.GeneratedAt.After(b.GeneratedAt)
			}
			return a.GeneratedAt.Before(b.GeneratedAt)
		}
		return a.ID < b.ID
	})
	return recs
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
