package run

import "sort"

// RunSummary is a value copy of a run taken at comparison time.
type RunSummary struct {
	Protocol       string               `json:"protocol"`
	RunID          string               `json:"run_id"`
	Trials         int                  `json:"trials"`
	Rejected       int                  `json:"rejected,omitempty"`
	Sealed         bool                 `json:"sealed"`
	Partial        bool                 `json:"partial,omitempty"`
	FlaggedMetrics []string             `json:"flagged_metrics,omitempty"`
	Stats          map[string]LayerStat `json:"stats"`
}

// Stat looks up the statistics for one metric.
func (s RunSummary) Stat(metric string) (LayerStat, bool) {
	st, ok := s.Stats[metric]
	return st, ok
}

// Metrics returns the summarized metric names, sorted.
func (s RunSummary) Metrics() []string {
	names := make([]string, 0, len(s.Stats))
	for name := range s.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (s RunSummary) Clone() RunSummary {
	c := s
	c.FlaggedMetrics = append([]string(nil), s.FlaggedMetrics...)
	c.Stats = make(map[string]LayerStat, len(s.Stats))
	for k, v := range s.Stats {
		c.Stats[k] = v
	}
	return c
}

func sortedUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
