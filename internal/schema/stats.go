package schema

import "math"

// FeatureStats summarises one feature column over the observed samples.
// NaN values do not contribute.
type FeatureStats struct {
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

// Stats accumulates per-feature summaries while samples stream by. It is
// not safe for concurrent use; the collect step owns it.
type Stats struct {
	features []FeatureStats
	sums     []float64
}

// NewStats creates a Stats accumulator for the named features.
func NewStats(names []string) *Stats {
	features := make([]FeatureStats, len(names))
	for i, name := range names {
		features[i] = FeatureStats{
			Name: name,
			Min:  math.Inf(1),
			Max:  math.Inf(-1),
		}
	}

	return &Stats{
		features: features,
		sums:     make([]float64, len(names)),
	}
}

// Observe folds one sample into the summary.
func (s *Stats) Observe(features []float64) {
	for i, v := range features {
		if i >= len(s.features) || math.IsNaN(v) {
			continue
		}
		fs := &s.features[i]
		if v < fs.Min {
			fs.Min = v
		}
		if v > fs.Max {
			fs.Max = v
		}
		s.sums[i] += v
		fs.Count++
	}
}

// Summary returns the accumulated per-feature statistics.
func (s *Stats) Summary() []FeatureStats {
	out := make([]FeatureStats, len(s.features))
	for i, fs := range s.features {
		if fs.Count > 0 {
			fs.Mean = s.sums[i] / float64(fs.Count)
		} else {
			fs.Min, fs.Max = 0, 0
		}
		out[i] = fs
	}

	return out
}
