package measure

import (
	"sort"
	"sync"
	"time"
)

// Registry is the default Measure: one stepMetric per step. Metrics are
// registered while the pipeline is wired and updated concurrently while
// it runs.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Metric
}

func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Metric)}
}

func (r *Registry) AddMetric(name string, concurrent int) Metric {
	r.mu.Lock()
	defer r.mu.Unlock()

	mt := &stepMetric{
		concurrent: concurrent,
		transports: make(map[string]*TransportInfo),
	}
	r.steps[name] = mt

	return mt
}

func (r *Registry) GetMetric(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.steps[name]
}

func (r *Registry) AllMetrics() map[string]Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Metric, len(r.steps))
	for name, mt := range r.steps {
		out[name] = mt
	}

	return out
}

// StepTiming is one row of the post-run timing summary.
type StepTiming struct {
	Step    string
	Outputs int64
	AVG     time.Duration
}

// Snapshot returns the per-step timings sorted by step name, ready to be
// logged once the run is over.
func (r *Registry) Snapshot() []StepTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StepTiming, 0, len(r.steps))
	for name, mt := range r.steps {
		out = append(out, StepTiming{
			Step:    name,
			Outputs: mt.Outputs(),
			AVG:     mt.AVGDuration(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })

	return out
}

var _ Measure = (*Registry)(nil)
