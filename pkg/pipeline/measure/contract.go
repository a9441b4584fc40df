// Package measure records how long every pipeline step spends computing
// and how long elements wait on the channels between steps. It feeds the
// drawer's heat colouring and the timing summary logged after a run.
package measure

import "time"

// Measure collects one metric per pipeline step, keyed by step name.
type Measure interface {
	AddMetric(name string, concurrent int) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the timings of a single step.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddTransportDuration(inputStepName string, elapsed time.Duration)
	AVGDuration() time.Duration
	AVGTransportDuration() map[string]*TransportInfo
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
	Outputs() int64
}
