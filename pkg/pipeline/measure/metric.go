package measure

import (
	"sync"
	"time"
)

// TransportInfo accumulates the time elements spent waiting on the
// channel between a step and one of its parents.
type TransportInfo struct {
	Elapsed time.Duration
	count   int64
}

// stepMetric accumulates the timings of one step. Concurrent goroutines
// of the same step share it, so every access takes the lock.
type stepMetric struct {
	mu         sync.Mutex
	concurrent int
	elapsed    time.Duration
	outputs    int64
	endToEnd   time.Duration
	transports map[string]*TransportInfo
}

func (mt *stepMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.elapsed += elapsed
	mt.outputs++
}

func (mt *stepMetric) AddTransportDuration(inputStepName string, elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	tr := mt.transports[inputStepName]
	if tr == nil {
		tr = &TransportInfo{}
		mt.transports[inputStepName] = tr
	}
	tr.Elapsed += elapsed
	tr.count++
}

func (mt *stepMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endToEnd = endDuration
}

func (mt *stepMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.endToEnd
}

func (mt *stepMetric) Outputs() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.outputs
}

func (mt *stepMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.outputs == 0 {
		return 0
	}

	return round(time.Duration(float64(mt.elapsed) / float64(mt.outputs)))
}

// AVGTransportDuration returns the average wait on each input channel.
// Waits overlap across the concurrent goroutines of a step, so the
// average is divided by the concurrency to approximate wall time.
func (mt *stepMetric) AVGTransportDuration() map[string]*TransportInfo {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	out := make(map[string]*TransportInfo, len(mt.transports))
	for name, tr := range mt.transports {
		avg := &TransportInfo{count: tr.count}
		if tr.count > 0 {
			avg.Elapsed = round(tr.Elapsed / time.Duration(tr.count) / time.Duration(mt.concurrent))
		}
		out[name] = avg
	}

	return out
}

// round keeps three digits of noise at most, so the drawer labels stay
// readable.
func round(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		return d.Round(time.Millisecond)
	case d > time.Millisecond:
		return d.Round(time.Microsecond)
	default:
		return d
	}
}

var _ Metric = (*stepMetric)(nil)
