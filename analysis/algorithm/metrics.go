package algorithm

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Metrics counts the work done by explorations. A nil *Metrics disables
// counting. Metrics may be shared by parallel explorations.
type Metrics struct {
	iterations atomic.Int64
	successors atomic.Int64
	merges     atomic.Int64
	stops      atomic.Int64
	targets    atomic.Int64
	breaks     atomic.Int64
	elapsed    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Enabled checks whether the Metrics object is available.
func (m *Metrics) Enabled() bool {
	return m != nil
}

func (m *Metrics) iteration() {
	if m != nil {
		m.iterations.Add(1)
	}
}

func (m *Metrics) successor() {
	if m != nil {
		m.successors.Add(1)
	}
}

func (m *Metrics) merge() {
	if m != nil {
		m.merges.Add(1)
	}
}

func (m *Metrics) stop() {
	if m != nil {
		m.stops.Add(1)
	}
}

func (m *Metrics) target() {
	if m != nil {
		m.targets.Add(1)
	}
}

func (m *Metrics) brk() {
	if m != nil {
		m.breaks.Add(1)
	}
}

func (m *Metrics) track(start time.Time) {
	if m != nil {
		m.elapsed.Add(int64(time.Since(start)))
	}
}

// Iterations is the number of states popped from waitlists.
func (m *Metrics) Iterations() int {
	if m == nil {
		return 0
	}
	return int(m.iterations.Load())
}

// Successors is the number of successors produced by transfer relations.
func (m *Metrics) Successors() int {
	if m == nil {
		return 0
	}
	return int(m.successors.Load())
}

// Merges is the number of merges that changed a reached state.
func (m *Metrics) Merges() int {
	if m == nil {
		return 0
	}
	return int(m.merges.Load())
}

// Stops is the number of successors discarded by stop operators.
func (m *Metrics) Stops() int {
	if m == nil {
		return 0
	}
	return int(m.stops.Load())
}

func (m *Metrics) Targets() int {
	if m == nil {
		return 0
	}
	return int(m.targets.Load())
}

func (m *Metrics) Breaks() int {
	if m == nil {
		return 0
	}
	return int(m.breaks.Load())
}

// Elapsed is the time spent in Run, summed over explorations.
func (m *Metrics) Elapsed() time.Duration {
	if m == nil {
		return 0
	}
	return time.Duration(m.elapsed.Load())
}

func (m *Metrics) String() string {
	if m == nil {
		return "metrics disabled"
	}
	return fmt.Sprintf("%d iterations, %d successors, %d merges, %d stops, %d targets, %d breaks in %s",
		m.Iterations(), m.Successors(), m.Merges(), m.Stops(), m.Targets(), m.Breaks(), m.Elapsed())
}
