package sim

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics accumulates run counters for a simulation.
type Metrics struct {
	TotalEvents  uint64
	EventsByKind map[KProcKind]uint64
	SimEndedTime float64
	StartWall    time.Time
}

// NewMetrics creates a zeroed Metrics with the wall clock started.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsByKind: make(map[KProcKind]uint64),
		StartWall:    time.Now(),
	}
}

// CountEvent records one fired event of the given kind.
func (m *Metrics) CountEvent(kind KProcKind) {
	m.TotalEvents++
	m.EventsByKind[kind]++
}

// Reset zeroes the counters and restarts the wall clock.
func (m *Metrics) Reset() {
	m.TotalEvents = 0
	m.EventsByKind = make(map[KProcKind]uint64)
	m.SimEndedTime = 0
	m.StartWall = time.Now()
}

// Print logs a human-readable run summary. No core decision depends on this
// output.
func (m *Metrics) Print() {
	elapsed := time.Since(m.StartWall)
	logrus.Infof("simulated time: %g s", m.SimEndedTime)
	logrus.Infof("events fired: %d (reac=%d sreac=%d diff=%d)",
		m.TotalEvents, m.EventsByKind[KindReac], m.EventsByKind[KindSReac], m.EventsByKind[KindDiff])
	logrus.Infof("wall time: %s", elapsed)
	if elapsed > 0 {
		logrus.Infof("throughput: %.0f events/s", float64(m.TotalEvents)/elapsed.Seconds())
	}
}
