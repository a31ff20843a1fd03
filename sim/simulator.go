package sim

import (
	"github.com/sirupsen/logrus"
)

// ProgressObserver receives per-event progress notifications. Implemented
// by the Prometheus collector in internal/observability; the core never
// depends on what an observer does with the values.
type ProgressObserver interface {
	ObserveEvent(kind string, clock, propensitySum float64)
}

// Simulator drives the exact stochastic simulation loop: it owns the bound
// state, the scheduler, simulation time, and the event counters, and is the
// surface the binding/API layer talks to.
type Simulator struct {
	State *State
	Sched *Scheduler

	Clock      float64
	EventCount uint64
	Metrics    *Metrics

	rng      *PartitionedRNG
	cfg      SimConfig
	observer ProgressObserver
}

// NewSimulator binds a model and mesh and prepares a runnable simulator.
func NewSimulator(cfg SimConfig, model *ModelDef, mesh *Mesh) (*Simulator, error) {
	st, err := NewState(model, mesh)
	if err != nil {
		return nil, err
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	return &Simulator{
		State:   st,
		Sched:   NewScheduler(st, rng),
		Metrics: NewMetrics(),
		rng:     rng,
		cfg:     cfg,
	}, nil
}

// SetObserver installs a progress observer. Pass nil to remove.
func (sim *Simulator) SetObserver(obs ProgressObserver) {
	sim.observer = obs
}

// RNG exposes the partitioned RNG, for checkpointing and for the parallel
// coordinator.
func (sim *Simulator) RNG() *PartitionedRNG { return sim.rng }

// Run advances the simulation until the next event would pass endTime, or
// until the total propensity reaches zero (no further events possible).
// Time is left at endTime on normal completion.
func (sim *Simulator) Run(endTime float64) {
	for {
		kp, dt, ok := sim.Sched.SelectNext()
		if !ok {
			logrus.Infof("no further events possible at t=%g s", sim.Clock)
			break
		}
		if sim.Clock+dt > endTime {
			sim.Clock = endTime
			break
		}
		sim.Clock += dt
		sim.Sched.Fire(kp)
		sim.EventCount++
		sim.Metrics.CountEvent(kp.Kind())
		if sim.observer != nil {
			sim.observer.ObserveEvent(string(kp.Kind()), sim.Clock, sim.Sched.Sum())
		}
		if sim.cfg.ProgressEvery > 0 && sim.EventCount%sim.cfg.ProgressEvery == 0 {
			logrus.Infof("[t=%.6g s] %d events fired, total propensity %g", sim.Clock, sim.EventCount, sim.Sched.Sum())
		}
	}
	sim.Metrics.SimEndedTime = sim.Clock
}

// Step fires exactly one event, if one is possible. Returns false when the
// total propensity is zero.
func (sim *Simulator) Step() bool {
	kp, dt, ok := sim.Sched.SelectNext()
	if !ok {
		return false
	}
	sim.Clock += dt
	sim.Sched.Fire(kp)
	sim.EventCount++
	sim.Metrics.CountEvent(kp.Kind())
	return true
}

// Reset returns the simulator to time zero: kinetic processes re-derive
// their cached constants, the scheduler recomputes every propensity, and
// the counters are zeroed. Pool contents are left as they are; callers
// re-seed initial conditions through the administrative setters. Calling
// Reset twice in succession yields the same state as calling it once.
func (sim *Simulator) Reset() {
	for _, kp := range sim.State.KProcs {
		kp.Reset()
	}
	sim.Sched.Reset()
	sim.Clock = 0
	sim.EventCount = 0
	sim.Metrics.Reset()
}
