package sim

import "math"

// sumRebuildInterval bounds floating-point drift of the incrementally
// maintained propensity sum: after this many incremental updates the sum is
// rebuilt from scratch.
const sumRebuildInterval = 1 << 20

// Scheduler implements direct-method exact stochastic simulation over the
// full kinetic-process population, with rate recomputation restricted to
// the fired process's dependency neighbourhood after each event.
//
// Cached propensities always equal Rate() for every process that has been
// notified of the mutations affecting it; staleness exists only inside
// Fire, between the mutation and the recomputation pass, and is never
// observable as a scheduling input.
type Scheduler struct {
	st    *State
	props []float64
	sum   float64

	sel *Stream // waiting time + categorical selection, two draws per event
	hop *Stream // destination selection, one draw per event

	updates uint64
}

// NewScheduler creates a scheduler over the state's kinetic processes and
// computes the initial propensities.
func NewScheduler(st *State, rng *PartitionedRNG) *Scheduler {
	s := &Scheduler{
		st:    st,
		props: make([]float64, len(st.KProcs)),
		sel:   rng.ForSubsystem(SubsystemScheduler),
		hop:   rng.ForSubsystem(SubsystemHop),
	}
	s.Reset()
	return s
}

// Reset recomputes every propensity from scratch and rebuilds the sum.
// Idempotent: a second call observes identical pool state and produces
// identical scheduler state.
func (s *Scheduler) Reset() {
	s.sum = 0
	for i, kp := range s.st.KProcs {
		s.props[i] = kp.Rate()
		s.sum += s.props[i]
	}
	s.updates = 0
}

// Sum returns the current total propensity.
func (s *Scheduler) Sum() float64 { return s.sum }

// Props returns the cached propensity slice, indexed by SchedIDX.
// Checkpoint use only; callers must not mutate it.
func (s *Scheduler) Props() []float64 { return s.props }

// SelectNext draws the next event. The waiting time is exponential with the
// total propensity as rate parameter; the firing process is categorical in
// proportion to its propensity. Exactly two uniforms are consumed from the
// selection stream. ok is false when the total propensity is zero: no
// further events are possible, a normal terminal state.
func (s *Scheduler) SelectNext() (kp KProc, dt float64, ok bool) {
	if s.sum <= 0 {
		return nil, 0, false
	}
	u1 := s.sel.Float64()
	dt = -math.Log(1-u1) / s.sum

	selector := s.sel.Float64() * s.sum
	idx, found := s.scan(selector)
	if !found {
		// All propensities are zero but drift left a tiny positive sum.
		s.rebuildSum()
		return nil, 0, false
	}
	return s.st.KProcs[idx], dt, true
}

// scan walks the propensity slice in SchedIDX order and returns the first
// process whose cumulative propensity meets or exceeds the selector
// (half-open semantics). The final non-zero process is the fallback when
// floating-point shortfall exhausts the scan.
func (s *Scheduler) scan(selector float64) (SchedIDX, bool) {
	accum := 0.0
	last := SchedIDX(0)
	found := false
	for i, p := range s.props {
		if p == 0 {
			continue
		}
		last = SchedIDX(i)
		found = true
		accum += p
		if selector <= accum {
			return last, true
		}
	}
	return last, found
}

// RestoreProps overwrites the cached propensities from a checkpoint and
// rebuilds the sum. The caller guarantees the slice matches the process
// population.
func (s *Scheduler) RestoreProps(props []float64) {
	copy(s.props, props)
	s.rebuildSum()
}

// Fire applies one occurrence of the given process and recomputes the
// cached propensities of its returned dependency neighbourhood. The fired
// process itself is always recomputed, whether or not its dependency list
// names it.
func (s *Scheduler) Fire(kp KProc) {
	hopU := s.hop.Float64()
	idxs := kp.Apply(s.st, hopU)
	s.update(kp.SchedIDX())
	for _, idx := range idxs {
		if idx != kp.SchedIDX() {
			s.update(idx)
		}
	}
}

// Update recomputes the cached propensities for the given processes. Used
// after administrative state changes, before the next SelectNext call.
func (s *Scheduler) Update(idxs []SchedIDX) {
	for _, idx := range idxs {
		s.update(idx)
	}
}

func (s *Scheduler) update(idx SchedIDX) {
	old := s.props[idx]
	p := s.st.KProcs[idx].Rate()
	s.props[idx] = p
	s.sum += p - old
	s.updates++
	if s.updates >= sumRebuildInterval {
		s.rebuildSum()
	}
}

func (s *Scheduler) rebuildSum() {
	s.sum = 0
	for _, p := range s.props {
		s.sum += p
	}
	s.updates = 0
}
