package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reversibleBindingSim builds A + B <-> C with diffusion of A over a 4-tet
// chain: every variant of pool mutation in a closed system.
func reversibleBindingSim(t *testing.T, seed int64) *Simulator {
	t.Helper()
	m := mustModel(t, "A", "B", "C")
	c := mustComp(t, m, "cyt", "A", "B", "C")
	mustReac(t, c, "bind", map[string]int{"A": 1, "B": 1}, map[string]int{"C": 1}, 1e8)
	mustReac(t, c, "unbind", map[string]int{"C": 1}, map[string]int{"A": 1, "B": 1}, 100)
	mustDiff(t, c, "d_a", "A", 1)

	s := mustSim(t, SimConfig{Seed: seed}, m, chainMesh("cyt", 4))
	require.NoError(t, s.SetCompCount("cyt", "A", 100))
	require.NoError(t, s.SetCompCount("cyt", "B", 60))
	return s
}

// BDD: stoichiometric invariants hold after every single event: A+C and
// B+C are conserved, and no count ever goes negative (the pool would
// panic if one did).
func TestSimulatorConservation(t *testing.T) {
	s := reversibleBindingSim(t, 1)

	total := func(spec string) int {
		n, err := s.CompCount("cyt", spec)
		require.NoError(t, err)
		return n
	}
	wantAC := total("A") + total("C")
	wantBC := total("B") + total("C")

	for i := 0; i < 2000; i++ {
		if !s.Step() {
			break
		}
		assert.Equal(t, wantAC, total("A")+total("C"), "event %d", i)
		assert.Equal(t, wantBC, total("B")+total("C"), "event %d", i)
	}
	assert.NotZero(t, s.EventCount)
}

// BDD: the same key over the same model and mesh gives a bit-for-bit
// identical trajectory.
func TestSimulatorDeterminism(t *testing.T) {
	a := reversibleBindingSim(t, 42)
	b := reversibleBindingSim(t, 42)

	a.Run(0.5)
	b.Run(0.5)

	assert.Equal(t, a.EventCount, b.EventCount)
	assert.Equal(t, a.Clock, b.Clock)
	for i := range a.State.Tets {
		assert.Equal(t, a.State.Tets[i].Pool, b.State.Tets[i].Pool, "tet %d", i)
	}
}

func TestSimulatorDifferentSeedsDiverge(t *testing.T) {
	a := reversibleBindingSim(t, 1)
	b := reversibleBindingSim(t, 2)

	// Stepping both the same number of events pins the comparison to the
	// waiting-time draws: 50 exponentials from two differently seeded
	// streams cannot sum to the same clock.
	for i := 0; i < 50; i++ {
		require.True(t, a.Step())
		require.True(t, b.Step())
	}
	assert.NotEqual(t, a.Clock, b.Clock, "seeds 1 and 2 produced identical trajectories")
}

// BDD: Run leaves the clock exactly at endTime when events remain. The
// diffusion channel keeps the total propensity at 100/s or more, so a
// one-second window always fires events and never exhausts the system.
func TestSimulatorRunStopsAtEndTime(t *testing.T) {
	s := reversibleBindingSim(t, 3)
	s.Run(1.0)
	assert.Equal(t, 1.0, s.Clock)
	assert.NotZero(t, s.EventCount)
}

// BDD: when the system exhausts itself the run terminates early with the
// clock at the last event.
func TestSimulatorTerminalState(t *testing.T) {
	m := mustModel(t, "A", "B")
	c := mustComp(t, m, "cyt", "A", "B")
	mustReac(t, c, "decay", map[string]int{"A": 1}, map[string]int{"B": 1}, 1e3)
	s := mustSim(t, SimConfig{Seed: 1}, m, oneTetMesh("cyt", 1e-18))
	require.NoError(t, s.SetCompCount("cyt", "A", 10))

	s.Run(1e9)
	assert.Equal(t, uint64(10), s.EventCount)
	assert.Less(t, s.Clock, 1e9)
	assert.Zero(t, s.Sched.Sum())

	n, err := s.CompCount("cyt", "B")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

// BDD: Reset zeroes the clock and counters and recomputes propensities
// from the pools as they stand; it does not touch the pools themselves.
func TestSimulatorReset(t *testing.T) {
	s := reversibleBindingSim(t, 5)
	for i := 0; i < 50; i++ {
		require.True(t, s.Step())
	}
	nA, err := s.CompCount("cyt", "A")
	require.NoError(t, err)

	s.Reset()
	assert.Zero(t, s.Clock)
	assert.Zero(t, s.EventCount)

	nA2, err := s.CompCount("cyt", "A")
	require.NoError(t, err)
	assert.Equal(t, nA, nA2, "pools survive a reset")

	for i, kp := range s.State.KProcs {
		assert.Equal(t, kp.Rate(), s.Sched.Props()[i])
	}
}

type recordingObserver struct {
	events int
	kinds  map[string]int
}

func (r *recordingObserver) ObserveEvent(kind string, clock, sum float64) {
	r.events++
	if r.kinds == nil {
		r.kinds = map[string]int{}
	}
	r.kinds[kind]++
}

func TestSimulatorObserver(t *testing.T) {
	s := reversibleBindingSim(t, 8)
	obs := &recordingObserver{}
	s.SetObserver(obs)
	s.Run(0.5)
	assert.Equal(t, int(s.EventCount), obs.events)
	assert.Equal(t, int(s.Metrics.EventsByKind[KindReac]), obs.kinds["reac"])
	assert.Equal(t, int(s.Metrics.EventsByKind[KindDiff]), obs.kinds["diff"])
}
