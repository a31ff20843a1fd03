package parallel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetsim/tetsim/sim"
)

// decayDiffusionModel is a chain model whose propensities are all exact
// integers (kcst 2, unit diffusion couplings), so serial and partitioned
// scans see bit-identical cumulative sums.
func decayDiffusionModel(t *testing.T) *sim.ModelDef {
	t.Helper()
	m, err := sim.NewModelDef("A", "B")
	require.NoError(t, err)
	c, err := m.AddComp("cyt", "A", "B")
	require.NoError(t, err)
	_, err = c.AddReac("decay", map[string]int{"A": 1}, map[string]int{"B": 1}, 2)
	require.NoError(t, err)
	_, err = c.AddDiff("d_a", "A", 1)
	require.NoError(t, err)
	return m
}

func TestNewCoordinatorRejectsFewRanks(t *testing.T) {
	m := decayDiffusionModel(t)
	_, err := NewCoordinator(Config{Seed: 1, NumRanks: 1}, m, planMesh(4))
	assert.Error(t, err)
}

func TestNewCoordinatorWithPlanMismatch(t *testing.T) {
	m := decayDiffusionModel(t)
	mesh := planMesh(4)
	plan, err := ContiguousPlan(mesh, 2)
	require.NoError(t, err)
	_, err = NewCoordinatorWithPlan(Config{Seed: 1, NumRanks: 3}, m, mesh, plan)
	assert.Error(t, err)
}

// BDD: a two-rank partitioned run over a boundary-spanning diffusion chain
// reproduces the serial trajectory exactly: same seed, same event count,
// same clock, same per-tet counts.
func TestPartitionedMatchesSerial(t *testing.T) {
	const seed = 123
	m := decayDiffusionModel(t)
	mesh := planMesh(4)

	serial, err := sim.NewSimulator(sim.SimConfig{Seed: seed}, decayDiffusionModel(t), planMesh(4))
	require.NoError(t, err)
	require.NoError(t, serial.SetCompCount("cyt", "A", 40))

	coord, err := NewCoordinator(Config{Seed: seed, NumRanks: 2}, m, mesh)
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 40))

	const endTime = 1.0
	serial.Run(endTime)
	require.NoError(t, coord.Run(context.Background(), endTime))

	assert.Equal(t, serial.EventCount, coord.EventCount)
	assert.Equal(t, serial.Clock, coord.Clock)
	for i := range mesh.Tets {
		for _, spec := range []string{"A", "B"} {
			want := serialTetCount(t, serial, i, spec)
			got, err := coord.TetCount(i, spec)
			require.NoError(t, err)
			assert.Equal(t, want, got, "tet %d species %s", i, spec)
		}
	}

	nA, err := coord.CompCount("cyt", "A")
	require.NoError(t, err)
	nB, err := coord.CompCount("cyt", "B")
	require.NoError(t, err)
	assert.Equal(t, 40, nA+nB, "decay conserves A+B")
	assert.NotZero(t, coord.EventCount)
}

func serialTetCount(t *testing.T, s *sim.Simulator, tetIdx int, species string) int {
	t.Helper()
	g, ok := s.State.Model.SpecIdx(species)
	require.True(t, ok)
	n, ok := s.State.PoolCount(sim.PoolRef{Kind: sim.ElemTet, Elem: tetIdx, Spec: g})
	require.True(t, ok)
	return n
}

// BDD: after a run, every replica's copy of a shared boundary element
// agrees with the owner's authoritative count.
func TestGhostPoolsConsistentAtBarrier(t *testing.T) {
	m := decayDiffusionModel(t)
	mesh := planMesh(4)

	coord, err := NewCoordinator(Config{Seed: 7, NumRanks: 2}, m, mesh)
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 60))
	require.NoError(t, coord.Run(context.Background(), 1e-2))

	for _, r := range coord.Ranks() {
		for tetIdx, shared := range r.sharedTet {
			if !shared {
				continue
			}
			owner := coord.Ranks()[coord.plan.TetRank[tetIdx]]
			assert.Equal(t, owner.sim.State.Tets[tetIdx].Pool, r.sim.State.Tets[tetIdx].Pool,
				"rank %d ghost of tet %d", r.id, tetIdx)
		}
	}
}

func TestCoordinatorRunCancellation(t *testing.T) {
	m := decayDiffusionModel(t)
	mesh := planMesh(4)

	coord, err := NewCoordinator(Config{Seed: 1, NumRanks: 2}, m, mesh)
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, coord.Run(ctx, 1.0))
}

// BDD: cancelling a run in flight makes Run return, with all rank
// goroutines torn down; a run over a pure-diffusion model never exhausts
// itself, so only cancellation can end it.
func TestCoordinatorCancelMidRun(t *testing.T) {
	m, err := sim.NewModelDef("A")
	require.NoError(t, err)
	c, err := m.AddComp("cyt", "A")
	require.NoError(t, err)
	_, err = c.AddDiff("d_a", "A", 1)
	require.NoError(t, err)

	coord, err := NewCoordinator(Config{Seed: 9, NumRanks: 2}, m, planMesh(4))
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 50))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx, 1e9) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestCoordinatorSeedAfterRun(t *testing.T) {
	m := decayDiffusionModel(t)
	coord, err := NewCoordinator(Config{Seed: 1, NumRanks: 2}, m, planMesh(4))
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 4))
	require.NoError(t, coord.Run(context.Background(), 1.0))

	// Pre-run-only seeding is enforced while ranks run, not after.
	assert.NoError(t, coord.SetCompCount("cyt", "A", 4))
}

// BDD: rank totals partition the global propensity sum: every process is
// owned by exactly one rank.
func TestRankTotalsPartitionSum(t *testing.T) {
	m := decayDiffusionModel(t)
	coord, err := NewCoordinator(Config{Seed: 1, NumRanks: 2}, m, planMesh(4))
	require.NoError(t, err)
	require.NoError(t, coord.SetCompCount("cyt", "A", 40))

	total := 0.0
	seen := map[sim.SchedIDX]bool{}
	for _, r := range coord.Ranks() {
		total += r.localTotal()
		for _, idx := range r.owned {
			assert.False(t, seen[idx], "process %d owned twice", idx)
			seen[idx] = true
		}
	}
	assert.Len(t, seen, len(coord.Ranks()[0].sim.State.KProcs))
	assert.InDelta(t, coord.Ranks()[0].sim.Sched.Sum(), total, 1e-9)
}

func TestPickRank(t *testing.T) {
	c := &Coordinator{}
	totals := []float64{1, 0, 3}

	rank, rem := c.pickRank(totals, 0.5)
	assert.Equal(t, 0, rank)
	assert.Equal(t, 0.5, rem)

	rank, rem = c.pickRank(totals, 1.0) // closes the first interval
	assert.Equal(t, 0, rank)
	assert.Equal(t, 1.0, rem)

	rank, rem = c.pickRank(totals, 2.5) // zero-total rank is skipped
	assert.Equal(t, 2, rank)
	assert.Equal(t, 1.5, rem)

	// Shortfall beyond the end: last positive rank, full local selector.
	rank, rem = c.pickRank(totals, 4.5)
	assert.Equal(t, 2, rank)
	assert.Equal(t, 3.0, rem)
}
