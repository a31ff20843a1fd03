package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BDD: scheduler identities are assigned densely in construction order:
// tets in mesh order (reactions before diffusions), then tris.
func TestStateSchedIDXAssignment(t *testing.T) {
	st := richState(t)

	for i, kp := range st.KProcs {
		assert.Equal(t, SchedIDX(i), kp.SchedIDX())
	}

	// Per tet: bind, unbind, d_a. Then the single sreac.
	require.Len(t, st.KProcs, 3*3+1)
	assert.Equal(t, KindReac, st.KProcs[0].Kind())
	assert.Equal(t, KindReac, st.KProcs[1].Kind())
	assert.Equal(t, KindDiff, st.KProcs[2].Kind())
	assert.Equal(t, KindReac, st.KProcs[3].Kind())
	assert.Equal(t, KindSReac, st.KProcs[9].Kind())
}

func TestStateElementKProcLists(t *testing.T) {
	st := richState(t)
	assert.Equal(t, []SchedIDX{0, 1, 2}, st.Tets[0].KProcs())
	assert.Equal(t, []SchedIDX{3, 4, 5}, st.Tets[1].KProcs())
	assert.Equal(t, []SchedIDX{9}, st.Tris[0].KProcs())
}

// BDD: dependency discovery before the kinetic-process universe is
// complete is a construction defect and panics.
func TestSetupDepsBeforeCompletePanics(t *testing.T) {
	m := mustModel(t, "A", "B")
	c := mustComp(t, m, "cyt", "A", "B")
	rd := mustReac(t, c, "r", map[string]int{"A": 1}, map[string]int{"B": 1}, 1)

	st := &State{Model: m}
	tet := &Tet{Idx: 0, Vol: 1e-18, Pool: NewPool(2), def: c}
	st.Tets = append(st.Tets, tet)
	r := newReaction(rd, tet)

	assert.Panics(t, func() { r.SetupDeps(st) })
}

func TestStateRejectsInvalidMesh(t *testing.T) {
	m := mustModel(t, "A")
	mustComp(t, m, "cyt", "A")
	bad := &Mesh{Tets: []TetDef{{Comp: "nowhere", Vol: 1, Next: [4]int{-1, -1, -1, -1}}}}
	_, err := NewState(m, bad)
	assert.ErrorContains(t, err, "invalid mesh")
}

func TestStateContainerLookup(t *testing.T) {
	st := richState(t)

	c, ok := st.Comp("cyt")
	require.True(t, ok)
	assert.Len(t, c.Tets, 3)

	p, ok := st.Patch("memb")
	require.True(t, ok)
	assert.Len(t, p.Tris, 1)

	_, ok = st.Comp("nucleus")
	assert.False(t, ok)
	_, ok = st.Patch("shell")
	assert.False(t, ok)
}

func TestPoolRefAccess(t *testing.T) {
	st := richState(t)
	gA, _ := st.Model.SpecIdx("A")
	gR, _ := st.Model.SpecIdx("R")

	ref := PoolRef{Kind: ElemTet, Elem: 1, Spec: gA}
	assert.True(t, st.SetPoolCount(ref, 6))
	n, ok := st.PoolCount(ref)
	assert.True(t, ok)
	assert.Equal(t, 6, n)

	ref = PoolRef{Kind: ElemTri, Elem: 0, Spec: gR}
	assert.True(t, st.SetPoolCount(ref, 2))
	n, ok = st.PoolCount(ref)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	// A species with no slot in the element's definition.
	ref = PoolRef{Kind: ElemTri, Elem: 0, Spec: gA}
	_, ok = st.PoolCount(ref)
	assert.False(t, ok)
}

func TestDedupSchedIDX(t *testing.T) {
	assert.Equal(t, []SchedIDX{1, 2, 5}, dedupSchedIDX([]SchedIDX{5, 2, 1, 2, 5, 5}))
	assert.Equal(t, []SchedIDX{3}, dedupSchedIDX([]SchedIDX{3}))
	assert.Empty(t, dedupSchedIDX(nil))
}
