package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sreacFixture binds a receptor-ligand model (R surface + A volume -> RA
// surface) to a one-tet, one-tri mesh.
func sreacFixture(t *testing.T, kcst, vol, area float64) (*State, *SReac) {
	t.Helper()
	m := mustModel(t, "A", "R", "RA")
	mustComp(t, m, "cyt", "A")
	p := mustPatch(t, m, "memb", "R", "RA")
	_, err := p.AddSReac("bind",
		map[string]int{"R": 1}, map[string]int{"A": 1},
		map[string]int{"RA": 1}, nil, kcst)
	require.NoError(t, err)

	mesh := &Mesh{
		Tets: []TetDef{{Comp: "cyt", Vol: vol, Next: [4]int{-1, -1, -1, -1}}},
		Tris: []TriDef{{Patch: "memb", Area: area, Inner: 0, Outer: -1}},
	}
	st := mustState(t, m, mesh)
	require.Len(t, st.KProcs, 1)
	return st, st.KProcs[0].(*SReac)
}

func TestSReacRate(t *testing.T) {
	vol := 1e-18
	st, r := sreacFixture(t, 1e6, vol, 1e-12)

	assert.Zero(t, r.Rate())

	st.Tris[0].Pool.Set(0, 3) // R
	setTetCount(t, st, 0, "A", 4)

	// Volume-side reactants scale by the inner tet volume.
	want := 1e6 / (1.0e3 * vol * Avogadro) * 3 * 4
	assert.InEpsilon(t, want, r.Rate(), 1e-12)
}

func TestSReacApply(t *testing.T) {
	st, r := sreacFixture(t, 1, 1e-18, 1e-12)
	st.Tris[0].Pool.Set(0, 2) // R
	setTetCount(t, st, 0, "A", 3)

	r.Apply(st, 0)
	assert.Equal(t, 1, st.Tris[0].Pool.Count(0), "R consumed")
	assert.Equal(t, 1, st.Tris[0].Pool.Count(1), "RA produced")
	assert.Equal(t, 2, tetCount(t, st, 0, "A"), "A consumed")
}

// BDD: a channel with no volume-side reactants scales by area, not volume.
func TestSReacPureSurfaceScaling(t *testing.T) {
	m := mustModel(t, "R", "S")
	mustComp(t, m, "cyt")
	p := mustPatch(t, m, "memb", "R", "S")
	_, err := p.AddSReac("dimer",
		map[string]int{"R": 2}, nil,
		map[string]int{"S": 1}, nil, 1e6)
	require.NoError(t, err)

	area := 1e-12
	mesh := &Mesh{
		Tets: []TetDef{{Comp: "cyt", Vol: 1e-18, Next: [4]int{-1, -1, -1, -1}}},
		Tris: []TriDef{{Patch: "memb", Area: area, Inner: 0, Outer: -1}},
	}
	st := mustState(t, m, mesh)
	r := st.KProcs[0].(*SReac)

	st.Tris[0].Pool.Set(0, 4)
	want := 1e6 / (area * Avogadro) * 6 // C(4,2) = 6
	assert.InEpsilon(t, want, r.Rate(), 1e-12)
}

// BDD: a surface reaction whose volume species is missing from the inner
// compartment fails at binding time, not at runtime.
func TestSReacUnresolvableVolumeSpecies(t *testing.T) {
	m := mustModel(t, "A", "R")
	mustComp(t, m, "cyt") // no A
	p := mustPatch(t, m, "memb", "R")
	_, err := p.AddSReac("bind",
		map[string]int{"R": 1}, map[string]int{"A": 1},
		nil, map[string]int{"A": 1}, 1)
	require.NoError(t, err, "the model alone cannot know the inner compartment")

	mesh := &Mesh{
		Tets: []TetDef{{Comp: "cyt", Vol: 1e-18, Next: [4]int{-1, -1, -1, -1}}},
		Tris: []TriDef{{Patch: "memb", Area: 1e-12, Inner: 0, Outer: -1}},
	}
	_, err = NewState(m, mesh)
	assert.ErrorContains(t, err, "not in inner compartment")
}

func TestSReacDependsOn(t *testing.T) {
	st, r := sreacFixture(t, 1, 1e-18, 1e-12)
	gA, _ := st.Model.SpecIdx("A")
	gR, _ := st.Model.SpecIdx("R")
	gRA, _ := st.Model.SpecIdx("RA")

	assert.True(t, r.DependsOnTetSpec(gA, st.Tets[0]))
	assert.False(t, r.DependsOnTetSpec(gR, st.Tets[0]))
	assert.True(t, r.DependsOnTriSpec(gR, st.Tris[0]))
	assert.False(t, r.DependsOnTriSpec(gRA, st.Tris[0]), "products are written, not read")
}
