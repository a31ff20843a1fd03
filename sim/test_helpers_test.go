package sim

import "testing"

// mustModel fails the test on any model-construction error.
func mustModel(t *testing.T, species ...string) *ModelDef {
	t.Helper()
	m, err := NewModelDef(species...)
	if err != nil {
		t.Fatalf("NewModelDef: %v", err)
	}
	return m
}

func mustComp(t *testing.T, m *ModelDef, name string, species ...string) *CompDef {
	t.Helper()
	c, err := m.AddComp(name, species...)
	if err != nil {
		t.Fatalf("AddComp(%s): %v", name, err)
	}
	return c
}

func mustPatch(t *testing.T, m *ModelDef, name string, species ...string) *PatchDef {
	t.Helper()
	p, err := m.AddPatch(name, species...)
	if err != nil {
		t.Fatalf("AddPatch(%s): %v", name, err)
	}
	return p
}

func mustReac(t *testing.T, c *CompDef, name string, lhs, rhs map[string]int, kcst float64) *ReacDef {
	t.Helper()
	r, err := c.AddReac(name, lhs, rhs, kcst)
	if err != nil {
		t.Fatalf("AddReac(%s): %v", name, err)
	}
	return r
}

func mustDiff(t *testing.T, c *CompDef, name, species string, dcst float64) *DiffDef {
	t.Helper()
	d, err := c.AddDiff(name, species, dcst)
	if err != nil {
		t.Fatalf("AddDiff(%s): %v", name, err)
	}
	return d
}

func mustState(t *testing.T, m *ModelDef, mesh *Mesh) *State {
	t.Helper()
	st, err := NewState(m, mesh)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return st
}

func mustSim(t *testing.T, cfg SimConfig, m *ModelDef, mesh *Mesh) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg, m, mesh)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

// oneTetMesh is a single isolated tet of the given compartment and volume.
func oneTetMesh(comp string, vol float64) *Mesh {
	return &Mesh{
		Tets: []TetDef{
			{Comp: comp, Vol: vol, Next: [4]int{-1, -1, -1, -1}},
		},
	}
}

// twoTetMesh is a pair of tets joined across one face with unit coupling.
func twoTetMesh(comp string, vol float64) *Mesh {
	return &Mesh{
		Tets: []TetDef{
			{Comp: comp, Vol: vol, Next: [4]int{1, -1, -1, -1}, Coupling: [4]float64{1, 0, 0, 0}},
			{Comp: comp, Vol: vol, Next: [4]int{0, -1, -1, -1}, Coupling: [4]float64{1, 0, 0, 0}},
		},
	}
}

// chainMesh is n tets in a row, unit volume and unit coupling per shared
// face.
func chainMesh(comp string, n int) *Mesh {
	mesh := &Mesh{}
	for i := 0; i < n; i++ {
		td := TetDef{Comp: comp, Vol: 1.0, Next: [4]int{-1, -1, -1, -1}}
		if i > 0 {
			td.Next[0] = i - 1
			td.Coupling[0] = 1
		}
		if i < n-1 {
			td.Next[1] = i + 1
			td.Coupling[1] = 1
		}
		mesh.Tets = append(mesh.Tets, td)
	}
	return mesh
}

// setTetCount sets one tet's count for a global species name directly.
func setTetCount(t *testing.T, st *State, tetIdx int, species string, n int) {
	t.Helper()
	g, ok := st.Model.SpecIdx(species)
	if !ok {
		t.Fatalf("unknown species %q", species)
	}
	slot, ok := st.Tets[tetIdx].Def().LocalIdx(g)
	if !ok {
		t.Fatalf("species %q not in tet %d", species, tetIdx)
	}
	st.Tets[tetIdx].Pool.Set(slot, n)
}

// tetCount reads one tet's count for a global species name.
func tetCount(t *testing.T, st *State, tetIdx int, species string) int {
	t.Helper()
	g, ok := st.Model.SpecIdx(species)
	if !ok {
		t.Fatalf("unknown species %q", species)
	}
	slot, ok := st.Tets[tetIdx].Def().LocalIdx(g)
	if !ok {
		t.Fatalf("species %q not in tet %d", species, tetIdx)
	}
	return st.Tets[tetIdx].Pool.Count(slot)
}
