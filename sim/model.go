package sim

import "fmt"

// SpecID is a global species index, valid across the whole model.
type SpecID int

// Stoich is one (local species slot, multiplicity) term of a stoichiometry.
// The slot indexes the owning definition's species list.
type Stoich struct {
	Slot int
	N    int
}

// VolStoich is one stoichiometry term addressing a volume species by global
// index. Surface reactions use it for their volume-side reactants/products,
// which are resolved to a local slot of the inner tetrahedron's compartment
// definition when the kinetic process is built.
type VolStoich struct {
	Spec SpecID
	N    int
}

// ModelDef is the immutable model description: the global species list and
// the compartment/patch definitions that select which species and reaction
// channels are legal where. It is built once before the mesh is bound and
// treated as read-only afterwards, except for administrative rate-constant
// changes on the reaction definitions.
type ModelDef struct {
	Species []string
	Comps   []*CompDef
	Patches []*PatchDef

	specIdx  map[string]SpecID
	compIdx  map[string]int
	patchIdx map[string]int
}

// NewModelDef creates a model with the given global species names.
func NewModelDef(species ...string) (*ModelDef, error) {
	m := &ModelDef{
		specIdx:  make(map[string]SpecID, len(species)),
		compIdx:  make(map[string]int),
		patchIdx: make(map[string]int),
	}
	for _, s := range species {
		if _, dup := m.specIdx[s]; dup {
			return nil, fmt.Errorf("duplicate species %q", s)
		}
		m.specIdx[s] = SpecID(len(m.Species))
		m.Species = append(m.Species, s)
	}
	return m, nil
}

// SpecIdx resolves a species name to its global index.
func (m *ModelDef) SpecIdx(name string) (SpecID, bool) {
	g, ok := m.specIdx[name]
	return g, ok
}

// NumSpecs returns the number of global species.
func (m *ModelDef) NumSpecs() int { return len(m.Species) }

// Comp resolves a compartment definition by name.
func (m *ModelDef) Comp(name string) (*CompDef, bool) {
	i, ok := m.compIdx[name]
	if !ok {
		return nil, false
	}
	return m.Comps[i], true
}

// Patch resolves a patch definition by name.
func (m *ModelDef) Patch(name string) (*PatchDef, bool) {
	i, ok := m.patchIdx[name]
	if !ok {
		return nil, false
	}
	return m.Patches[i], true
}

// AddComp defines a compartment holding the named subset of species.
func (m *ModelDef) AddComp(name string, species ...string) (*CompDef, error) {
	if _, dup := m.compIdx[name]; dup {
		return nil, fmt.Errorf("duplicate compartment %q", name)
	}
	d := &CompDef{Name: name, model: m, local: make(map[SpecID]int, len(species))}
	for _, s := range species {
		g, ok := m.specIdx[s]
		if !ok {
			return nil, fmt.Errorf("compartment %q: unknown species %q", name, s)
		}
		if _, dup := d.local[g]; dup {
			return nil, fmt.Errorf("compartment %q: duplicate species %q", name, s)
		}
		d.local[g] = len(d.Specs)
		d.Specs = append(d.Specs, g)
	}
	m.compIdx[name] = len(m.Comps)
	m.Comps = append(m.Comps, d)
	return d, nil
}

// AddPatch defines a patch holding the named subset of (surface) species.
func (m *ModelDef) AddPatch(name string, species ...string) (*PatchDef, error) {
	if _, dup := m.patchIdx[name]; dup {
		return nil, fmt.Errorf("duplicate patch %q", name)
	}
	d := &PatchDef{Name: name, model: m, local: make(map[SpecID]int, len(species))}
	for _, s := range species {
		g, ok := m.specIdx[s]
		if !ok {
			return nil, fmt.Errorf("patch %q: unknown species %q", name, s)
		}
		if _, dup := d.local[g]; dup {
			return nil, fmt.Errorf("patch %q: duplicate species %q", name, s)
		}
		d.local[g] = len(d.Specs)
		d.Specs = append(d.Specs, g)
	}
	m.patchIdx[name] = len(m.Patches)
	m.Patches = append(m.Patches, d)
	return d, nil
}

// CompDef selects the species, reaction channels, and diffusion rules legal
// inside one named compartment. Slot order follows the species order given
// to AddComp.
type CompDef struct {
	Name  string
	Specs []SpecID
	Reacs []*ReacDef
	Diffs []*DiffDef

	model *ModelDef
	local map[SpecID]int
}

// NumSpecs returns the number of local species slots.
func (d *CompDef) NumSpecs() int { return len(d.Specs) }

// LocalIdx resolves a global species index to this definition's local slot.
func (d *CompDef) LocalIdx(g SpecID) (int, bool) {
	s, ok := d.local[g]
	return s, ok
}

// GlobalIdx returns the global species index stored in the given slot.
func (d *CompDef) GlobalIdx(slot int) SpecID { return d.Specs[slot] }

// AddReac defines a volume reaction channel with the given stoichiometry,
// expressed as species-name -> multiplicity maps. Kcst is in SI units,
// M^(1-order) s^-1.
func (d *CompDef) AddReac(name string, lhs, rhs map[string]int, kcst float64) (*ReacDef, error) {
	if kcst < 0 {
		return nil, fmt.Errorf("reaction %q: negative kcst", name)
	}
	r := &ReacDef{Name: name, Kcst: kcst, comp: d}
	var err error
	if r.LHS, err = d.stoich(name, lhs); err != nil {
		return nil, err
	}
	if r.RHS, err = d.stoich(name, rhs); err != nil {
		return nil, err
	}
	for _, t := range r.LHS {
		r.order += t.N
	}
	if r.order == 0 {
		return nil, fmt.Errorf("reaction %q: empty left-hand side", name)
	}
	r.upd = netChange(r.LHS, r.RHS)
	d.Reacs = append(d.Reacs, r)
	return r, nil
}

// AddDiff defines a diffusion rule for one ligand species. Dcst is the
// diffusion constant in m^2 s^-1.
func (d *CompDef) AddDiff(name, species string, dcst float64) (*DiffDef, error) {
	if dcst < 0 {
		return nil, fmt.Errorf("diffusion %q: negative dcst", name)
	}
	g, ok := d.model.specIdx[species]
	if !ok {
		return nil, fmt.Errorf("diffusion %q: unknown species %q", name, species)
	}
	slot, ok := d.local[g]
	if !ok {
		return nil, fmt.Errorf("diffusion %q: species %q not in compartment %q", name, species, d.Name)
	}
	df := &DiffDef{Name: name, Lig: slot, Dcst: dcst, comp: d}
	d.Diffs = append(d.Diffs, df)
	return df, nil
}

func (d *CompDef) stoich(reac string, terms map[string]int) ([]Stoich, error) {
	out := make([]Stoich, 0, len(terms))
	for _, g := range d.Specs { // slot order, for determinism
		name := d.model.Species[g]
		n, ok := terms[name]
		if !ok {
			continue
		}
		if n <= 0 {
			return nil, fmt.Errorf("reaction %q: non-positive multiplicity for %q", reac, name)
		}
		out = append(out, Stoich{Slot: d.local[g], N: n})
	}
	if len(out) != len(terms) {
		return nil, fmt.Errorf("reaction %q: stoichiometry names species outside compartment %q", reac, d.Name)
	}
	return out, nil
}

// ReacDef is one volume reaction channel of a compartment definition.
type ReacDef struct {
	Name     string
	LHS, RHS []Stoich
	Kcst     float64

	comp  *CompDef
	order int
	upd   []Stoich // net count change per touched slot, zero terms removed
}

// Order returns the reaction order (total LHS multiplicity).
func (r *ReacDef) Order() int { return r.order }

// Upd returns the net count change per touched local slot.
func (r *ReacDef) Upd() []Stoich { return r.upd }

// DiffDef is one diffusion rule of a compartment definition.
type DiffDef struct {
	Name string
	Lig  int // local slot of the diffusing species
	Dcst float64

	comp *CompDef
}

// PatchDef selects the surface species and surface reaction channels legal
// on one named patch.
type PatchDef struct {
	Name   string
	Specs  []SpecID
	SReacs []*SReacDef

	model *ModelDef
	local map[SpecID]int
}

// NumSpecs returns the number of local (surface) species slots.
func (d *PatchDef) NumSpecs() int { return len(d.Specs) }

// LocalIdx resolves a global species index to this definition's local slot.
func (d *PatchDef) LocalIdx(g SpecID) (int, bool) {
	s, ok := d.local[g]
	return s, ok
}

// GlobalIdx returns the global species index stored in the given slot.
func (d *PatchDef) GlobalIdx(slot int) SpecID { return d.Specs[slot] }

// AddSReac defines a surface reaction channel. Surface terms address patch
// species; volume terms address species that must exist in the compartment
// of each member triangle's inner tetrahedron (checked at binding time).
func (d *PatchDef) AddSReac(name string, surfLHS, volLHS, surfRHS, volRHS map[string]int, kcst float64) (*SReacDef, error) {
	if kcst < 0 {
		return nil, fmt.Errorf("sreaction %q: negative kcst", name)
	}
	r := &SReacDef{Name: name, Kcst: kcst, patch: d}
	var err error
	if r.SurfLHS, err = d.stoich(name, surfLHS); err != nil {
		return nil, err
	}
	if r.SurfRHS, err = d.stoich(name, surfRHS); err != nil {
		return nil, err
	}
	if r.VolLHS, err = d.volStoich(name, volLHS); err != nil {
		return nil, err
	}
	if r.VolRHS, err = d.volStoich(name, volRHS); err != nil {
		return nil, err
	}
	for _, t := range r.SurfLHS {
		r.order += t.N
	}
	for _, t := range r.VolLHS {
		r.order += t.N
	}
	if r.order == 0 {
		return nil, fmt.Errorf("sreaction %q: empty left-hand side", name)
	}
	r.surfUpd = netChange(r.SurfLHS, r.SurfRHS)
	r.volUpd = netChangeVol(r.VolLHS, r.VolRHS)
	d.SReacs = append(d.SReacs, r)
	return r, nil
}

func (d *PatchDef) stoich(reac string, terms map[string]int) ([]Stoich, error) {
	out := make([]Stoich, 0, len(terms))
	for _, g := range d.Specs {
		name := d.model.Species[g]
		n, ok := terms[name]
		if !ok {
			continue
		}
		if n <= 0 {
			return nil, fmt.Errorf("sreaction %q: non-positive multiplicity for %q", reac, name)
		}
		out = append(out, Stoich{Slot: d.local[g], N: n})
	}
	if len(out) != len(terms) {
		return nil, fmt.Errorf("sreaction %q: stoichiometry names species outside patch %q", reac, d.Name)
	}
	return out, nil
}

func (d *PatchDef) volStoich(reac string, terms map[string]int) ([]VolStoich, error) {
	out := make([]VolStoich, 0, len(terms))
	for g, name := range d.model.Species { // global order, for determinism
		n, ok := terms[name]
		if !ok {
			continue
		}
		if n <= 0 {
			return nil, fmt.Errorf("sreaction %q: non-positive multiplicity for %q", reac, name)
		}
		out = append(out, VolStoich{Spec: SpecID(g), N: n})
	}
	if len(out) != len(terms) {
		return nil, fmt.Errorf("sreaction %q: volume stoichiometry names unknown species", reac)
	}
	return out, nil
}

// SReacDef is one surface reaction channel of a patch definition.
type SReacDef struct {
	Name             string
	SurfLHS, SurfRHS []Stoich
	VolLHS, VolRHS   []VolStoich
	Kcst             float64

	patch   *PatchDef
	order   int
	surfUpd []Stoich
	volUpd  []VolStoich
}

// Order returns the reaction order (total LHS multiplicity, both sides of
// the membrane).
func (r *SReacDef) Order() int { return r.order }

// SurfUpd returns the net surface count change per touched local slot.
func (r *SReacDef) SurfUpd() []Stoich { return r.surfUpd }

// VolUpd returns the net volume count change per touched global species.
func (r *SReacDef) VolUpd() []VolStoich { return r.volUpd }

// netChange folds LHS/RHS into per-slot net deltas, dropping zero terms.
func netChange(lhs, rhs []Stoich) []Stoich {
	delta := map[int]int{}
	order := []int{}
	note := func(slot, n int) {
		if _, seen := delta[slot]; !seen {
			order = append(order, slot)
		}
		delta[slot] += n
	}
	for _, t := range lhs {
		note(t.Slot, -t.N)
	}
	for _, t := range rhs {
		note(t.Slot, t.N)
	}
	out := []Stoich{}
	for _, slot := range order {
		if delta[slot] != 0 {
			out = append(out, Stoich{Slot: slot, N: delta[slot]})
		}
	}
	return out
}

func netChangeVol(lhs, rhs []VolStoich) []VolStoich {
	delta := map[SpecID]int{}
	order := []SpecID{}
	note := func(g SpecID, n int) {
		if _, seen := delta[g]; !seen {
			order = append(order, g)
		}
		delta[g] += n
	}
	for _, t := range lhs {
		note(t.Spec, -t.N)
	}
	for _, t := range rhs {
		note(t.Spec, t.N)
	}
	out := []VolStoich{}
	for _, g := range order {
		if delta[g] != 0 {
			out = append(out, VolStoich{Spec: g, N: delta[g]})
		}
	}
	return out
}
