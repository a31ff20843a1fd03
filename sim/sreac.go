package sim

import "fmt"

// SReac is a surface reaction channel: one SReacDef bound to one tri,
// consuming/producing surface species on the tri and volume species in its
// inner tet.
type SReac struct {
	kprocBase

	def  *SReacDef
	tri  *Tri
	itet *Tet

	// Volume-side stoichiometry resolved to local slots of the inner tet's
	// compartment definition.
	volLHS []Stoich
	volUpd []Stoich

	ccst float64 // scaled propensity constant, cached by Reset
}

func newSReac(st *State, def *SReacDef, tri *Tri) (*SReac, error) {
	r := &SReac{def: def, tri: tri, itet: st.Tets[tri.Inner]}
	cdef := r.itet.def
	resolve := func(terms []VolStoich) ([]Stoich, error) {
		out := make([]Stoich, 0, len(terms))
		for _, t := range terms {
			slot, ok := cdef.LocalIdx(t.Spec)
			if !ok {
				return nil, fmt.Errorf("sreaction %q on tri %d: species %q not in inner compartment %q",
					def.Name, tri.Idx, def.patch.model.Species[t.Spec], cdef.Name)
			}
			out = append(out, Stoich{Slot: slot, N: t.N})
		}
		return out, nil
	}
	var err error
	if r.volLHS, err = resolve(def.VolLHS); err != nil {
		return nil, err
	}
	if r.volUpd, err = resolve(def.VolUpd()); err != nil {
		return nil, err
	}
	r.Reset()
	return r, nil
}

// Def returns the bound surface reaction definition.
func (r *SReac) Def() *SReacDef { return r.def }

// Tri returns the owning surface element.
func (r *SReac) Tri() *Tri { return r.tri }

// Kind implements KProc.
func (r *SReac) Kind() KProcKind { return KindSReac }

// Reset implements KProc. Channels with volume-side reactants scale by the
// inner tet volume, pure-surface channels by the tri area.
func (r *SReac) Reset() {
	if len(r.def.VolLHS) > 0 {
		r.ccst = scaledVolConst(r.def.Kcst, r.def.Order(), r.itet.Vol)
	} else {
		r.ccst = scaledAreaConst(r.def.Kcst, r.def.Order(), r.tri.Area)
	}
}

// Rate implements KProc.
func (r *SReac) Rate() float64 {
	h := 1.0
	for _, t := range r.def.SurfLHS {
		h *= combinations(r.tri.Pool.Count(t.Slot), t.N)
	}
	for _, t := range r.volLHS {
		h *= combinations(r.itet.Pool.Count(t.Slot), t.N)
	}
	return h * r.ccst
}

// Apply implements KProc. The hop uniform is unused.
func (r *SReac) Apply(_ *State, _ float64) []SchedIDX {
	for _, u := range r.def.SurfUpd() {
		r.tri.Pool.Add(u.Slot, u.N)
	}
	for _, u := range r.volUpd {
		r.itet.Pool.Add(u.Slot, u.N)
	}
	return r.deps
}

// DependsOnTetSpec implements KProc.
func (r *SReac) DependsOnTetSpec(g SpecID, tet *Tet) bool {
	if tet != r.itet {
		return false
	}
	for _, t := range r.def.VolLHS {
		if t.Spec == g {
			return true
		}
	}
	return false
}

// DependsOnTriSpec implements KProc.
func (r *SReac) DependsOnTriSpec(g SpecID, tri *Tri) bool {
	if tri != r.tri {
		return false
	}
	slot, ok := r.def.patch.LocalIdx(g)
	if !ok {
		return false
	}
	for _, t := range r.def.SurfLHS {
		if t.Slot == slot {
			return true
		}
	}
	return false
}

// Footprint implements KProc.
func (r *SReac) Footprint() []PoolRef {
	refs := make([]PoolRef, 0, len(r.def.SurfUpd())+len(r.volUpd))
	for _, u := range r.def.SurfUpd() {
		refs = append(refs, PoolRef{Kind: ElemTri, Elem: r.tri.Idx, Spec: r.def.patch.GlobalIdx(u.Slot)})
	}
	for _, u := range r.volUpd {
		refs = append(refs, PoolRef{Kind: ElemTet, Elem: r.itet.Idx, Spec: r.itet.def.GlobalIdx(u.Slot)})
	}
	return refs
}

// SetupDeps implements KProc.
func (r *SReac) SetupDeps(st *State) {
	st.mustBeComplete("SReac.SetupDeps")
	idxs := []SchedIDX{r.schedIDX}
	for _, ref := range r.Footprint() {
		switch ref.Kind {
		case ElemTet:
			idxs = append(idxs, st.DependentsOfTetSpec(ref.Spec, st.Tets[ref.Elem])...)
		case ElemTri:
			idxs = append(idxs, st.DependentsOfTriSpec(ref.Spec, st.Tris[ref.Elem])...)
		}
	}
	r.deps = dedupSchedIDX(idxs)
}
