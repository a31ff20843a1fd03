package sim

// Reaction is an intra-element volume reaction channel: one ReacDef bound
// to one tet.
type Reaction struct {
	kprocBase

	def  *ReacDef
	tet  *Tet
	ccst float64 // scaled propensity constant, cached by Reset
}

func newReaction(def *ReacDef, tet *Tet) *Reaction {
	r := &Reaction{def: def, tet: tet}
	r.Reset()
	return r
}

// Def returns the bound reaction definition.
func (r *Reaction) Def() *ReacDef { return r.def }

// Tet returns the owning element.
func (r *Reaction) Tet() *Tet { return r.tet }

// Kind implements KProc.
func (r *Reaction) Kind() KProcKind { return KindReac }

// Reset implements KProc: re-derives the scaled constant from the
// definition's current kcst and the element volume.
func (r *Reaction) Reset() {
	r.ccst = scaledVolConst(r.def.Kcst, r.def.Order(), r.tet.Vol)
}

// Rate implements KProc: h * c over the element's current counts.
func (r *Reaction) Rate() float64 {
	h := 1.0
	for _, t := range r.def.LHS {
		h *= combinations(r.tet.Pool.Count(t.Slot), t.N)
	}
	return h * r.ccst
}

// Apply implements KProc: one discrete occurrence, consuming reactants and
// producing products in the owning tet. The hop uniform is unused.
func (r *Reaction) Apply(_ *State, _ float64) []SchedIDX {
	for _, u := range r.def.Upd() {
		r.tet.Pool.Add(u.Slot, u.N)
	}
	return r.deps
}

// DependsOnTetSpec implements KProc.
func (r *Reaction) DependsOnTetSpec(g SpecID, tet *Tet) bool {
	if tet != r.tet {
		return false
	}
	slot, ok := r.def.comp.LocalIdx(g)
	if !ok {
		return false
	}
	for _, t := range r.def.LHS {
		if t.Slot == slot {
			return true
		}
	}
	return false
}

// DependsOnTriSpec implements KProc: a volume reaction never reads surface
// counts.
func (r *Reaction) DependsOnTriSpec(SpecID, *Tri) bool { return false }

// Footprint implements KProc.
func (r *Reaction) Footprint() []PoolRef {
	refs := make([]PoolRef, 0, len(r.def.Upd()))
	for _, u := range r.def.Upd() {
		refs = append(refs, PoolRef{Kind: ElemTet, Elem: r.tet.Idx, Spec: r.def.comp.GlobalIdx(u.Slot)})
	}
	return refs
}

// SetupDeps implements KProc.
func (r *Reaction) SetupDeps(st *State) {
	st.mustBeComplete("Reaction.SetupDeps")
	idxs := []SchedIDX{r.schedIDX}
	for _, ref := range r.Footprint() {
		idxs = append(idxs, st.DependentsOfTetSpec(ref.Spec, st.Tets[ref.Elem])...)
	}
	r.deps = dedupSchedIDX(idxs)
}
