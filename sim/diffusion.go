package sim

// Diffusion is an inter-element diffusion-hop channel: one DiffDef bound to
// one source tet. Its rate aggregates the scaled hop rates over all
// eligible directions; the destination is drawn per firing from the same
// weights, so anisotropic meshes are handled without extra state.
type Diffusion struct {
	kprocBase

	def  *DiffDef
	tet  *Tet
	lig  SpecID // global index of the diffusing species
	elig [4]bool

	scaled [4]float64 // per-direction hop rate constants, cached by Reset
	dtot   float64

	// Per-direction dependency lists: Apply returns only the list of the
	// direction actually taken.
	dirDeps [4][]SchedIDX
}

func newDiffusion(st *State, def *DiffDef, tet *Tet) *Diffusion {
	d := &Diffusion{def: def, tet: tet, lig: def.comp.GlobalIdx(def.Lig)}
	// A hop is eligible when a neighbour exists and shares the compartment
	// definition: diffusion never crosses a compartment boundary.
	for f, nb := range tet.Next {
		d.elig[f] = nb >= 0 && st.Tets[nb].def == def.comp
	}
	d.Reset()
	return d
}

// Def returns the bound diffusion definition.
func (d *Diffusion) Def() *DiffDef { return d.def }

// Tet returns the source element.
func (d *Diffusion) Tet() *Tet { return d.tet }

// Kind implements KProc.
func (d *Diffusion) Kind() KProcKind { return KindDiff }

// Reset implements KProc: re-derives the per-direction hop rates from the
// definition's current diffusion constant and the mesh couplings.
func (d *Diffusion) Reset() {
	d.dtot = 0
	for f := range d.scaled {
		if d.elig[f] {
			d.scaled[f] = d.def.Dcst * d.tet.Coupling[f]
		} else {
			d.scaled[f] = 0
		}
		d.dtot += d.scaled[f]
	}
}

// Rate implements KProc: total scaled hop rate times the ligand count.
func (d *Diffusion) Rate() float64 {
	return d.dtot * float64(d.tet.Pool.Count(d.def.Lig))
}

// Apply implements KProc: moves one ligand molecule from the source tet to
// a destination drawn from the per-direction weights with the event's hop
// uniform. Half-open scan; last eligible direction is the rounding
// fallback.
func (d *Diffusion) Apply(st *State, hopU float64) []SchedIDX {
	dir := -1
	selector := hopU * d.dtot
	accum := 0.0
	for f, w := range d.scaled {
		if w == 0 {
			continue
		}
		dir = f
		accum += w
		if selector <= accum {
			break
		}
	}
	if dir < 0 {
		// Zero total rate: the scheduler never selects this process.
		panic("diffusion applied with no eligible direction")
	}
	dst := st.Tets[d.tet.Next[dir]]
	d.tet.Pool.Add(d.def.Lig, -1)
	dst.Pool.Add(d.def.Lig, 1) // same compartment definition, same slot
	return d.dirDeps[dir]
}

// DependsOnTetSpec implements KProc.
func (d *Diffusion) DependsOnTetSpec(g SpecID, tet *Tet) bool {
	return tet == d.tet && g == d.lig
}

// DependsOnTriSpec implements KProc.
func (d *Diffusion) DependsOnTriSpec(SpecID, *Tri) bool { return false }

// Footprint implements KProc: the source count plus every eligible
// destination count, covering all possible outcomes.
func (d *Diffusion) Footprint() []PoolRef {
	refs := []PoolRef{{Kind: ElemTet, Elem: d.tet.Idx, Spec: d.lig}}
	for f, ok := range d.elig {
		if ok {
			refs = append(refs, PoolRef{Kind: ElemTet, Elem: d.tet.Next[f], Spec: d.lig})
		}
	}
	return refs
}

// SetupDeps implements KProc: one dependency list per direction, each
// covering the source and that direction's destination.
func (d *Diffusion) SetupDeps(st *State) {
	st.mustBeComplete("Diffusion.SetupDeps")
	src := st.DependentsOfTetSpec(d.lig, d.tet)
	all := []SchedIDX{d.schedIDX}
	all = append(all, src...)
	for f, ok := range d.elig {
		if !ok {
			continue
		}
		dst := st.Tets[d.tet.Next[f]]
		idxs := []SchedIDX{d.schedIDX}
		idxs = append(idxs, src...)
		idxs = append(idxs, st.DependentsOfTetSpec(d.lig, dst)...)
		d.dirDeps[f] = dedupSchedIDX(idxs)
		all = append(all, d.dirDeps[f]...)
	}
	d.deps = dedupSchedIDX(all)
}
