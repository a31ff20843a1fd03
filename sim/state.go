package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// State is the bound simulation state: the spatial element arenas, the
// compartment/patch containers, and the full kinetic-process population
// with its dependency graph. Elements and KProcs live in append-only
// slices; peers are referenced by mesh index or SchedIDX, which keeps
// checkpointing a matter of serializing indices.
type State struct {
	Model *ModelDef
	Mesh  *Mesh

	Comps   []*Comp
	Patches []*Patch
	Tets    []*Tet
	Tris    []*Tri
	KProcs  []KProc

	// complete flips once every KProc exists; SetupDeps before that point
	// is a construction defect.
	complete bool
}

// NewState binds a model to a mesh: builds the element arenas, the
// containers, and the kinetic processes, then runs the two-phase dependency
// setup. Input inconsistencies (mesh validation, unresolvable surface
// stoichiometry) are returned as errors; broken internal invariants panic.
func NewState(model *ModelDef, mesh *Mesh) (*State, error) {
	if err := mesh.Validate(model); err != nil {
		return nil, fmt.Errorf("invalid mesh: %w", err)
	}
	st := &State{Model: model, Mesh: mesh}

	comps := make(map[string]*Comp, len(model.Comps))
	for _, d := range model.Comps {
		c := NewComp(d)
		st.Comps = append(st.Comps, c)
		comps[d.Name] = c
	}
	patches := make(map[string]*Patch, len(model.Patches))
	for _, d := range model.Patches {
		p := NewPatch(d)
		st.Patches = append(st.Patches, p)
		patches[d.Name] = p
	}

	for i, td := range mesh.Tets {
		def, _ := model.Comp(td.Comp)
		tet := &Tet{
			Idx:      i,
			Vol:      td.Vol,
			Pool:     NewPool(def.NumSpecs()),
			Next:     td.Next,
			Coupling: td.Coupling,
			def:      def,
		}
		st.Tets = append(st.Tets, tet)
		comps[td.Comp].AddTet(tet)
	}
	for i, td := range mesh.Tris {
		def, _ := model.Patch(td.Patch)
		tri := &Tri{
			Idx:   i,
			Area:  td.Area,
			Pool:  NewPool(def.NumSpecs()),
			Inner: td.Inner,
			Outer: td.Outer,
			def:   def,
		}
		st.Tris = append(st.Tris, tri)
		patches[td.Patch].AddTri(tri)
	}

	// Phase one: create every kinetic process. SchedIDX assignment order is
	// tets in mesh order (reactions, then diffusions, per definition
	// order), then tris in mesh order.
	for _, tet := range st.Tets {
		for _, rd := range tet.def.Reacs {
			st.addKProc(newReaction(rd, tet))
			tet.addKProc(st.KProcs[len(st.KProcs)-1].SchedIDX())
		}
		for _, dd := range tet.def.Diffs {
			st.addKProc(newDiffusion(st, dd, tet))
			tet.addKProc(st.KProcs[len(st.KProcs)-1].SchedIDX())
		}
	}
	for _, tri := range st.Tris {
		for _, sd := range tri.def.SReacs {
			sr, err := newSReac(st, sd, tri)
			if err != nil {
				return nil, err
			}
			st.addKProc(sr)
			tri.addKProc(sr.SchedIDX())
		}
	}

	// Phase two: the universe is complete, dependencies may be discovered.
	st.complete = true
	for _, kp := range st.KProcs {
		kp.SetupDeps(st)
	}

	logrus.Debugf("state bound: %d tets, %d tris, %d kprocs", len(st.Tets), len(st.Tris), len(st.KProcs))
	return st, nil
}

type schedIDXSetter interface {
	setSchedIDX(SchedIDX)
}

func (st *State) addKProc(kp KProc) {
	kp.(schedIDXSetter).setSchedIDX(SchedIDX(len(st.KProcs)))
	st.KProcs = append(st.KProcs, kp)
}

// mustBeComplete panics when dependency discovery is attempted before the
// full kinetic-process universe exists.
func (st *State) mustBeComplete(op string) {
	if !st.complete {
		panic(op + " invoked before the kinetic-process universe is complete")
	}
}

// Comp returns the container for the named compartment.
func (st *State) Comp(name string) (*Comp, bool) {
	for _, c := range st.Comps {
		if c.def.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Patch returns the container for the named patch.
func (st *State) Patch(name string) (*Patch, bool) {
	for _, p := range st.Patches {
		if p.def.Name == name {
			return p, true
		}
	}
	return nil, false
}

// DependentsOfTetSpec returns every kinetic process whose rate depends on
// the given global species count in the given tet. Only the processes homed
// on the tet, its neighbours, and its surface tris can qualify, but the
// scan is exhaustive: it is run once per process at setup and on
// administrative changes, never on the hot path.
func (st *State) DependentsOfTetSpec(g SpecID, tet *Tet) []SchedIDX {
	var out []SchedIDX
	for _, kp := range st.KProcs {
		if kp.DependsOnTetSpec(g, tet) {
			out = append(out, kp.SchedIDX())
		}
	}
	return out
}

// DependentsOfTriSpec returns every kinetic process whose rate depends on
// the given global species count in the given tri.
func (st *State) DependentsOfTriSpec(g SpecID, tri *Tri) []SchedIDX {
	var out []SchedIDX
	for _, kp := range st.KProcs {
		if kp.DependsOnTriSpec(g, tri) {
			out = append(out, kp.SchedIDX())
		}
	}
	return out
}

// PoolCount reads one (element, species) count by reference. Returns false
// when the species has no slot in the element's definition.
func (st *State) PoolCount(ref PoolRef) (int, bool) {
	switch ref.Kind {
	case ElemTet:
		tet := st.Tets[ref.Elem]
		slot, ok := tet.def.LocalIdx(ref.Spec)
		if !ok {
			return 0, false
		}
		return tet.Pool.Count(slot), true
	case ElemTri:
		tri := st.Tris[ref.Elem]
		slot, ok := tri.def.LocalIdx(ref.Spec)
		if !ok {
			return 0, false
		}
		return tri.Pool.Count(slot), true
	}
	return 0, false
}

// SetPoolCount overwrites one (element, species) count by reference.
// Used by ghost-pool updates in the parallel variant.
func (st *State) SetPoolCount(ref PoolRef, n int) bool {
	switch ref.Kind {
	case ElemTet:
		tet := st.Tets[ref.Elem]
		if slot, ok := tet.def.LocalIdx(ref.Spec); ok {
			tet.Pool.Set(slot, n)
			return true
		}
	case ElemTri:
		tri := st.Tris[ref.Elem]
		if slot, ok := tri.def.LocalIdx(ref.Spec); ok {
			tri.Pool.Set(slot, n)
			return true
		}
	}
	return false
}

// dedupSchedIDX sorts and deduplicates a dependency list in place.
func dedupSchedIDX(idxs []SchedIDX) []SchedIDX {
	if len(idxs) < 2 {
		return idxs
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	out := idxs[:1]
	for _, v := range idxs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
