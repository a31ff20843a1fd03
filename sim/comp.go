package sim

import "fmt"

// Comp groups the tetrahedra of one compartment in insertion order and
// maintains their total volume incrementally. The spatial decomposition is
// fixed after mesh binding: elements are added during construction and
// never removed.
type Comp struct {
	Tets []*Tet

	def *CompDef
	vol float64
}

// NewComp creates an empty compartment for the given definition.
func NewComp(def *CompDef) *Comp {
	return &Comp{def: def}
}

// Def returns the compartment definition.
func (c *Comp) Def() *CompDef { return c.def }

// Vol returns the total volume of all member tets.
func (c *Comp) Vol() float64 { return c.vol }

// AddTet appends a tet to the compartment and grows the total volume.
// A definition mismatch is a construction-time defect and panics.
func (c *Comp) AddTet(t *Tet) {
	if t.def != c.def {
		panic(fmt.Sprintf("tet %d bound to compartment %q but defined for %q", t.Idx, c.def.Name, t.def.Name))
	}
	c.Tets = append(c.Tets, t)
	c.vol += t.Vol
}

// PickTetByVolume selects a member tet with probability proportional to its
// volume. rand01 must be in [0, 1). Returns nil for an empty compartment; a
// single member is returned directly without entering the scan. The scan
// uses half-open semantics (first member whose cumulative volume meets or
// exceeds the scaled selector) with the last member as the fallback when
// floating-point shortfall exhausts the scan.
func (c *Comp) PickTetByVolume(rand01 float64) *Tet {
	if len(c.Tets) == 0 {
		return nil
	}
	if len(c.Tets) == 1 {
		return c.Tets[0]
	}
	selector := rand01 * c.vol
	accum := 0.0
	for _, t := range c.Tets {
		accum += t.Vol
		if selector <= accum {
			return t
		}
	}
	return c.Tets[len(c.Tets)-1]
}

// Patch groups the triangles of one patch in insertion order and maintains
// their total area incrementally.
type Patch struct {
	Tris []*Tri

	def  *PatchDef
	area float64
}

// NewPatch creates an empty patch for the given definition.
func NewPatch(def *PatchDef) *Patch {
	return &Patch{def: def}
}

// Def returns the patch definition.
func (p *Patch) Def() *PatchDef { return p.def }

// Area returns the total area of all member tris.
func (p *Patch) Area() float64 { return p.area }

// AddTri appends a tri to the patch and grows the total area.
// A definition mismatch is a construction-time defect and panics.
func (p *Patch) AddTri(t *Tri) {
	if t.def != p.def {
		panic(fmt.Sprintf("tri %d bound to patch %q but defined for %q", t.Idx, p.def.Name, t.def.Name))
	}
	p.Tris = append(p.Tris, t)
	p.area += t.Area
}

// PickTriByArea selects a member tri with probability proportional to its
// area, with the same selection semantics as Comp.PickTetByVolume.
func (p *Patch) PickTriByArea(rand01 float64) *Tri {
	if len(p.Tris) == 0 {
		return nil
	}
	if len(p.Tris) == 1 {
		return p.Tris[0]
	}
	selector := rand01 * p.area
	accum := 0.0
	for _, t := range p.Tris {
		accum += t.Area
		if selector <= accum {
			return t
		}
	}
	return p.Tris[len(p.Tris)-1]
}
