package sim

import "fmt"

// TetDef is the raw mesh description of one tetrahedron. Next holds the
// tetrahedron index across each of the four faces, or -1 for a boundary
// face. Coupling holds the per-face geometric coupling factor
// A_face / (d_barycenter * V_tet), in m^-2, by which a diffusion constant is
// scaled to a per-molecule hop rate in that direction.
type TetDef struct {
	Comp     string
	Vol      float64
	Next     [4]int
	Coupling [4]float64
}

// TriDef is the raw mesh description of one surface triangle. Inner is the
// index of the tetrahedron on the patch's inner side; Outer is the index on
// the far side, or -1 when the patch is an outer boundary.
type TriDef struct {
	Patch string
	Area  float64
	Inner int
	Outer int
}

// Mesh is the immutable spatial decomposition input: tetrahedra grouped
// into compartments and triangles grouped into patches. The core treats it
// as read-only after validation.
type Mesh struct {
	Tets []TetDef
	Tris []TriDef
}

// Validate checks the mesh against a model: measures must be positive,
// indices in range, neighbour links symmetric in compartment, and every
// referenced compartment/patch defined. Violations are input errors, not
// internal defects, so they are returned rather than panicking.
func (m *Mesh) Validate(model *ModelDef) error {
	for i, td := range m.Tets {
		if td.Vol <= 0 {
			return fmt.Errorf("tet %d: non-positive volume %g", i, td.Vol)
		}
		if _, ok := model.Comp(td.Comp); !ok {
			return fmt.Errorf("tet %d: unknown compartment %q", i, td.Comp)
		}
		for f, nb := range td.Next {
			if nb == i {
				return fmt.Errorf("tet %d: face %d links to itself", i, f)
			}
			if nb < -1 || nb >= len(m.Tets) {
				return fmt.Errorf("tet %d: face %d links to out-of-range tet %d", i, f, nb)
			}
			if nb >= 0 && td.Coupling[f] < 0 {
				return fmt.Errorf("tet %d: face %d has negative coupling", i, f)
			}
			if nb == -1 && td.Coupling[f] != 0 {
				return fmt.Errorf("tet %d: face %d has coupling but no neighbour", i, f)
			}
		}
	}
	for i, td := range m.Tris {
		if td.Area <= 0 {
			return fmt.Errorf("tri %d: non-positive area %g", i, td.Area)
		}
		if _, ok := model.Patch(td.Patch); !ok {
			return fmt.Errorf("tri %d: unknown patch %q", i, td.Patch)
		}
		if td.Inner < 0 || td.Inner >= len(m.Tets) {
			return fmt.Errorf("tri %d: inner tet %d out of range", i, td.Inner)
		}
		if td.Outer < -1 || td.Outer >= len(m.Tets) {
			return fmt.Errorf("tri %d: outer tet %d out of range", i, td.Outer)
		}
	}
	return nil
}
