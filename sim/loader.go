package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// decodeStrict parses a YAML document with strict field checking, so a
// misspelled key is an error rather than a silently empty section.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// YAML document structs for model and mesh files. These mirror the builder
// API in model.go one-to-one; the loader is a thin translation layer so
// that programmatic construction and file-based construction go through the
// same validation.

// ModelDoc is the YAML layout of a model file.
type ModelDoc struct {
	Species []string   `yaml:"species"`
	Comps   []CompDoc  `yaml:"compartments"`
	Patches []PatchDoc `yaml:"patches"`
}

// CompDoc is one compartment entry of a model file.
type CompDoc struct {
	Name    string    `yaml:"name"`
	Species []string  `yaml:"species"`
	Reacs   []ReacDoc `yaml:"reactions"`
	Diffs   []DiffDoc `yaml:"diffusion"`
}

// ReacDoc is one volume reaction entry.
type ReacDoc struct {
	Name string         `yaml:"name"`
	LHS  map[string]int `yaml:"lhs"`
	RHS  map[string]int `yaml:"rhs"`
	Kcst float64        `yaml:"kcst"`
}

// DiffDoc is one diffusion rule entry.
type DiffDoc struct {
	Name    string  `yaml:"name"`
	Species string  `yaml:"species"`
	Dcst    float64 `yaml:"dcst"`
}

// PatchDoc is one patch entry of a model file.
type PatchDoc struct {
	Name    string     `yaml:"name"`
	Species []string   `yaml:"species"`
	SReacs  []SReacDoc `yaml:"sreactions"`
}

// SReacDoc is one surface reaction entry.
type SReacDoc struct {
	Name    string         `yaml:"name"`
	SurfLHS map[string]int `yaml:"surf_lhs"`
	VolLHS  map[string]int `yaml:"vol_lhs"`
	SurfRHS map[string]int `yaml:"surf_rhs"`
	VolRHS  map[string]int `yaml:"vol_rhs"`
	Kcst    float64        `yaml:"kcst"`
}

// MeshDoc is the YAML layout of a mesh file.
type MeshDoc struct {
	Tets []TetDoc `yaml:"tets"`
	Tris []TriDoc `yaml:"tris"`
}

// TetDoc is one tetrahedron entry of a mesh file. Missing neighbour slots
// default to -1 (boundary face).
type TetDoc struct {
	Comp     string    `yaml:"comp"`
	Vol      float64   `yaml:"vol"`
	Next     []int     `yaml:"next"`
	Coupling []float64 `yaml:"coupling"`
}

// TriDoc is one triangle entry of a mesh file.
type TriDoc struct {
	Patch string  `yaml:"patch"`
	Area  float64 `yaml:"area"`
	Inner int     `yaml:"inner"`
	Outer int     `yaml:"outer"`
}

// BuildModel translates a parsed model document into a validated ModelDef.
func (doc *ModelDoc) BuildModel() (*ModelDef, error) {
	m, err := NewModelDef(doc.Species...)
	if err != nil {
		return nil, err
	}
	for _, cd := range doc.Comps {
		comp, err := m.AddComp(cd.Name, cd.Species...)
		if err != nil {
			return nil, err
		}
		for _, rd := range cd.Reacs {
			if _, err := comp.AddReac(rd.Name, rd.LHS, rd.RHS, rd.Kcst); err != nil {
				return nil, err
			}
		}
		for _, dd := range cd.Diffs {
			if _, err := comp.AddDiff(dd.Name, dd.Species, dd.Dcst); err != nil {
				return nil, err
			}
		}
	}
	for _, pd := range doc.Patches {
		patch, err := m.AddPatch(pd.Name, pd.Species...)
		if err != nil {
			return nil, err
		}
		for _, sd := range pd.SReacs {
			if _, err := patch.AddSReac(sd.Name, sd.SurfLHS, sd.VolLHS, sd.SurfRHS, sd.VolRHS, sd.Kcst); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// BuildMesh translates a parsed mesh document into a Mesh. Validation
// against a model happens at state construction.
func (doc *MeshDoc) BuildMesh() (*Mesh, error) {
	mesh := &Mesh{}
	for i, td := range doc.Tets {
		if len(td.Next) > 4 || len(td.Coupling) > 4 {
			return nil, fmt.Errorf("tet %d: more than four faces", i)
		}
		def := TetDef{Comp: td.Comp, Vol: td.Vol, Next: [4]int{-1, -1, -1, -1}}
		copy(def.Next[:], td.Next)
		copy(def.Coupling[:], td.Coupling)
		mesh.Tets = append(mesh.Tets, def)
	}
	for _, td := range doc.Tris {
		mesh.Tris = append(mesh.Tris, TriDef(td))
	}
	return mesh, nil
}

// LoadModel reads and validates a YAML model file.
func LoadModel(path string) (*ModelDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	var doc ModelDoc
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	m, err := doc.BuildModel()
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	return m, nil
}

// LoadMesh reads a YAML mesh file.
func LoadMesh(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh file: %w", err)
	}
	var doc MeshDoc
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mesh file: %w", err)
	}
	mesh, err := doc.BuildMesh()
	if err != nil {
		return nil, fmt.Errorf("mesh file %s: %w", path, err)
	}
	return mesh, nil
}
