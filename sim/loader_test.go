package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const modelYAML = `
species: [A, B, C, R, RA]
compartments:
  - name: cyt
    species: [A, B, C]
    reactions:
      - name: bind
        lhs: {A: 1, B: 1}
        rhs: {C: 1}
        kcst: 1.0e6
    diffusion:
      - name: d_a
        species: A
        dcst: 1.0e-9
patches:
  - name: memb
    species: [R, RA]
    sreactions:
      - name: uptake
        surf_lhs: {R: 1}
        vol_lhs: {A: 1}
        surf_rhs: {RA: 1}
        kcst: 2.0e6
`

const meshYAML = `
tets:
  - {comp: cyt, vol: 1.0e-18, next: [1], coupling: [2.5e11]}
  - {comp: cyt, vol: 1.0e-18, next: [0], coupling: [2.5e11]}
tris:
  - {patch: memb, area: 1.0e-12, inner: 0, outer: -1}
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModel(t *testing.T) {
	m, err := LoadModel(writeTempFile(t, "model.yaml", modelYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, m.NumSpecs())

	c, ok := m.Comp("cyt")
	require.True(t, ok)
	assert.Len(t, c.Reacs, 1)
	assert.Len(t, c.Diffs, 1)
	assert.Equal(t, 2, c.Reacs[0].Order())
	assert.Equal(t, 1e6, c.Reacs[0].Kcst)

	p, ok := m.Patch("memb")
	require.True(t, ok)
	require.Len(t, p.SReacs, 1)
	assert.Equal(t, 2, p.SReacs[0].Order())
}

func TestLoadMesh(t *testing.T) {
	mesh, err := LoadMesh(writeTempFile(t, "mesh.yaml", meshYAML))
	require.NoError(t, err)

	require.Len(t, mesh.Tets, 2)
	require.Len(t, mesh.Tris, 1)

	// Unlisted faces default to boundary.
	assert.Equal(t, [4]int{1, -1, -1, -1}, mesh.Tets[0].Next)
	assert.Equal(t, [4]float64{2.5e11, 0, 0, 0}, mesh.Tets[0].Coupling)
	assert.Equal(t, 0, mesh.Tris[0].Inner)
	assert.Equal(t, -1, mesh.Tris[0].Outer)
}

// BDD: a loaded model and mesh bind into a runnable simulator.
func TestLoadedFilesBind(t *testing.T) {
	m, err := LoadModel(writeTempFile(t, "model.yaml", modelYAML))
	require.NoError(t, err)
	mesh, err := LoadMesh(writeTempFile(t, "mesh.yaml", meshYAML))
	require.NoError(t, err)

	s := mustSim(t, DefaultSimConfig(), m, mesh)
	// Per tet: bind, d_a. Plus the sreac.
	assert.Len(t, s.State.KProcs, 5)
}

func TestLoadModelErrors(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadModel(writeTempFile(t, "bad.yaml", "species: [A\n"))
	assert.Error(t, err, "malformed yaml")

	// Structurally valid yaml, semantically invalid model.
	badModel := `
species: [A]
compartments:
  - name: cyt
    species: [A, Z]
`
	_, err = LoadModel(writeTempFile(t, "semantic.yaml", badModel))
	assert.ErrorContains(t, err, "unknown species")
}

// BDD: decoding is strict, so a misspelled key is a parse error rather
// than a silently empty model.
func TestLoadModelRejectsUnknownKeys(t *testing.T) {
	misspelled := `
species: [A, B]
compartments:
  - name: cyt
    species: [A, B]
    reactons:
      - name: bind
        lhs: {A: 1, B: 1}
        rhs: {A: 1}
        kcst: 1.0
`
	_, err := LoadModel(writeTempFile(t, "typo.yaml", misspelled))
	assert.ErrorContains(t, err, "reactons")
}

func TestLoadMeshRejectsUnknownKeys(t *testing.T) {
	misspelled := `
tets:
  - {comp: cyt, volume: 1.0e-18}
`
	_, err := LoadMesh(writeTempFile(t, "typo.yaml", misspelled))
	assert.ErrorContains(t, err, "volume")
}

func TestBuildMeshTooManyFaces(t *testing.T) {
	doc := &MeshDoc{}
	require.NoError(t, yaml.Unmarshal([]byte(`
tets:
  - {comp: cyt, vol: 1, next: [1, 2, 3, 4, 5]}
`), doc))
	_, err := doc.BuildMesh()
	assert.ErrorContains(t, err, "more than four faces")
}
