package sim

import "math"

// SchedIDX is the stable scheduler-assigned identity of a kinetic process,
// used for indexed propensity lookup and as the currency of the dependency
// graph. Identities are assigned once, densely, in construction order.
type SchedIDX uint32

// KProcKind discriminates the closed set of kinetic-process variants.
type KProcKind string

const (
	KindReac  KProcKind = "reac"
	KindSReac KProcKind = "sreac"
	KindDiff  KProcKind = "diff"
)

// ElemKind discriminates the two spatial element kinds in a PoolRef.
type ElemKind uint8

const (
	ElemTet ElemKind = iota
	ElemTri
)

// PoolRef addresses one (element, species) count by element kind, mesh
// index, and global species index. It is the unit of cross-rank delta
// exchange in the parallel variant.
type PoolRef struct {
	Kind ElemKind `json:"kind"`
	Elem int      `json:"elem"`
	Spec SpecID   `json:"spec"`
}

// KProc is one kinetic process: a single reaction channel or diffusion-hop
// channel with an instantaneous rate (propensity) computed from its local
// pools, and an effect on molecule counts when applied.
//
// Construction is two-phase: all KProcs are created first, then SetupDeps
// runs exactly once per KProc against the complete universe, because
// dependency discovery needs every peer to exist. SetupDeps panics when
// invoked before State construction completes.
type KProc interface {
	// SchedIDX returns the scheduler-assigned identity.
	SchedIDX() SchedIDX

	// Kind returns the variant discriminator.
	Kind() KProcKind

	// SetupDeps precomputes the set of KProcs whose rate can change when
	// this one fires. Called exactly once, after all KProcs exist.
	SetupDeps(st *State)

	// DependsOnTetSpec reports whether this process's rate is a function of
	// the given global species count in the given tet.
	DependsOnTetSpec(g SpecID, tet *Tet) bool

	// DependsOnTriSpec reports whether this process's rate is a function of
	// the given global species count in the given tri.
	DependsOnTriSpec(g SpecID, tri *Tri) bool

	// Reset recomputes cached rate-constant state from the owning
	// definition. It does not touch scheduler state; the caller re-triggers
	// a propensity update.
	Reset()

	// Rate returns the current propensity, a pure function of local pool
	// counts and cached constants. Zero whenever any consumed count is
	// below its stoichiometric requirement.
	Rate() float64

	// Apply performs one discrete occurrence, mutating pools inside the
	// declared footprint only, and returns the precomputed dependency list
	// (which includes this process itself). hopU is the per-event uniform
	// from the hop stream; only diffusion consults it.
	Apply(st *State, hopU float64) []SchedIDX

	// Footprint returns every (element, species) count this process can
	// mutate, across all of its possible outcomes.
	Footprint() []PoolRef
}

// kprocBase carries the identity and dependency list shared by all
// variants.
type kprocBase struct {
	schedIDX SchedIDX
	deps     []SchedIDX
}

func (b *kprocBase) SchedIDX() SchedIDX { return b.schedIDX }

func (b *kprocBase) setSchedIDX(idx SchedIDX) { b.schedIDX = idx }

// Deps returns the precomputed dependency list.
func (b *kprocBase) Deps() []SchedIDX { return b.deps }

// Avogadro is the Avogadro constant in mol^-1.
const Avogadro = 6.02214076e23

// scaledVolConst converts a volume rate constant (M^(1-order) s^-1) to a
// propensity constant for an element of the given volume (m^3): the
// concentration scale is litres, hence the 1e3 factor.
func scaledVolConst(kcst float64, order int, vol float64) float64 {
	if order == 1 {
		return kcst
	}
	vscale := 1.0e3 * vol * Avogadro
	return kcst * math.Pow(vscale, float64(1-order))
}

// scaledAreaConst converts a surface rate constant to a propensity constant
// for an element of the given area (m^2).
func scaledAreaConst(kcst float64, order int, area float64) float64 {
	if order == 1 {
		return kcst
	}
	ascale := area * Avogadro
	return kcst * math.Pow(ascale, float64(1-order))
}

// combinations returns the number of distinct ways n reactant molecules can
// be drawn from a count of x: the falling factorial x(x-1)...(x-n+1)
// divided by n!. Zero whenever x < n, which is what drives a propensity to
// zero before a count can go negative.
func combinations(x, n int) float64 {
	if x < n {
		return 0
	}
	h := 1.0
	for i := 0; i < n; i++ {
		h *= float64(x - i)
	}
	for i := 2; i <= n; i++ {
		h /= float64(i)
	}
	return h
}
