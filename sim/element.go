package sim

// Tet is one tetrahedral volume element. Created once during mesh binding,
// mutated throughout the run (its pool only), destroyed at teardown.
// Elements live in the State's append-only arena and refer to peers by mesh
// index, never by pointer cycles.
type Tet struct {
	Idx      int
	Vol      float64
	Pool     Pool
	Next     [4]int
	Coupling [4]float64

	def    *CompDef
	kprocs []SchedIDX // kinetic processes homed on this tet
}

// Def returns the compartment definition governing this tet.
func (t *Tet) Def() *CompDef { return t.def }

// KProcs returns the scheduler indices of the kinetic processes homed here.
func (t *Tet) KProcs() []SchedIDX { return t.kprocs }

func (t *Tet) addKProc(idx SchedIDX) { t.kprocs = append(t.kprocs, idx) }

// Tri is one triangular surface element.
type Tri struct {
	Idx   int
	Area  float64
	Pool  Pool
	Inner int // inner tet mesh index
	Outer int // outer tet mesh index, -1 for boundary patches

	def    *PatchDef
	kprocs []SchedIDX
}

// Def returns the patch definition governing this tri.
func (t *Tri) Def() *PatchDef { return t.def }

// KProcs returns the scheduler indices of the kinetic processes homed here.
func (t *Tri) KProcs() []SchedIDX { return t.kprocs }

func (t *Tri) addKProc(idx SchedIDX) { t.kprocs = append(t.kprocs, idx) }
