package parallel

import (
	"fmt"

	"github.com/tetsim/tetsim/sim"
)

// Plan assigns every mesh element to exactly one rank. Tets partition by
// explicit assignment; each tri follows its inner tet's rank so that a
// surface reaction and the volume pool it mutates are always co-resident.
type Plan struct {
	NumRanks int
	TetRank  []int
	TriRank  []int
}

// ContiguousPlan splits the tets into numRanks contiguous index ranges of
// near-equal size. Contiguity keeps the global SchedIDX ordering rank-major
// for volume processes, which is what lets a partitioned run reproduce the
// serial selection scan.
func ContiguousPlan(mesh *sim.Mesh, numRanks int) (Plan, error) {
	if numRanks < 1 {
		return Plan{}, fmt.Errorf("need at least one rank, got %d", numRanks)
	}
	if numRanks > len(mesh.Tets) {
		return Plan{}, fmt.Errorf("%d ranks for %d tets", numRanks, len(mesh.Tets))
	}
	p := Plan{
		NumRanks: numRanks,
		TetRank:  make([]int, len(mesh.Tets)),
		TriRank:  make([]int, len(mesh.Tris)),
	}
	per := len(mesh.Tets) / numRanks
	extra := len(mesh.Tets) % numRanks
	rank, next, quota := 0, 0, per
	if extra > 0 {
		quota++
		extra--
	}
	for i := range mesh.Tets {
		if next == quota && rank < numRanks-1 {
			rank++
			next = 0
			quota = per
			if extra > 0 {
				quota++
				extra--
			}
		}
		p.TetRank[i] = rank
		next++
	}
	for i, tri := range mesh.Tris {
		p.TriRank[i] = p.TetRank[tri.Inner]
	}
	return p, nil
}

// Validate checks a hand-built plan against a mesh.
func (p Plan) Validate(mesh *sim.Mesh) error {
	if p.NumRanks < 1 {
		return fmt.Errorf("need at least one rank, got %d", p.NumRanks)
	}
	if len(p.TetRank) != len(mesh.Tets) || len(p.TriRank) != len(mesh.Tris) {
		return fmt.Errorf("plan covers %d tets and %d tris, mesh has %d and %d",
			len(p.TetRank), len(p.TriRank), len(mesh.Tets), len(mesh.Tris))
	}
	for i, r := range p.TetRank {
		if r < 0 || r >= p.NumRanks {
			return fmt.Errorf("tet %d assigned to out-of-range rank %d", i, r)
		}
	}
	for i, r := range p.TriRank {
		if r < 0 || r >= p.NumRanks {
			return fmt.Errorf("tri %d assigned to out-of-range rank %d", i, r)
		}
		if r != p.TetRank[mesh.Tris[i].Inner] {
			return fmt.Errorf("tri %d on rank %d but its inner tet is on rank %d", i, r, p.TetRank[mesh.Tris[i].Inner])
		}
	}
	return nil
}

// homeRank returns the rank owning a kinetic process: the rank of its home
// element.
func (p Plan) homeRank(kp sim.KProc) int {
	switch k := kp.(type) {
	case *sim.Reaction:
		return p.TetRank[k.Tet().Idx]
	case *sim.Diffusion:
		return p.TetRank[k.Tet().Idx]
	case *sim.SReac:
		return p.TriRank[k.Tri().Idx]
	}
	panic(fmt.Sprintf("unknown kinetic process variant %T", kp))
}

// elemRank returns the rank owning the element a PoolRef addresses.
func (p Plan) elemRank(ref sim.PoolRef) int {
	if ref.Kind == sim.ElemTet {
		return p.TetRank[ref.Elem]
	}
	return p.TriRank[ref.Elem]
}
