package parallel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tetsim/tetsim/sim"
)

// Rank is one partition of the simulation: it homes the kinetic processes
// whose elements the plan assigns to it and holds a full state replica in
// which non-owned elements act as ghost copies, kept current by the round
// protocol. Each rank is single-threaded: one goroutine consumes its inbox
// and owns all of its state.
type Rank struct {
	id    int
	sim   *sim.Simulator
	plan  Plan
	owned []sim.SchedIDX // home processes, ascending SchedIDX

	// sharedTet/sharedTri mark elements whose counts some remote process
	// reads or writes; only their mutations are broadcast.
	sharedTet []bool
	sharedTri []bool

	inbox chan any
}

func newRank(id int, s *sim.Simulator, plan Plan) *Rank {
	r := &Rank{
		id:        id,
		sim:       s,
		plan:      plan,
		sharedTet: make([]bool, len(s.State.Tets)),
		sharedTri: make([]bool, len(s.State.Tris)),
		inbox:     make(chan any, 1),
	}
	for _, kp := range s.State.KProcs {
		if plan.homeRank(kp) == id {
			r.owned = append(r.owned, kp.SchedIDX())
		}
	}
	r.markShared()
	return r
}

// markShared flags every element that participates in a cross-rank
// dependency: elements written by a remote process's footprint, and
// elements whose counts a remote process's rate reads. Runs once at
// construction; cost is proportional to elements x species x processes,
// which is acceptable off the hot path.
func (r *Rank) markShared() {
	st := r.sim.State
	for _, kp := range st.KProcs {
		home := r.plan.homeRank(kp)
		for _, ref := range kp.Footprint() {
			if r.plan.elemRank(ref) != home {
				r.mark(ref)
			}
		}
	}
	for _, tet := range st.Tets {
		for _, g := range tet.Def().Specs {
			for _, idx := range st.DependentsOfTetSpec(g, tet) {
				if r.plan.homeRank(st.KProcs[idx]) != r.plan.TetRank[tet.Idx] {
					r.sharedTet[tet.Idx] = true
				}
			}
		}
	}
	for _, tri := range st.Tris {
		for _, g := range tri.Def().Specs {
			for _, idx := range st.DependentsOfTriSpec(g, tri) {
				if r.plan.homeRank(st.KProcs[idx]) != r.plan.TriRank[tri.Idx] {
					r.sharedTri[tri.Idx] = true
				}
			}
		}
	}
}

func (r *Rank) mark(ref sim.PoolRef) {
	if ref.Kind == sim.ElemTet {
		r.sharedTet[ref.Elem] = true
	} else {
		r.sharedTri[ref.Elem] = true
	}
}

func (r *Rank) isShared(ref sim.PoolRef) bool {
	if ref.Kind == sim.ElemTet {
		return r.sharedTet[ref.Elem]
	}
	return r.sharedTri[ref.Elem]
}

// ID returns the rank's id.
func (r *Rank) ID() int { return r.id }

// Sim exposes the rank's state replica, for pre-run seeding and post-run
// inspection by the coordinator. Must not be touched while the rank
// goroutine runs.
func (r *Rank) Sim() *sim.Simulator { return r.sim }

// run is the rank goroutine body: a strict message loop, one request at a
// time.
func (r *Rank) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-r.inbox:
			if !ok {
				return
			}
			switch msg := raw.(type) {
			case proposeMsg:
				msg.resp <- r.localTotal()
			case fireMsg:
				msg.resp <- r.fire(msg.selector, msg.hopU)
			case deltaMsg:
				r.applyDeltas(msg.deltas)
				msg.resp <- struct{}{}
			}
		}
	}
}

// localTotal sums the cached propensities of the rank's home processes.
func (r *Rank) localTotal() float64 {
	props := r.sim.Sched.Props()
	total := 0.0
	for _, idx := range r.owned {
		total += props[idx]
	}
	return total
}

// fire selects and applies one local event. The scan mirrors the serial
// scheduler: ascending SchedIDX over the home processes, half-open
// semantics, last non-zero process as rounding fallback.
func (r *Rank) fire(selector, hopU float64) []Delta {
	props := r.sim.Sched.Props()
	var kp sim.KProc
	accum := 0.0
	for _, idx := range r.owned {
		p := props[idx]
		if p == 0 {
			continue
		}
		kp = r.sim.State.KProcs[idx]
		accum += p
		if selector <= accum {
			break
		}
	}
	if kp == nil {
		// The coordinator only targets ranks with positive totals.
		panic("rank asked to fire with no selectable process")
	}

	idxs := kp.Apply(r.sim.State, hopU)
	// Keeping the whole replica's cache coherent (not just home processes)
	// costs nothing extra: the dependency list is already minimal.
	r.sim.Sched.Update([]sim.SchedIDX{kp.SchedIDX()})
	r.sim.Sched.Update(idxs)

	var deltas []Delta
	for _, ref := range kp.Footprint() {
		if !r.isShared(ref) {
			continue
		}
		count, ok := r.sim.State.PoolCount(ref)
		if !ok {
			continue
		}
		deltas = append(deltas, Delta{Ref: ref, Count: count})
	}
	logrus.Debugf("rank %d fired %s #%d, %d shared deltas", r.id, kp.Kind(), kp.SchedIDX(), len(deltas))
	return deltas
}

// applyDeltas overwrites ghost counts with the authoritative values from
// the fired rank and recomputes every local propensity that reads them.
func (r *Rank) applyDeltas(deltas []Delta) {
	st := r.sim.State
	var touched []sim.SchedIDX
	for _, d := range deltas {
		st.SetPoolCount(d.Ref, d.Count)
		if d.Ref.Kind == sim.ElemTet {
			touched = append(touched, st.DependentsOfTetSpec(d.Ref.Spec, st.Tets[d.Ref.Elem])...)
		} else {
			touched = append(touched, st.DependentsOfTriSpec(d.Ref.Spec, st.Tris[d.Ref.Elem])...)
		}
	}
	r.sim.Sched.Update(touched)
}
