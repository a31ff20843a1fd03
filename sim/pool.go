package sim

import "fmt"

// Pool holds the molecule counts of one spatial element, indexed by the
// element definition's local species slot. Counts are mutated exclusively by
// kinetic processes and administrative setters.
type Pool []int

// NewPool creates a zeroed pool with one slot per species in the definition.
func NewPool(nSpecs int) Pool {
	return make(Pool, nSpecs)
}

// Count returns the count in the given local slot.
func (p Pool) Count(slot int) int {
	return p[slot]
}

// Add applies a signed count change to the given local slot.
//
// A resulting negative count means a kinetic process was applied whose rate
// should already have vanished, i.e. a rate/apply inconsistency. That is a
// modeling defect, never a runtime outcome, so it panics rather than
// returning an error: continuing would silently corrupt the trajectory's
// exact-probability guarantee.
func (p Pool) Add(slot, delta int) {
	n := p[slot] + delta
	if n < 0 {
		panic(fmt.Sprintf("species count driven negative: slot %d, count %d, delta %d", slot, p[slot], delta))
	}
	p[slot] = n
}

// Set overwrites the count in the given local slot. Used by ghost-pool
// updates and administrative setters; negative values panic like Add.
func (p Pool) Set(slot, n int) {
	if n < 0 {
		panic(fmt.Sprintf("species count set negative: slot %d, value %d", slot, n))
	}
	p[slot] = n
}

// Clone returns an independent copy of the pool.
func (p Pool) Clone() Pool {
	c := make(Pool, len(p))
	copy(c, p)
	return c
}

// Total returns the sum of all counts in the pool.
func (p Pool) Total() int {
	t := 0
	for _, n := range p {
		t += n
	}
	return t
}
