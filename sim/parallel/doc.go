// Package parallel runs the exact simulation across mesh partitions, in
// the manner of an MPI decomposition: each rank is a single-threaded owner
// of a disjoint element subset, boundary elements are mirrored as ghost
// pools on the ranks that need them, and a coordinator drives strictly
// synchronous rounds (propose totals, select and fire exactly one event,
// broadcast deltas, barrier on acks). Cross-rank causal ordering is
// enforced by the barrier: no rank's view advances past the round's event
// time before every ghost is current.
//
// Communication failure is fatal to the whole run; there is no
// partial-failure continuation, because causal consistency across ranks
// cannot be re-established once any rank diverges.
package parallel
