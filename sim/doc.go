// Package sim provides the core spatial stochastic-kinetics engine: exact
// event-driven simulation of reacting and diffusing molecule populations on
// a tetrahedral mesh.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - kproc.go: the kinetic-process contract (rate, apply, dependencies)
//     and its three variants (reaction.go, sreac.go, diffusion.go)
//   - scheduler.go: direct-method exact selection with dependency-graph
//     restricted propensity recomputation
//   - simulator.go: the run loop, simulation time, and the administrative
//     API surface (api.go)
//
// # Architecture
//
// A ModelDef (model.go) names species and legal reaction/diffusion channels
// per compartment and patch; a Mesh (mesh.go) supplies the spatial
// decomposition. NewState binds the two: element arenas, containers with
// measure-weighted selection (comp.go), and one kinetic process per
// (channel, element) pair, wired into a dependency graph by a two-phase
// setup. All randomness flows through per-subsystem streams derived from
// one master seed (rng.go); stream positions are part of the checkpoint
// (checkpoint.go), so runs are reproducible bit for bit.
//
// The parallel variant lives in sim/parallel: mesh partitions owned by
// single-threaded ranks exchanging pool deltas in synchronous rounds.
package sim
