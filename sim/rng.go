package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical model and mesh
// MUST produce bit-for-bit identical trajectories.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemScheduler is the RNG stream used for event selection:
	// two uniform draws per event (waiting time, categorical selection).
	SubsystemScheduler = "scheduler"

	// SubsystemHop is the RNG stream used for per-event destination
	// selection. Exactly one uniform is consumed from this stream per fired
	// event regardless of the event kind, so its position always equals the
	// event count. Reaction events ignore the draw; diffusion events use it
	// to pick the hop direction.
	SubsystemHop = "hop"
)

// SubsystemRank returns the subsystem name for the delta-exchange stream of
// rank N in the parallel variant.
func SubsystemRank(id int) string {
	return fmt.Sprintf("rank_%d", id)
}

// === Stream ===

// Stream is a deterministically seeded uniform stream that counts its draws.
// The draw count is the stream "position": it is checkpointed alongside the
// seed, and SeekTo replays a freshly seeded generator forward to restore it.
//
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
type Stream struct {
	name  string
	seed  int64
	rng   *rand.Rand
	draws uint64
}

// NewStream creates a stream with the given name and seed.
func NewStream(name string, seed int64) *Stream {
	return &Stream{
		name: name,
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns the next uniform in [0, 1) and advances the position.
func (s *Stream) Float64() float64 {
	s.draws++
	return s.rng.Float64()
}

// Name returns the stream's subsystem name.
func (s *Stream) Name() string { return s.name }

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 { return s.seed }

// Pos returns the number of uniforms drawn so far.
func (s *Stream) Pos() uint64 { return s.draws }

// SeekTo discards and re-creates the underlying generator, then replays it
// forward to the given position. Used when restoring a checkpoint.
func (s *Stream) SeekTo(pos uint64) {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.draws = 0
	for s.draws < pos {
		s.Float64()
	}
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated uniform streams per
// subsystem.
//
// Derivation formula: streamSeed = masterSeed XOR fnv1a64(subsystemName).
// Hash-based derivation keeps seeds order-independent: the set of subsystems
// requested, and the order they are requested in, never changes any stream.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*Stream
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*Stream),
	}
}

// ForSubsystem returns the deterministically seeded stream for the named
// subsystem. The same subsystem name always returns the same *Stream
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *Stream {
	if s, ok := p.subsystems[name]; ok {
		return s
	}
	s := NewStream(name, int64(p.key)^fnv1a64(name))
	p.subsystems[name] = s
	return s
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// Streams returns all instantiated streams, keyed by subsystem name.
// Used by the checkpoint hook to record stream positions.
func (p *PartitionedRNG) Streams() map[string]*Stream {
	return p.subsystems
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
