package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// checkpointVersion is bumped whenever the on-disk layout changes.
const checkpointVersion = 1

// StreamPos records the position of one RNG stream at checkpoint time.
type StreamPos struct {
	Name string `json:"name"`
	Pos  uint64 `json:"pos"`
}

// Checkpoint captures everything needed to resume a run bit-for-bit: the
// simulation clock, every pool, every cached propensity, the mutable rate
// constants, and the RNG stream positions. The model and mesh themselves
// are not captured; a checkpoint is only meaningful against the exact
// model/mesh pair it was taken from, which is verified structurally on
// restore.
type Checkpoint struct {
	Version    int     `json:"version"`
	Seed       int64   `json:"seed"`
	Time       float64 `json:"time"`
	EventCount uint64  `json:"event_count"`

	TetPools [][]int   `json:"tet_pools"`
	TriPools [][]int   `json:"tri_pools"`
	Props    []float64 `json:"props"`

	// Mutable rate-constant state, keyed "container/channel".
	ReacKcsts  map[string]float64 `json:"reac_kcsts"`
	SReacKcsts map[string]float64 `json:"sreac_kcsts"`

	Streams []StreamPos `json:"streams"`
}

// Checkpoint captures the simulator's current state.
func (sim *Simulator) Checkpoint() *Checkpoint {
	cp := &Checkpoint{
		Version:    checkpointVersion,
		Seed:       int64(sim.rng.Key()),
		Time:       sim.Clock,
		EventCount: sim.EventCount,
		ReacKcsts:  make(map[string]float64),
		SReacKcsts: make(map[string]float64),
	}
	for _, tet := range sim.State.Tets {
		cp.TetPools = append(cp.TetPools, tet.Pool.Clone())
	}
	for _, tri := range sim.State.Tris {
		cp.TriPools = append(cp.TriPools, tri.Pool.Clone())
	}
	cp.Props = append(cp.Props, sim.Sched.Props()...)
	for _, cd := range sim.State.Model.Comps {
		for _, rd := range cd.Reacs {
			cp.ReacKcsts[cd.Name+"/"+rd.Name] = rd.Kcst
		}
	}
	for _, pd := range sim.State.Model.Patches {
		for _, sd := range pd.SReacs {
			cp.SReacKcsts[pd.Name+"/"+sd.Name] = sd.Kcst
		}
	}
	// Stream order is sorted by name so the same trajectory always
	// serializes to the same bytes.
	streams := sim.rng.Streams()
	names := make([]string, 0, len(streams))
	for name := range streams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cp.Streams = append(cp.Streams, StreamPos{Name: name, Pos: streams[name].Pos()})
	}
	return cp
}

// Restore rewinds the simulator to a previously captured checkpoint.
// Structural mismatches (different seed, element counts, or process
// population) are recoverable errors; the simulator is unchanged when an
// error is returned.
func (sim *Simulator) Restore(cp *Checkpoint) error {
	if cp.Version != checkpointVersion {
		return fmt.Errorf("checkpoint version %d, want %d", cp.Version, checkpointVersion)
	}
	if cp.Seed != int64(sim.rng.Key()) {
		return fmt.Errorf("checkpoint seed %d does not match simulator seed %d", cp.Seed, int64(sim.rng.Key()))
	}
	if len(cp.TetPools) != len(sim.State.Tets) || len(cp.TriPools) != len(sim.State.Tris) {
		return fmt.Errorf("checkpoint element counts (%d tets, %d tris) do not match state (%d, %d)",
			len(cp.TetPools), len(cp.TriPools), len(sim.State.Tets), len(sim.State.Tris))
	}
	if len(cp.Props) != len(sim.State.KProcs) {
		return fmt.Errorf("checkpoint has %d propensities, state has %d kprocs", len(cp.Props), len(sim.State.KProcs))
	}
	for i, tet := range sim.State.Tets {
		if len(cp.TetPools[i]) != len(tet.Pool) {
			return fmt.Errorf("checkpoint tet %d pool size %d, want %d", i, len(cp.TetPools[i]), len(tet.Pool))
		}
	}
	for i, tri := range sim.State.Tris {
		if len(cp.TriPools[i]) != len(tri.Pool) {
			return fmt.Errorf("checkpoint tri %d pool size %d, want %d", i, len(cp.TriPools[i]), len(tri.Pool))
		}
	}

	for i, tet := range sim.State.Tets {
		copy(tet.Pool, cp.TetPools[i])
	}
	for i, tri := range sim.State.Tris {
		copy(tri.Pool, cp.TriPools[i])
	}
	for key, kcst := range cp.ReacKcsts {
		if rd := sim.findReacDef(key); rd != nil {
			rd.Kcst = kcst
		}
	}
	for key, kcst := range cp.SReacKcsts {
		if sd := sim.findSReacDef(key); sd != nil {
			sd.Kcst = kcst
		}
	}
	for _, kp := range sim.State.KProcs {
		kp.Reset()
	}
	sim.Sched.RestoreProps(cp.Props)
	for _, sp := range cp.Streams {
		sim.rng.ForSubsystem(sp.Name).SeekTo(sp.Pos)
	}
	sim.Clock = cp.Time
	sim.EventCount = cp.EventCount
	return nil
}

func (sim *Simulator) findReacDef(key string) *ReacDef {
	for _, cd := range sim.State.Model.Comps {
		for _, rd := range cd.Reacs {
			if cd.Name+"/"+rd.Name == key {
				return rd
			}
		}
	}
	return nil
}

func (sim *Simulator) findSReacDef(key string) *SReacDef {
	for _, pd := range sim.State.Model.Patches {
		for _, sd := range pd.SReacs {
			if pd.Name+"/"+sd.Name == key {
				return sd
			}
		}
	}
	return nil
}

// SaveCheckpoint writes a checkpoint as zstd-compressed JSON, atomically
// (write to a temp file in the same directory, then rename).
func SaveCheckpoint(path string, cp *Checkpoint) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ckpt-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("init zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(cp); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("place checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("init zstd reader: %w", err)
	}
	defer zr.Close()

	cp := &Checkpoint{}
	if err := json.NewDecoder(zr).Decode(cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}
