package parallel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tetsim/tetsim/sim"
)

// Config groups the parameters of a partitioned run.
type Config struct {
	// Seed is the master seed. A partitioned run with the same seed, model,
	// and mesh as a serial run reproduces its trajectory exactly when the
	// plan keeps SchedIDX ordering rank-major.
	Seed int64

	// NumRanks is the number of partitions. Zero or one means the caller
	// should be using the serial Simulator instead.
	NumRanks int

	// ProgressEvery is the event interval for progress logging.
	// Zero disables progress logging.
	ProgressEvery uint64
}

// Coordinator drives the synchronous round protocol across the ranks: it
// owns global simulation time and the event-selection streams, gathers
// per-rank propensity totals, selects each event exactly (two-level
// categorical scan), and barriers every round on the delta exchange so no
// rank observes state from a causal future.
type Coordinator struct {
	Clock      float64
	EventCount uint64

	cfg   Config
	plan  Plan
	ranks []*Rank
	sel   *sim.Stream
	hop   *sim.Stream

	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewCoordinator partitions the mesh and builds one state replica per
// rank. Every replica is constructed from the same model and mesh, so
// ghost pools start consistent by construction.
func NewCoordinator(cfg Config, model *sim.ModelDef, mesh *sim.Mesh) (*Coordinator, error) {
	if cfg.NumRanks < 2 {
		return nil, fmt.Errorf("partitioned run needs at least 2 ranks, got %d", cfg.NumRanks)
	}
	plan, err := ContiguousPlan(mesh, cfg.NumRanks)
	if err != nil {
		return nil, err
	}
	return newCoordinatorWithPlan(cfg, model, mesh, plan)
}

// NewCoordinatorWithPlan is NewCoordinator with an explicit partition plan.
func NewCoordinatorWithPlan(cfg Config, model *sim.ModelDef, mesh *sim.Mesh, plan Plan) (*Coordinator, error) {
	if err := plan.Validate(mesh); err != nil {
		return nil, err
	}
	if plan.NumRanks != cfg.NumRanks {
		return nil, fmt.Errorf("plan has %d ranks, config wants %d", plan.NumRanks, cfg.NumRanks)
	}
	return newCoordinatorWithPlan(cfg, model, mesh, plan)
}

func newCoordinatorWithPlan(cfg Config, model *sim.ModelDef, mesh *sim.Mesh, plan Plan) (*Coordinator, error) {
	c := &Coordinator{cfg: cfg, plan: plan}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	c.sel = rng.ForSubsystem(sim.SubsystemScheduler)
	c.hop = rng.ForSubsystem(sim.SubsystemHop)

	for id := 0; id < cfg.NumRanks; id++ {
		replica, err := sim.NewSimulator(sim.SimConfig{Seed: cfg.Seed}, model, mesh)
		if err != nil {
			return nil, fmt.Errorf("build rank %d replica: %w", id, err)
		}
		c.ranks = append(c.ranks, newRank(id, replica, plan))
	}
	return c, nil
}

// Ranks returns the ranks, in rank order.
func (c *Coordinator) Ranks() []*Rank { return c.ranks }

// SetCompCount seeds an initial condition identically into every rank
// replica. Must be called before Run.
func (c *Coordinator) SetCompCount(comp, species string, n int) error {
	if c.running {
		return fmt.Errorf("cannot seed state while ranks are running")
	}
	for _, r := range c.ranks {
		if err := r.sim.SetCompCount(comp, species, n); err != nil {
			return err
		}
	}
	return nil
}

// SetPatchCount seeds a surface initial condition identically into every
// rank replica. Must be called before Run.
func (c *Coordinator) SetPatchCount(patch, species string, n int) error {
	if c.running {
		return fmt.Errorf("cannot seed state while ranks are running")
	}
	for _, r := range c.ranks {
		if err := r.sim.SetPatchCount(patch, species, n); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the round protocol until the next event would pass endTime,
// no events remain, or the context is cancelled. Cancellation and channel
// failure abort the whole distributed run: partial-failure continuation is
// unsupported because causal consistency cannot be guaranteed once any
// rank diverges.
func (c *Coordinator) Run(ctx context.Context, endTime float64) error {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	c.running = true
	defer func() { c.running = false }()

	for _, r := range c.ranks {
		c.wg.Add(1)
		go func(r *Rank) {
			defer c.wg.Done()
			r.run(ctx)
		}(r)
	}
	defer c.stopRanks()

	totals := make([]float64, len(c.ranks))
	for {
		// Round phase 1: gather rank totals.
		gsum := 0.0
		for i, r := range c.ranks {
			t, err := c.propose(ctx, r)
			if err != nil {
				return err
			}
			totals[i] = t
			gsum += t
		}
		if gsum <= 0 {
			logrus.Infof("no further events possible at t=%g s", c.Clock)
			break
		}

		// Round phase 2: exact event selection, mirroring the serial
		// scheduler's draws (waiting time, categorical selector, hop).
		u1 := c.sel.Float64()
		dt := -math.Log(1-u1) / gsum
		if c.Clock+dt > endTime {
			c.Clock = endTime
			break
		}
		c.Clock += dt

		selector := c.sel.Float64() * gsum
		owner, remainder := c.pickRank(totals, selector)
		hopU := c.hop.Float64()

		// Round phase 3: the owner fires and reports its shared deltas.
		deltas, err := c.fire(ctx, c.ranks[owner], remainder, hopU)
		if err != nil {
			return err
		}

		// Round phase 4: delta broadcast and ack barrier. Only after every
		// rank acknowledges may the next round begin, so no rank can apply
		// a later event against stale ghosts.
		if len(deltas) > 0 {
			if err := c.broadcast(ctx, owner, deltas); err != nil {
				return err
			}
		}

		c.EventCount++
		if c.cfg.ProgressEvery > 0 && c.EventCount%c.cfg.ProgressEvery == 0 {
			logrus.Infof("[t=%.6g s] %d events fired across %d ranks", c.Clock, c.EventCount, len(c.ranks))
		}
	}
	return nil
}

// pickRank scans rank totals in rank order with half-open semantics and
// returns the selected rank plus the selector remainder for its local
// scan. The last rank with a positive total is the rounding fallback.
func (c *Coordinator) pickRank(totals []float64, selector float64) (int, float64) {
	accum := 0.0
	last := 0
	lastPrefix := 0.0
	for i, t := range totals {
		if t == 0 {
			continue
		}
		last = i
		lastPrefix = accum
		accum += t
		if selector <= accum {
			return i, selector - lastPrefix
		}
	}
	return last, totals[last] // beyond the end: local scan falls back too
}

func (c *Coordinator) propose(ctx context.Context, r *Rank) (float64, error) {
	resp := make(chan float64, 1)
	if err := c.send(ctx, r, proposeMsg{resp: resp}); err != nil {
		return 0, err
	}
	select {
	case t := <-resp:
		return t, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("propose round aborted: %w", ctx.Err())
	}
}

func (c *Coordinator) fire(ctx context.Context, r *Rank, selector, hopU float64) ([]Delta, error) {
	resp := make(chan []Delta, 1)
	if err := c.send(ctx, r, fireMsg{selector: selector, hopU: hopU, resp: resp}); err != nil {
		return nil, err
	}
	select {
	case d := <-resp:
		return d, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fire round aborted: %w", ctx.Err())
	}
}

func (c *Coordinator) broadcast(ctx context.Context, owner int, deltas []Delta) error {
	acks := make([]chan struct{}, 0, len(c.ranks)-1)
	for i, r := range c.ranks {
		if i == owner {
			continue
		}
		resp := make(chan struct{}, 1)
		if err := c.send(ctx, r, deltaMsg{deltas: deltas, resp: resp}); err != nil {
			return err
		}
		acks = append(acks, resp)
	}
	for _, a := range acks {
		select {
		case <-a:
		case <-ctx.Done():
			return fmt.Errorf("delta barrier aborted: %w", ctx.Err())
		}
	}
	return nil
}

func (c *Coordinator) send(ctx context.Context, r *Rank, msg any) error {
	select {
	case r.inbox <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rank %d unreachable: %w", r.id, ctx.Err())
	}
}

// stopRanks tears the rank goroutines down through context cancellation
// alone. Waiting on a per-rank ack would deadlock: a rank that already
// exited on a cancelled context never reads its inbox again, so any
// message buffered there is acknowledged by nobody.
func (c *Coordinator) stopRanks() {
	c.cancel()
	c.wg.Wait()
}

// CompCount sums an authoritative species count across all ranks: each
// rank contributes only the tets it owns, so ghost copies are never double
// counted.
func (c *Coordinator) CompCount(comp, species string) (int, error) {
	total := 0
	for _, r := range c.ranks {
		cc, ok := r.sim.State.Comp(comp)
		if !ok {
			return 0, fmt.Errorf("unknown compartment %q", comp)
		}
		g, ok := r.sim.State.Model.SpecIdx(species)
		if !ok {
			return 0, fmt.Errorf("unknown species %q", species)
		}
		for _, tet := range cc.Tets {
			if c.plan.TetRank[tet.Idx] != r.id {
				continue
			}
			slot, ok := tet.Def().LocalIdx(g)
			if !ok {
				return 0, fmt.Errorf("species %q not defined in compartment %q", species, comp)
			}
			total += tet.Pool.Count(slot)
		}
	}
	return total, nil
}

// TetCount returns the authoritative count of a species in one tet, read
// from its owning rank's replica.
func (c *Coordinator) TetCount(tetIdx int, species string) (int, error) {
	r := c.ranks[c.plan.TetRank[tetIdx]]
	g, ok := r.sim.State.Model.SpecIdx(species)
	if !ok {
		return 0, fmt.Errorf("unknown species %q", species)
	}
	tet := r.sim.State.Tets[tetIdx]
	slot, ok := tet.Def().LocalIdx(g)
	if !ok {
		return 0, fmt.Errorf("species %q not defined in tet %d", species, tetIdx)
	}
	return tet.Pool.Count(slot), nil
}
