package sim

import (
	"fmt"
	"math"
)

// Administrative access for the binding/API layer: count, concentration,
// and rate-constant getters/setters addressed by compartment/patch name and
// species/reaction name. Out-of-range names are recoverable caller errors,
// never fatal: the kinetic model itself is untouched when an error is
// returned.

// CompCount returns the total count of a species across a compartment.
func (sim *Simulator) CompCount(comp, species string) (int, error) {
	c, slot, err := sim.compSlot(comp, species)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, tet := range c.Tets {
		total += tet.Pool.Count(slot)
	}
	return total, nil
}

// SetCompCount overwrites the total count of a species in a compartment,
// distributing molecules across member tets in proportion to volume
// (largest-remainder rounding), then recomputes every propensity that
// depends on the species in any member tet.
func (sim *Simulator) SetCompCount(comp, species string, n int) error {
	if n < 0 {
		return fmt.Errorf("negative count %d", n)
	}
	c, slot, err := sim.compSlot(comp, species)
	if err != nil {
		return err
	}
	weights := make([]float64, len(c.Tets))
	for i, tet := range c.Tets {
		weights[i] = tet.Vol
	}
	shares := distribute(n, weights)
	g := c.def.GlobalIdx(slot)
	var touched []SchedIDX
	for i, tet := range c.Tets {
		tet.Pool.Set(slot, shares[i])
		touched = append(touched, sim.State.DependentsOfTetSpec(g, tet)...)
	}
	sim.Sched.Update(dedupSchedIDX(touched))
	return nil
}

// CompConc returns the concentration of a species in a compartment, in
// mol/L.
func (sim *Simulator) CompConc(comp, species string) (float64, error) {
	count, err := sim.CompCount(comp, species)
	if err != nil {
		return 0, err
	}
	c, _ := sim.State.Comp(comp)
	return float64(count) / (1.0e3 * c.Vol() * Avogadro), nil
}

// SetCompConc sets the concentration of a species in a compartment, in
// mol/L; the count is rounded to the nearest whole molecule.
func (sim *Simulator) SetCompConc(comp, species string, molar float64) error {
	if molar < 0 {
		return fmt.Errorf("negative concentration %g", molar)
	}
	c, ok := sim.State.Comp(comp)
	if !ok {
		return fmt.Errorf("unknown compartment %q", comp)
	}
	n := int(math.Round(molar * 1.0e3 * c.Vol() * Avogadro))
	return sim.SetCompCount(comp, species, n)
}

// PatchCount returns the total count of a surface species across a patch.
func (sim *Simulator) PatchCount(patch, species string) (int, error) {
	p, slot, err := sim.patchSlot(patch, species)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, tri := range p.Tris {
		total += tri.Pool.Count(slot)
	}
	return total, nil
}

// SetPatchCount overwrites the total count of a surface species in a patch,
// distributing across member tris in proportion to area.
func (sim *Simulator) SetPatchCount(patch, species string, n int) error {
	if n < 0 {
		return fmt.Errorf("negative count %d", n)
	}
	p, slot, err := sim.patchSlot(patch, species)
	if err != nil {
		return err
	}
	weights := make([]float64, len(p.Tris))
	for i, tri := range p.Tris {
		weights[i] = tri.Area
	}
	shares := distribute(n, weights)
	g := p.def.GlobalIdx(slot)
	var touched []SchedIDX
	for i, tri := range p.Tris {
		tri.Pool.Set(slot, shares[i])
		touched = append(touched, sim.State.DependentsOfTriSpec(g, tri)...)
	}
	sim.Sched.Update(dedupSchedIDX(touched))
	return nil
}

// CompKcst returns the rate constant of a reaction channel.
func (sim *Simulator) CompKcst(comp, reac string) (float64, error) {
	rd, err := sim.reacDef(comp, reac)
	if err != nil {
		return 0, err
	}
	return rd.Kcst, nil
}

// SetCompKcst changes the rate constant of a reaction channel. Every bound
// Reaction re-derives its cached constant and has its propensity
// recomputed before the next selection.
func (sim *Simulator) SetCompKcst(comp, reac string, kcst float64) error {
	if kcst < 0 {
		return fmt.Errorf("negative kcst %g", kcst)
	}
	rd, err := sim.reacDef(comp, reac)
	if err != nil {
		return err
	}
	rd.Kcst = kcst
	var touched []SchedIDX
	for _, kp := range sim.State.KProcs {
		if r, ok := kp.(*Reaction); ok && r.def == rd {
			r.Reset()
			touched = append(touched, r.SchedIDX())
		}
	}
	sim.Sched.Update(touched)
	return nil
}

// PatchKcst returns the rate constant of a surface reaction channel.
func (sim *Simulator) PatchKcst(patch, sreac string) (float64, error) {
	sd, err := sim.sreacDef(patch, sreac)
	if err != nil {
		return 0, err
	}
	return sd.Kcst, nil
}

// SetPatchKcst changes the rate constant of a surface reaction channel.
func (sim *Simulator) SetPatchKcst(patch, sreac string, kcst float64) error {
	if kcst < 0 {
		return fmt.Errorf("negative kcst %g", kcst)
	}
	sd, err := sim.sreacDef(patch, sreac)
	if err != nil {
		return err
	}
	sd.Kcst = kcst
	var touched []SchedIDX
	for _, kp := range sim.State.KProcs {
		if r, ok := kp.(*SReac); ok && r.def == sd {
			r.Reset()
			touched = append(touched, r.SchedIDX())
		}
	}
	sim.Sched.Update(touched)
	return nil
}

func (sim *Simulator) compSlot(comp, species string) (*Comp, int, error) {
	c, ok := sim.State.Comp(comp)
	if !ok {
		return nil, 0, fmt.Errorf("unknown compartment %q", comp)
	}
	g, ok := sim.State.Model.SpecIdx(species)
	if !ok {
		return nil, 0, fmt.Errorf("unknown species %q", species)
	}
	slot, ok := c.def.LocalIdx(g)
	if !ok {
		return nil, 0, fmt.Errorf("species %q not defined in compartment %q", species, comp)
	}
	return c, slot, nil
}

func (sim *Simulator) patchSlot(patch, species string) (*Patch, int, error) {
	p, ok := sim.State.Patch(patch)
	if !ok {
		return nil, 0, fmt.Errorf("unknown patch %q", patch)
	}
	g, ok := sim.State.Model.SpecIdx(species)
	if !ok {
		return nil, 0, fmt.Errorf("unknown species %q", species)
	}
	slot, ok := p.def.LocalIdx(g)
	if !ok {
		return nil, 0, fmt.Errorf("species %q not defined in patch %q", species, patch)
	}
	return p, slot, nil
}

func (sim *Simulator) reacDef(comp, reac string) (*ReacDef, error) {
	cd, ok := sim.State.Model.Comp(comp)
	if !ok {
		return nil, fmt.Errorf("unknown compartment %q", comp)
	}
	for _, rd := range cd.Reacs {
		if rd.Name == reac {
			return rd, nil
		}
	}
	return nil, fmt.Errorf("unknown reaction %q in compartment %q", reac, comp)
}

func (sim *Simulator) sreacDef(patch, sreac string) (*SReacDef, error) {
	pd, ok := sim.State.Model.Patch(patch)
	if !ok {
		return nil, fmt.Errorf("unknown patch %q", patch)
	}
	for _, sd := range pd.SReacs {
		if sd.Name == sreac {
			return sd, nil
		}
	}
	return nil, fmt.Errorf("unknown sreaction %q in patch %q", sreac, patch)
}

// distribute splits a total count across weighted buckets with
// largest-remainder rounding; ties go to the lower index. The shares sum to
// the total exactly.
func distribute(total int, weights []float64) []int {
	shares := make([]int, len(weights))
	if total == 0 || len(weights) == 0 {
		return shares
	}
	wsum := 0.0
	for _, w := range weights {
		wsum += w
	}
	if wsum <= 0 {
		shares[0] = total
		return shares
	}
	type frac struct {
		idx int
		f   float64
	}
	fracs := make([]frac, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := float64(total) * w / wsum
		shares[i] = int(exact)
		assigned += shares[i]
		fracs[i] = frac{idx: i, f: exact - float64(shares[i])}
	}
	// Hand out the remainder to the largest fractional parts.
	for assigned < total {
		best := 0
		for i := 1; i < len(fracs); i++ {
			if fracs[i].f > fracs[best].f {
				best = i
			}
		}
		shares[fracs[best].idx]++
		fracs[best].f = -1
		assigned++
	}
	return shares
}
