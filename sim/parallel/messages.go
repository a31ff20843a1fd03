package parallel

import "github.com/tetsim/tetsim/sim"

// The round protocol between coordinator and ranks is expressed as explicit
// message structs over per-rank channels. A round is strictly synchronous:
// propose -> (optionally) fire on one owner -> delta broadcast -> ack
// barrier. No rank's clock moves past the round's event time before the
// barrier completes.

// Delta carries the authoritative new count of one shared (element,
// species) pair after a firing. Ghost copies are overwritten wholesale on
// receipt, never merged.
type Delta struct {
	Ref   sim.PoolRef `json:"ref"`
	Count int         `json:"count"`
}

// proposeMsg asks a rank for its current total local propensity.
type proposeMsg struct {
	resp chan float64
}

// fireMsg tells the owning rank to fire the event selected by the
// coordinator. selector is the remainder of the categorical draw after
// subtracting the preceding ranks' totals; hopU is the event's hop uniform.
// The rank answers with the deltas of every shared count it touched.
type fireMsg struct {
	selector float64
	hopU     float64
	resp     chan []Delta
}

// deltaMsg distributes a fired event's deltas to a non-owning rank.
// The rank acknowledges after its ghosts and dependent propensities are
// up to date; the coordinator's round barrier is the collection of acks.
type deltaMsg struct {
	deltas []Delta
	resp   chan struct{}
}
