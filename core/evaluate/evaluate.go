package evaluate

import (
	"math"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

const volEps = 1e-9

// Evaluator prices schedules for one problem instance under one weight set.
// It is immutable and safe to share between goroutines; the mutable caches
// live in Tracker.
type Evaluator struct {
	p       *model.Problem
	w       Weights
	maxPipe int
}

// New returns an evaluator for p under w.
func New(p *model.Problem, w Weights) *Evaluator {
	maxPipe := 0
	for b := 0; b < p.NumBlocks(); b++ {
		if n := len(p.Pipeline(b)); n > maxPipe {
			maxPipe = n
		}
	}
	return &Evaluator{p: p, w: w, maxPipe: maxPipe}
}

// Weights returns the weight set the evaluator prices with.
func (e *Evaluator) Weights() Weights { return e.w }

// Problem returns the instance the evaluator belongs to.
func (e *Evaluator) Problem() *model.Problem { return e.p }

// landingTotals is one landing's cached production outcome.
type landingTotals struct {
	delivered float64
	staged    float64
	leftover  float64
	overflow  float64
}

type sweepBuf struct {
	cum   []float64 // [b*maxPipe+pos] effective cumulative output
	prev  []float64 // cum snapshot at slot start
	gross []float64 // gross assignment of the current slot
	acc   []float64 // [b] final-stage volume awaiting release
	deliv []float64 // [b] released volume
}

func newSweepBuf(nb, maxPipe int) *sweepBuf {
	return &sweepBuf{
		cum:   make([]float64, nb*maxPipe),
		prev:  make([]float64, nb*maxPipe),
		gross: make([]float64, nb*maxPipe),
		acc:   make([]float64, nb),
		deliv: make([]float64, nb),
	}
}

// sweepLanding replays landing l's production slot by slot: staging between
// pipeline stages, whole-batch release and the landing's per-slot capacity.
// Downstream stages consume only volume staged in earlier slots, so
// same-slot production never flows through two stages at once.
func (e *Evaluator) sweepLanding(st *schedule.State, l int, buf *sweepBuf) landingTotals {
	p := e.p
	blocks := p.BlocksOfLanding(l)
	var out landingTotals
	if len(blocks) == 0 {
		return out
	}
	mp := e.maxPipe
	for _, b := range blocks {
		off := b * mp
		for pos := 0; pos < mp; pos++ {
			buf.cum[off+pos] = 0
		}
		buf.acc[b] = 0
		buf.deliv[b] = 0
	}

	slots := st.Slots()
	for s := 0; s < slots; s++ {
		for _, b := range blocks {
			off := b * mp
			for pos := 0; pos < mp; pos++ {
				buf.prev[off+pos] = buf.cum[off+pos]
				buf.gross[off+pos] = 0
			}
		}
		for m := 0; m < p.NumMachines(); m++ {
			b := st.At(m, s)
			if b == schedule.Idle || p.LandingOf(int(b)) != l {
				continue
			}
			pos := p.RolePosition(int(b), p.RoleOf(m))
			if pos < 0 {
				continue
			}
			buf.gross[int(b)*mp+pos] += p.Rate(m, int(b))
		}

		capRem := p.Landings[l].CapacityPerSlot
		for _, b := range blocks {
			blk := &p.Blocks[b]
			pipe := p.Pipeline(b)
			off := b * mp
			var effLast float64
			for pos := range pipe {
				var avail float64
				if pos == 0 {
					avail = blk.WorkRequired - buf.cum[off]
				} else {
					avail = buf.prev[off+pos-1] - buf.cum[off+pos]
				}
				if avail < 0 {
					avail = 0
				}
				eff := buf.gross[off+pos]
				if eff > avail {
					eff = avail
				}
				buf.cum[off+pos] += eff
				effLast = eff
			}
			buf.acc[b] += effLast

			batch := p.Systems[p.SystemOf(b)].LoaderBatch
			var want float64
			if batch > 0 {
				want = math.Floor(buf.acc[b]/batch+volEps) * batch
			} else {
				want = buf.acc[b]
			}
			grant := want
			if grant > capRem {
				if batch > 0 {
					grant = math.Floor(capRem/batch+volEps) * batch
				} else {
					grant = capRem
				}
			}
			if grant < 0 {
				grant = 0
			}
			if grant > 0 {
				buf.deliv[b] += grant
				buf.acc[b] -= grant
				capRem -= grant
			}
			out.overflow += want - grant
		}
	}

	for _, b := range blocks {
		cum0 := buf.cum[b*mp]
		out.delivered += buf.deliv[b]
		out.staged += cum0 - buf.deliv[b]
		out.leftover += p.Blocks[b].WorkRequired - cum0
	}
	return out
}

// mobilisation walks machine m's timeline and prices every relocation
// beyond its free threshold. Idle gaps leave the machine where it stands.
func (e *Evaluator) mobilisation(st *schedule.State, m int) float64 {
	p := e.p
	mach := &p.Machines[m]
	cur := p.StartLanding(m)
	cost := 0.0
	for s := 0; s < st.Slots(); s++ {
		b := st.At(m, s)
		if b == schedule.Idle {
			continue
		}
		l := p.LandingOf(int(b))
		if cur >= 0 && l != cur {
			if d := p.DistanceM(cur, l); d > mach.WalkThresholdM {
				cost += (d-mach.WalkThresholdM)*mach.WalkCostPerM + mach.SetupCost
			}
		}
		cur = l
	}
	return cost
}

// Score prices st from scratch. Landings and machines are visited in index
// order so repeated calls on the same schedule are bit-identical, as are
// tracker rescores of the same state.
func (e *Evaluator) Score(st *schedule.State) (float64, Components) {
	buf := newSweepBuf(e.p.NumBlocks(), e.maxPipe)
	var c Components
	for l := 0; l < e.p.NumLandings(); l++ {
		t := e.sweepLanding(st, l, buf)
		c.DeliveredVolume += t.delivered
		c.StagedVolume += t.staged
		c.LeftoverVolume += t.leftover
		c.LandingOverflow += t.overflow
	}
	for m := 0; m < e.p.NumMachines(); m++ {
		c.MobilisationCost += e.mobilisation(st, m)
	}
	schedule.NewScanner(e.p).Scan(st, func(v schedule.Violation) {
		if v.Kind.Sequencing() {
			c.SequencingViolations++
		}
	})
	return c.Objective(e.w), c
}
