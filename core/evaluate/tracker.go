package evaluate

import (
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/internal/bitset"
)

// Tracker caches per-landing production totals and per-machine mobilisation
// so rescoring after a move costs only the dirty parts. It assumes the
// schedule has been repaired: sequencing violations are zero by contract.
//
// A tracker belongs to one state; every search worker owns its own.
type Tracker struct {
	e        *Evaluator
	buf      *sweepBuf
	landings []landingTotals
	mob      []float64
	dirtyL   *bitset.Set
}

// NewTracker builds the caches for st with a full rescore.
func (e *Evaluator) NewTracker(st *schedule.State) *Tracker {
	tr := &Tracker{
		e:        e,
		buf:      newSweepBuf(e.p.NumBlocks(), e.maxPipe),
		landings: make([]landingTotals, e.p.NumLandings()),
		mob:      make([]float64, e.p.NumMachines()),
		dirtyL:   bitset.New(e.p.NumLandings()),
	}
	st.MarkAllDirty()
	tr.Rescore(st)
	return tr
}

// Rescore refreshes every cache the state's dirty sets cover, clears the
// dirty sets and returns the objective. The result is bit-identical to a
// fresh Score of the same schedule.
func (tr *Tracker) Rescore(st *schedule.State) (float64, Components) {
	p := tr.e.p
	st.DirtyBlocks().ForEach(func(b int) {
		tr.dirtyL.Add(p.LandingOf(b))
	})
	tr.dirtyL.ForEach(func(l int) {
		tr.landings[l] = tr.e.sweepLanding(st, l, tr.buf)
	})
	st.DirtyMachines().ForEach(func(m int) {
		tr.mob[m] = tr.e.mobilisation(st, m)
	})
	tr.dirtyL.Clear()
	st.ResetDirty()
	return tr.Current()
}

// Current returns the objective and components from the caches without
// touching the schedule.
func (tr *Tracker) Current() (float64, Components) {
	var c Components
	for l := range tr.landings {
		c.DeliveredVolume += tr.landings[l].delivered
		c.StagedVolume += tr.landings[l].staged
		c.LeftoverVolume += tr.landings[l].leftover
		c.LandingOverflow += tr.landings[l].overflow
	}
	for m := range tr.mob {
		c.MobilisationCost += tr.mob[m]
	}
	return c.Objective(tr.e.w), c
}
