package evaluate

import (
	"errors"
	"math"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

// ErrUnrepairable says a move left the schedule in a shape repair cannot
// normalise, usually because the fix would touch locked slots. Callers roll
// the move back and try another.
var ErrUnrepairable = errors.New("evaluate: move not repairable")

// Repairer restores the sequencing rules after neighbourhood moves. Head
// starts are enforced by idling premature cells; abandoned blocks are
// continued under the finish-first policy, idling what cannot be continued.
// All fixes are deterministic.
type Repairer struct {
	p  *model.Problem
	sc *schedule.Scanner
	up []float64
}

// NewRepairer returns a repairer for instances of p.
func NewRepairer(p *model.Problem) *Repairer {
	return &Repairer{
		p:  p,
		sc: schedule.NewScanner(p),
		up: make([]float64, p.Slots()+1),
	}
}

// Repair normalises st in place. A structural violation comes back as an
// InvariantError and means an operator is buggy; ErrUnrepairable means the
// move cannot be normalised and should be rolled back.
func (r *Repairer) Repair(st *schedule.State) error {
	maxPasses := 8*r.p.NumMachines() + 8
	for pass := 0; pass < maxPasses; pass++ {
		var structural, seq *schedule.Violation
		r.sc.Scan(st, func(v schedule.Violation) {
			if !v.Kind.Sequencing() {
				if structural == nil {
					vv := v
					structural = &vv
				}
				return
			}
			if seq == nil {
				vv := v
				seq = &vv
			}
		})
		if structural != nil {
			return &schedule.InvariantError{
				Machine: r.p.Machines[structural.Machine].ID,
				Block:   r.p.Blocks[structural.Block].ID,
				Slot:    structural.Slot,
				Reason:  structural.Kind.String(),
			}
		}
		if seq == nil {
			return nil
		}
		switch seq.Kind {
		case schedule.KindAbandon:
			r.fixAbandon(st, *seq)
		case schedule.KindEarlyStart:
			r.fixEarlyStart(st, *seq)
		}
	}
	return ErrUnrepairable
}

// fixAbandon continues the abandoned block with the offending machine until
// its role work is exhausted or the window closes, then idles whatever
// foreign work still sits before the exhaustion point.
func (r *Repairer) fixAbandon(st *schedule.State, v schedule.Violation) {
	p := r.p
	m, b0 := v.Machine, v.Block
	role := p.RoleOf(m)
	blk := &p.Blocks[b0]
	end := blk.LatestFinish
	if we := st.WindowEnd(); end >= we {
		end = we - 1
	}
	for s := v.Slot; s <= end && !st.RoleExhausted(role, b0); s++ {
		if st.Frozen(s) || !p.Available(m, s) {
			continue
		}
		if st.At(m, s) == int32(b0) {
			continue
		}
		if r.roleCount(st, b0, role, s) >= p.MultiplicityAt(b0, role) {
			continue
		}
		st.Set(m, s, int32(b0))
	}
	for s := v.Slot; s <= end; s++ {
		c := st.At(m, s)
		if c == schedule.Idle || c == int32(b0) || st.Frozen(s) {
			continue
		}
		if r.roleCumBefore(st, b0, role, s) < blk.WorkRequired-volEps {
			st.Set(m, s, schedule.Idle)
		}
	}
}

// fixEarlyStart idles every cell of the offending role on the block before
// the slot its head-start buffer is finally staged. When the buffer can
// never be staged the role's cells go entirely.
func (r *Repairer) fixEarlyStart(st *schedule.State, v schedule.Violation) {
	p := r.p
	b := v.Block
	role := p.RoleOf(v.Machine)
	pos := p.RolePosition(b, role)
	if pos <= 0 {
		return
	}
	up := p.Pipeline(b)[pos-1]
	blk := &p.Blocks[b]
	buffer := p.StartBuffer(b, role)
	slots := st.Slots()

	for i := range r.up {
		r.up[i] = 0
	}
	for m := 0; m < p.NumMachines(); m++ {
		if p.RoleOf(m) != up {
			continue
		}
		for s := 0; s < slots; s++ {
			if st.At(m, s) == int32(b) {
				r.up[s+1] += p.Rate(m, b)
			}
		}
	}
	for s := 1; s <= slots; s++ {
		r.up[s] += r.up[s-1]
	}

	ready := -1
	for s := blk.EarliestStart; s <= blk.LatestFinish; s++ {
		if math.Min(r.up[s], blk.WorkRequired) >= buffer-volEps {
			ready = s
			break
		}
	}
	limit := blk.LatestFinish + 1
	if ready >= 0 {
		limit = ready
	}
	if limit > slots {
		limit = slots
	}
	for m := 0; m < p.NumMachines(); m++ {
		if p.RoleOf(m) != role {
			continue
		}
		for s := 0; s < limit; s++ {
			if st.At(m, s) == int32(b) && !st.Frozen(s) {
				st.Set(m, s, schedule.Idle)
			}
		}
	}
}

func (r *Repairer) roleCount(st *schedule.State, b, role, s int) int {
	n := 0
	for m := 0; m < r.p.NumMachines(); m++ {
		if r.p.RoleOf(m) == role && st.At(m, s) == int32(b) {
			n++
		}
	}
	return n
}

// roleCumBefore sums the gross volume of role machines on block b in slots
// strictly before s.
func (r *Repairer) roleCumBefore(st *schedule.State, b, role, s int) float64 {
	total := 0.0
	for m := 0; m < r.p.NumMachines(); m++ {
		if r.p.RoleOf(m) != role {
			continue
		}
		for t := 0; t < s; t++ {
			if st.At(m, t) == int32(b) {
				total += r.p.Rate(m, b)
			}
		}
	}
	return total
}
