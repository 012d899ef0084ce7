package schedule

import (
	"math"
	"sort"

	"github.com/harvestplan/harvestplan/core/model"
)

// NewGreedy builds a deterministic starting schedule: blocks in window
// order, roles in pipeline order, the fastest machines first. The result
// satisfies every scheduling rule; whatever the horizon cannot fit stays
// unassigned and is priced as leftover.
func NewGreedy(p *model.Problem) *State {
	st := NewState(p)
	Fill(st)
	st.ResetDirty()
	return st
}

// Fill extends st greedily inside its editable window, leaving existing
// assignments alone. The rolling orchestrator uses it to seed each slice on
// top of the locked prefix.
func Fill(st *State) {
	p := st.Problem()
	nb, nr, slots := p.NumBlocks(), p.NumRoles(), st.Slots()
	rowLen := slots + 1

	// cum[(r*nb+b)*rowLen+s] holds the gross volume of role r on block b
	// in slots before s.
	cum := make([]float64, nr*nb*rowLen)
	row := func(r, b int) []float64 {
		off := (r*nb + b) * rowLen
		return cum[off : off+rowLen]
	}

	lastSlot := make([]int, p.NumMachines())
	lastBlock := make([]int32, p.NumMachines())
	for m := range lastSlot {
		lastSlot[m] = -1
		lastBlock[m] = Idle
	}
	started := make([]bool, nr*nb)

	add := make([]float64, nr*nb*slots)
	for m := 0; m < p.NumMachines(); m++ {
		r := p.RoleOf(m)
		for s := 0; s < slots; s++ {
			b := st.At(m, s)
			if b == Idle {
				continue
			}
			add[(r*nb+int(b))*slots+s] += p.Rate(m, int(b))
			started[r*nb+int(b)] = true
			if s > lastSlot[m] {
				lastSlot[m] = s
				lastBlock[m] = b
			}
		}
	}
	for r := 0; r < nr; r++ {
		for b := 0; b < nb; b++ {
			rw := row(r, b)
			run := 0.0
			for s := 0; s < slots; s++ {
				rw[s] = run
				run += add[(r*nb+b)*slots+s]
			}
			rw[slots] = run
		}
	}

	order := make([]int, nb)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		bi, bj := p.Blocks[order[i]], p.Blocks[order[j]]
		if bi.EarliestStart != bj.EarliestStart {
			return bi.EarliestStart < bj.EarliestStart
		}
		return bi.ID < bj.ID
	})

	type cand struct {
		m    int
		rate float64
	}
	slotAdd := make([]float64, slots)

	for _, b := range order {
		blk := &p.Blocks[b]
		pipe := p.Pipeline(b)
		for pos, r := range pipe {
			target := blk.WorkRequired
			myRow := row(r, b)
			got := myRow[slots]
			if got >= target-workEps {
				continue
			}

			var cands []cand
			for m := 0; m < p.NumMachines(); m++ {
				if p.RoleOf(m) == r && p.CanWork(m, b) {
					cands = append(cands, cand{m: m, rate: p.Rate(m, b)})
				}
			}
			sort.Slice(cands, func(i, j int) bool {
				if cands[i].rate != cands[j].rate {
					return cands[i].rate > cands[j].rate
				}
				return p.Machines[cands[i].m].ID < p.Machines[cands[j].m].ID
			})

			mult := p.MultiplicityAt(b, r)
			var upRow []float64
			if pos > 0 {
				upRow = row(pipe[pos-1], b)
			}

			startMin := blk.EarliestStart
			if pos > 0 && !started[r*nb+b] {
				buffer := p.StartBuffer(b, r)
				startMin = -1
				for s := blk.EarliestStart; s <= blk.LatestFinish; s++ {
					staged := math.Min(upRow[s], target)
					if staged >= buffer-workEps {
						startMin = s
						break
					}
				}
				if startMin < 0 {
					continue // upstream can never stage the buffer
				}
			}
			if startMin < st.LockBefore() {
				startMin = st.LockBefore()
			}

			for s := range slotAdd {
				slotAdd[s] = 0
			}
			addRun := 0.0
			for s := startMin; s <= blk.LatestFinish && got < target-workEps; s++ {
				if st.Frozen(s) {
					continue
				}
				mineBefore := myRow[s] + addRun
				if pos > 0 {
					staged := math.Min(upRow[s], target)
					if staged-mineBefore <= workEps {
						addRun += slotAdd[s]
						continue // starved; upstream may stage more later
					}
				}
				cnt := 0
				for m := 0; m < p.NumMachines(); m++ {
					if p.RoleOf(m) == r && st.At(m, s) == int32(b) {
						cnt++
					}
				}
				for _, c := range cands {
					if got >= target-workEps || cnt >= mult {
						break
					}
					m := c.m
					if !p.Available(m, s) || st.At(m, s) != Idle {
						continue
					}
					if lastSlot[m] >= s {
						continue // keep timelines append-only
					}
					if lb := lastBlock[m]; lb != Idle && int(lb) != b {
						pbk := &p.Blocks[lb]
						if pbk.LatestFinish >= s && row(r, int(lb))[s] < pbk.WorkRequired-workEps {
							continue // would abandon an unfinished block
						}
					}
					st.Set(m, s, int32(b))
					lastSlot[m], lastBlock[m] = s, int32(b)
					got += c.rate
					slotAdd[s] += c.rate
					cnt++
					started[r*nb+b] = true
				}
				addRun += slotAdd[s]
			}

			run := 0.0
			for s := 0; s < slots; s++ {
				myRow[s] += run
				run += slotAdd[s]
			}
			myRow[slots] += run
		}
	}
}
