// Package schedule holds the mutable assignment state the search strategies
// work on, plus its invariant scanner, seed construction and the exchange
// form used to import and export plans.
package schedule

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/internal/bitset"
)

// Idle marks a machine-slot cell with no assignment.
const Idle int32 = -1

type change struct {
	m, s int32
	prev int32
}

// State is a dense machine-by-slot assignment arena. Every cell holds a
// block index or Idle. Mutations go through Set so the journal, the dirty
// sets and the per-role production tallies stay consistent.
//
// A State is not safe for concurrent mutation; parallel searches clone one
// each.
type State struct {
	p     *model.Problem
	slots int
	cells []int32

	// produced tallies gross volume per role and block, ignoring staging
	// caps. Preconditions and repair use it for work-exhausted checks.
	produced []float64

	lockBefore int
	windowEnd  int

	recording bool
	journal   []change

	dirtyM *bitset.Set
	dirtyB *bitset.Set
}

// NewState returns an all-idle schedule over the full horizon.
func NewState(p *model.Problem) *State {
	slots := p.Slots()
	st := &State{
		p:          p,
		slots:      slots,
		cells:      make([]int32, p.NumMachines()*slots),
		produced:   make([]float64, p.NumRoles()*p.NumBlocks()),
		lockBefore: 0,
		windowEnd:  slots,
		dirtyM:     bitset.New(p.NumMachines()),
		dirtyB:     bitset.New(p.NumBlocks()),
	}
	for i := range st.cells {
		st.cells[i] = Idle
	}
	return st
}

// Problem returns the instance this schedule belongs to.
func (st *State) Problem() *model.Problem { return st.p }

// Slots returns the horizon length.
func (st *State) Slots() int { return st.slots }

// At returns the block assigned to machine m in slot s, or Idle.
func (st *State) At(m, s int) int32 { return st.cells[m*st.slots+s] }

// Frozen reports whether slot s is outside the editable window.
func (st *State) Frozen(s int) bool { return s < st.lockBefore || s >= st.windowEnd }

// LockBefore returns the first editable slot.
func (st *State) LockBefore() int { return st.lockBefore }

// WindowEnd returns the slot after the last editable one.
func (st *State) WindowEnd() int { return st.windowEnd }

// SetWindow restricts edits to slots in [lo, hi). The rolling orchestrator
// slides this window as it locks committed spans.
func (st *State) SetWindow(lo, hi int) {
	if lo < 0 {
		lo = 0
	}
	if hi > st.slots {
		hi = st.slots
	}
	st.lockBefore = lo
	st.windowEnd = hi
}

// Set assigns block b (or Idle) to machine m in slot s. Frozen cells panic;
// operators check Frozen before building moves, so hitting one is a bug.
func (st *State) Set(m, s int, b int32) {
	if st.Frozen(s) {
		panic("schedule: write to frozen slot")
	}
	idx := m*st.slots + s
	prev := st.cells[idx]
	if prev == b {
		return
	}
	if st.recording {
		st.journal = append(st.journal, change{m: int32(m), s: int32(s), prev: prev})
	}
	st.apply(m, s, idx, prev, b)
}

func (st *State) apply(m, s, idx int, prev, b int32) {
	role := st.p.RoleOf(m)
	nb := st.p.NumBlocks()
	if prev != Idle {
		st.produced[role*nb+int(prev)] -= st.p.Rate(m, int(prev))
		st.dirtyB.Add(int(prev))
	}
	if b != Idle {
		st.produced[role*nb+int(b)] += st.p.Rate(m, int(b))
		st.dirtyB.Add(int(b))
	}
	st.cells[idx] = b
	st.dirtyM.Add(m)
}

// Begin opens a journal scope. Rollback undoes everything Set since the
// matching Begin; Commit keeps it. Scopes do not nest.
func (st *State) Begin() {
	st.journal = st.journal[:0]
	st.recording = true
}

// Commit closes the journal scope, keeping all changes.
func (st *State) Commit() {
	st.journal = st.journal[:0]
	st.recording = false
}

// Rollback undoes the open journal scope in reverse order. The undone cells
// are marked dirty again so the next rescore refreshes them.
func (st *State) Rollback() {
	st.recording = false
	for i := len(st.journal) - 1; i >= 0; i-- {
		ch := st.journal[i]
		idx := int(ch.m)*st.slots + int(ch.s)
		st.apply(int(ch.m), int(ch.s), idx, st.cells[idx], ch.prev)
	}
	st.journal = st.journal[:0]
}

// Produced returns the gross volume role r has assigned on block b, the sum
// of rates over assigned cells with no staging cap applied.
func (st *State) Produced(r, b int) float64 { return st.produced[r*st.p.NumBlocks()+b] }

// RoleExhausted reports whether role r has enough gross assignment on block
// b to cover its work.
func (st *State) RoleExhausted(r, b int) bool {
	return st.Produced(r, b) >= st.p.Blocks[b].WorkRequired-1e-9
}

// DirtyMachines exposes the machines touched since the last ResetDirty.
// The returned set is live; callers must not hold it across mutations.
func (st *State) DirtyMachines() *bitset.Set { return st.dirtyM }

// DirtyBlocks exposes the blocks touched since the last ResetDirty.
func (st *State) DirtyBlocks() *bitset.Set { return st.dirtyB }

// ResetDirty clears both dirty sets, typically right after a rescore.
func (st *State) ResetDirty() {
	st.dirtyM.Clear()
	st.dirtyB.Clear()
}

// MarkAllDirty flags every machine and block, forcing the next rescore to
// start from scratch.
func (st *State) MarkAllDirty() {
	for m := 0; m < st.p.NumMachines(); m++ {
		st.dirtyM.Add(m)
	}
	for b := 0; b < st.p.NumBlocks(); b++ {
		st.dirtyB.Add(b)
	}
}

// Clone returns an independent copy with fresh dirty sets and an empty
// journal. Production tallies are recomputed from the cells so clones do
// not inherit floating-point drift.
func (st *State) Clone() *State {
	c := &State{
		p:          st.p,
		slots:      st.slots,
		cells:      append([]int32(nil), st.cells...),
		produced:   make([]float64, len(st.produced)),
		lockBefore: st.lockBefore,
		windowEnd:  st.windowEnd,
		dirtyM:     bitset.New(st.p.NumMachines()),
		dirtyB:     bitset.New(st.p.NumBlocks()),
	}
	nb := st.p.NumBlocks()
	for m := 0; m < st.p.NumMachines(); m++ {
		role := st.p.RoleOf(m)
		for s := 0; s < st.slots; s++ {
			if b := c.cells[m*st.slots+s]; b != Idle {
				c.produced[role*nb+int(b)] += st.p.Rate(m, int(b))
			}
		}
	}
	return c
}

// CopyFrom overwrites this state's assignment with src's without
// reallocating. Both must belong to the same problem. Dirty sets are left
// fully marked.
func (st *State) CopyFrom(src *State) {
	copy(st.cells, src.cells)
	copy(st.produced, src.produced)
	st.lockBefore = src.lockBefore
	st.windowEnd = src.windowEnd
	st.journal = st.journal[:0]
	st.recording = false
	st.MarkAllDirty()
}

// Fingerprint hashes the full assignment. Equal schedules hash equal; the
// tabu strategy and tests use it as a cheap identity.
func (st *State) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, c := range st.cells {
		binary.LittleEndian.PutUint32(buf[:], uint32(c))
		h.Write(buf[:])
	}
	return h.Sum64()
}
