package operator

import (
	"math/rand"
	"testing"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

func poolProblem(t *testing.T) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(model.ProblemInput{
		Calendar: model.Calendar{Days: 6, ShiftsPerDay: 1},
		Systems: []model.HarvestSystem{{
			ID:    "direct",
			Roles: []model.Role{model.RoleFell},
		}},
		Landings: []model.Landing{{ID: "L1", CapacityPerSlot: 50}},
		Blocks: []model.Block{
			{ID: "B1", WorkRequired: 10, EarliestStart: 0, LatestFinish: 5, LandingID: "L1", SystemID: "direct"},
			{ID: "B2", WorkRequired: 5, EarliestStart: 0, LatestFinish: 5, LandingID: "L1", SystemID: "direct"},
		},
		Machines: []model.Machine{
			{ID: "M1", Role: model.RoleFell},
			{ID: "M2", Role: model.RoleFell},
		},
		Rates: model.TableRates{Default: 5},
	})
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

// carriersOf lists which machines hold block b anywhere in the horizon.
func carriersOf(p *model.Problem, st *schedule.State, b int32) map[int]bool {
	out := make(map[int]bool)
	for m := 0; m < p.NumMachines(); m++ {
		for s := 0; s < st.Slots(); s++ {
			if st.At(m, s) == b {
				out[m] = true
			}
		}
	}
	return out
}

// TestRelocateTransfersBlockAcrossMachines pins the cross-machine half of
// the relocate neighbourhood: a block carried by one machine must be
// reachable as a unit on the other machine of the same role.
func TestRelocateTransfersBlockAcrossMachines(t *testing.T) {
	p := poolProblem(t)
	st := schedule.NewState(p)
	m1, _ := p.MachineByID("M1")
	b1, _ := p.BlockByID("B1")
	st.Set(m1, 0, int32(b1))
	st.Set(m1, 1, int32(b1))
	before := carriersOf(p, st, int32(b1))
	if len(before) != 1 {
		t.Fatalf("B1 should start on one machine, got carriers %v", before)
	}

	pl, err := NewPool(p, Config{Relocate: 1}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	cross := 0
	for i := 0; i < 2000; i++ {
		mv := pl.Sample(st)
		if mv == nil {
			continue
		}
		for _, c := range mv.Cells {
			if c.Block == int32(b1) && !before[c.Machine] {
				cross++
			}
		}
	}
	if cross == 0 {
		t.Fatalf("relocate never moved B1 onto a machine not already carrying it")
	}
}

// TestRelocateTransferIsValid applies one cross-machine relocation and
// checks the result still passes every scheduling rule.
func TestRelocateTransferIsValid(t *testing.T) {
	p := poolProblem(t)
	st := schedule.NewState(p)
	m1, _ := p.MachineByID("M1")
	b1, _ := p.BlockByID("B1")
	st.Set(m1, 0, int32(b1))
	st.Set(m1, 1, int32(b1))
	before := carriersOf(p, st, int32(b1))

	pl, err := NewPool(p, Config{Relocate: 1}, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := 0; i < 2000; i++ {
		mv := pl.Sample(st)
		if mv == nil {
			continue
		}
		moved := false
		for _, c := range mv.Cells {
			if c.Block == int32(b1) && !before[c.Machine] {
				moved = true
			}
		}
		if !moved {
			continue
		}
		st.Begin()
		mv.Apply(st)
		if err := schedule.Check(st); err != nil {
			t.Fatalf("transferred schedule invalid: %v", err)
		}
		after := carriersOf(p, st, int32(b1))
		for m := range before {
			if after[m] {
				t.Fatalf("source machine %d still carries B1 after transfer", m)
			}
		}
		st.Rollback()
		return
	}
	t.Fatalf("no cross-machine relocation sampled")
}

// TestSwapReachesDistinctSlots pins the two-slot form of the swap move:
// exchanges between different slots must be sampled, not just same-slot
// trades.
func TestSwapReachesDistinctSlots(t *testing.T) {
	p := poolProblem(t)
	st := schedule.NewState(p)
	m1, _ := p.MachineByID("M1")
	m2, _ := p.MachineByID("M2")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	st.Set(m1, 0, int32(b1))
	st.Set(m2, 2, int32(b2))

	pl, err := NewPool(p, Config{Swap: 1}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	crossSlot := 0
	for i := 0; i < 2000; i++ {
		mv := pl.Sample(st)
		if mv == nil {
			continue
		}
		if len(mv.Cells) != 2 {
			t.Fatalf("swap wrote %d cells, want 2", len(mv.Cells))
		}
		if mv.Cells[0].Slot != mv.Cells[1].Slot {
			crossSlot++
		}
	}
	if crossSlot == 0 {
		t.Fatalf("swap never exchanged assignments across two different slots")
	}
}

// TestSwapRespectsMultiplicity builds a state where a cross-slot swap would
// put two machines on the same block in one slot and checks the pool never
// proposes it.
func TestSwapRespectsMultiplicity(t *testing.T) {
	p := poolProblem(t)
	st := schedule.NewState(p)
	m1, _ := p.MachineByID("M1")
	m2, _ := p.MachineByID("M2")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	// M2 already works B1 in slot 0; landing B1 on M1 in slot 0 via a swap
	// with M2's slot-2 cell would double up a multiplicity-1 block.
	st.Set(m2, 0, int32(b1))
	st.Set(m2, 2, int32(b1))
	st.Set(m1, 2, int32(b2))

	pl, err := NewPool(p, Config{Swap: 1}, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := 0; i < 2000; i++ {
		mv := pl.Sample(st)
		if mv == nil {
			continue
		}
		st.Begin()
		mv.Apply(st)
		for s := 0; s < st.Slots(); s++ {
			n := 0
			for m := 0; m < p.NumMachines(); m++ {
				if st.At(m, s) == int32(b1) {
					n++
				}
			}
			if n > 1 {
				t.Fatalf("swap stacked %d machines on B1 in slot %d: %+v", n, s, mv.Cells)
			}
		}
		st.Rollback()
	}
}
