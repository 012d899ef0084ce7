package schedule

import (
	"testing"

	"github.com/harvestplan/harvestplan/core/model"
)

func testProblem(t *testing.T) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(model.ProblemInput{
		Calendar: model.Calendar{Days: 14, ShiftsPerDay: 2},
		Systems: []model.HarvestSystem{{
			ID:           "ground",
			Roles:        []model.Role{model.RoleFell, model.RoleExtract, model.RoleLoad},
			BufferShifts: map[model.Role]float64{model.RoleExtract: 1},
			LoaderBatch:  25,
		}},
		Landings: []model.Landing{
			{ID: "L1", CapacityPerSlot: 100},
			{ID: "L2", CapacityPerSlot: 60},
		},
		Blocks: []model.Block{
			{ID: "B1", WorkRequired: 120, EarliestStart: 0, LatestFinish: 27, LandingID: "L1", SystemID: "ground"},
			{ID: "B2", WorkRequired: 80, EarliestStart: 4, LatestFinish: 27, LandingID: "L2", SystemID: "ground"},
		},
		Machines: []model.Machine{
			{ID: "F1", Role: model.RoleFell, WalkThresholdM: 500, WalkCostPerM: 2, SetupCost: 150},
			{ID: "F2", Role: model.RoleFell, OffSlots: []int{3}, WalkThresholdM: 500, WalkCostPerM: 2, SetupCost: 150},
			{ID: "X1", Role: model.RoleExtract, WalkThresholdM: 800, WalkCostPerM: 1.5, SetupCost: 100},
			{ID: "X2", Role: model.RoleExtract, WalkThresholdM: 800, WalkCostPerM: 1.5, SetupCost: 100},
			{ID: "D1", Role: model.RoleLoad, WalkThresholdM: 1000, WalkCostPerM: 1, SetupCost: 80, StartLandingID: "L1"},
		},
		Distances: map[string]map[string]float64{"L1": {"L2": 1200}},
		Rates: model.TableRates{Rates: map[string]map[string]float64{
			"F1": {"B1": 20, "B2": 18},
			"F2": {"B1": 16, "B2": 14},
			"X1": {"B1": 22, "B2": 0},
			"X2": {"B1": 0, "B2": 22},
			"D1": {"B1": 30, "B2": 30},
		}},
	})
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

func mustIdx(t *testing.T, ok bool, what string) {
	t.Helper()
	if !ok {
		t.Fatalf("%s not found", what)
	}
}

func TestStateSetAndProduced(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, ok := p.MachineByID("F1")
	mustIdx(t, ok, "F1")
	b1, ok := p.BlockByID("B1")
	mustIdx(t, ok, "B1")

	if st.At(f1, 0) != Idle {
		t.Fatalf("fresh state should be idle")
	}
	st.Set(f1, 0, int32(b1))
	st.Set(f1, 1, int32(b1))
	if got := st.Produced(p.RoleOf(f1), b1); got != 40 {
		t.Fatalf("produced = %g, want 40", got)
	}
	st.Set(f1, 1, Idle)
	if got := st.Produced(p.RoleOf(f1), b1); got != 20 {
		t.Fatalf("produced after clear = %g, want 20", got)
	}
}

func TestStateJournalRollback(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")

	st.Set(f1, 0, int32(b1))
	before := st.Fingerprint()
	st.ResetDirty()

	st.Begin()
	st.Set(f1, 0, int32(b2))
	st.Set(f1, 5, int32(b2))
	st.Rollback()

	if st.Fingerprint() != before {
		t.Fatalf("rollback did not restore the schedule")
	}
	if got := st.Produced(p.RoleOf(f1), b1); got != 20 {
		t.Fatalf("produced after rollback = %g, want 20", got)
	}
	if st.DirtyMachines().Empty() {
		t.Fatalf("rollback should leave touched machines dirty")
	}
}

func TestStateCommitKeepsChanges(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")

	st.Begin()
	st.Set(f1, 2, int32(b1))
	st.Commit()
	if st.At(f1, 2) != int32(b1) {
		t.Fatalf("commit lost the assignment")
	}
}

func TestStateCloneIsIndependent(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	st.Set(f1, 0, int32(b1))

	c := st.Clone()
	if c.Fingerprint() != st.Fingerprint() {
		t.Fatalf("clone differs from original")
	}
	c.Set(f1, 1, int32(b1))
	if c.Fingerprint() == st.Fingerprint() {
		t.Fatalf("mutating the clone changed the original's view")
	}
	if st.At(f1, 1) != Idle {
		t.Fatalf("original mutated through clone")
	}
	if got := c.Produced(p.RoleOf(f1), b1); got != 40 {
		t.Fatalf("clone produced = %g, want 40", got)
	}
}

func TestStateFrozenSlotPanics(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	st.SetWindow(4, p.Slots())
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")

	defer func() {
		if recover() == nil {
			t.Fatalf("writing a frozen slot should panic")
		}
	}()
	st.Set(f1, 0, int32(b1))
}

func TestStateCopyFrom(t *testing.T) {
	p := testProblem(t)
	a := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	a.Set(f1, 0, int32(b1))

	b := NewState(p)
	b.CopyFrom(a)
	if b.Fingerprint() != a.Fingerprint() {
		t.Fatalf("CopyFrom should replicate the assignment")
	}
	if got := b.Produced(p.RoleOf(f1), b1); got != 20 {
		t.Fatalf("CopyFrom produced = %g, want 20", got)
	}
}
