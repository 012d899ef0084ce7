package evaluate

import (
	"errors"
	"testing"

	"github.com/harvestplan/harvestplan/core/schedule"
)

func TestRepairCleanScheduleIsNoop(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewGreedy(p)
	before := st.Fingerprint()
	if err := rep.Repair(st); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if st.Fingerprint() != before {
		t.Fatalf("repair changed a clean schedule")
	}
}

func TestRepairContinuesAbandonedBlock(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	st.Set(f1, 0, int32(b1))
	st.Set(f1, 5, int32(b2)) // abandons B1 at 20 of 120

	if err := rep.Repair(st); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if err := schedule.Check(st); err != nil {
		t.Fatalf("repaired schedule still invalid: %v", err)
	}
	fell := p.RoleOf(f1)
	if !st.RoleExhausted(fell, b1) {
		t.Fatalf("finish-first policy should complete B1, produced %g", st.Produced(fell, b1))
	}
	if st.At(f1, 5) != int32(b1) {
		t.Fatalf("slot 5 should continue B1, got %d", st.At(f1, 5))
	}
}

func TestRepairIdlesHopelessEarlyStart(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewState(p)
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	st.Set(x1, 0, int32(b1)) // nothing felled, buffer never stageable

	if err := rep.Repair(st); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if st.At(x1, 0) != schedule.Idle {
		t.Fatalf("premature extraction should be idled")
	}
	if err := schedule.Check(st); err != nil {
		t.Fatalf("repaired schedule still invalid: %v", err)
	}
}

func TestRepairDelaysStartToBufferSlot(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewState(p)
	f1, _ := p.MachineByID("F1")
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	for s := 0; s < 3; s++ {
		st.Set(f1, s, int32(b1))
	}
	st.Set(x1, 0, int32(b1)) // too early: buffer staged only after slot 0
	st.Set(x1, 1, int32(b1))

	if err := rep.Repair(st); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if st.At(x1, 0) != schedule.Idle {
		t.Fatalf("slot 0 extraction should be idled")
	}
	if st.At(x1, 1) != int32(b1) {
		t.Fatalf("slot 1 extraction is buffered and should survive")
	}
}

func TestRepairStructuralViolationIsFatal(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewState(p)
	f1, _ := p.MachineByID("F1")
	b2, _ := p.BlockByID("B2") // window opens at slot 4
	st.Set(f1, 0, int32(b2))

	err := rep.Repair(st)
	var inv *schedule.InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("Repair returned %v, want InvariantError", err)
	}
}

func TestRepairReportsUnrepairableFrozenCells(t *testing.T) {
	p := evalProblem(t)
	rep := NewRepairer(p)
	st := schedule.NewState(p)
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	st.Set(x1, 0, int32(b1))
	st.SetWindow(1, p.Slots()) // the premature cell is now locked

	if err := rep.Repair(st); !errors.Is(err, ErrUnrepairable) {
		t.Fatalf("Repair returned %v, want ErrUnrepairable", err)
	}
}
