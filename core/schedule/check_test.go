package schedule

import (
	"errors"
	"testing"
)

func scanAll(st *State) []Violation {
	var vs []Violation
	NewScanner(st.Problem()).Scan(st, func(v Violation) { vs = append(vs, v) })
	return vs
}

func hasKind(vs []Violation, k ViolationKind) bool {
	for _, v := range vs {
		if v.Kind == k {
			return true
		}
	}
	return false
}

func TestCheckCleanSchedule(t *testing.T) {
	p := testProblem(t)
	if err := Check(NewState(p)); err != nil {
		t.Fatalf("empty schedule should be clean: %v", err)
	}
}

func TestCheckWindowViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b2, _ := p.BlockByID("B2") // window opens at slot 4
	st.Set(f1, 0, int32(b2))

	if !hasKind(scanAll(st), KindWindow) {
		t.Fatalf("expected a window violation")
	}
	var inv *InvariantError
	if err := Check(st); !errors.As(err, &inv) {
		t.Fatalf("Check returned %v, want InvariantError", err)
	} else if inv.Block != "B2" || inv.Slot != 0 {
		t.Fatalf("InvariantError = %+v, want block B2 slot 0", inv)
	}
}

func TestCheckAvailabilityViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f2, _ := p.MachineByID("F2") // off in slot 3
	b1, _ := p.BlockByID("B1")
	st.Set(f2, 3, int32(b1))

	if !hasKind(scanAll(st), KindAvailability) {
		t.Fatalf("expected an availability violation")
	}
}

func TestCheckIncompatibleViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	x1, _ := p.MachineByID("X1") // zero rate on B2
	b2, _ := p.BlockByID("B2")
	st.Set(x1, 5, int32(b2))

	if !hasKind(scanAll(st), KindIncompatible) {
		t.Fatalf("expected an incompatibility violation")
	}
}

func TestCheckMultiplicityViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	f2, _ := p.MachineByID("F2")
	b1, _ := p.BlockByID("B1")
	st.Set(f1, 0, int32(b1))
	st.Set(f2, 0, int32(b1))

	if !hasKind(scanAll(st), KindMultiplicity) {
		t.Fatalf("two fellers on one block in one slot should violate multiplicity")
	}
}

func TestCheckAbandonViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	// One felling slot covers 20 of B1's 120; leaving for B2 abandons it.
	st.Set(f1, 0, int32(b1))
	st.Set(f1, 5, int32(b2))

	vs := scanAll(st)
	if !hasKind(vs, KindAbandon) {
		t.Fatalf("expected an abandon violation, got %v", vs)
	}
}

func TestCheckAbandonAllowedAfterExhaustion(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	// Six slots at rate 20 exhaust B1's felling work, so moving on is fine.
	for s := 0; s < 6; s++ {
		st.Set(f1, s, int32(b1))
	}
	st.Set(f1, 6, int32(b2))

	if hasKind(scanAll(st), KindAbandon) {
		t.Fatalf("leaving an exhausted block should be legal")
	}
}

func TestCheckEarlyStartViolation(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	// Extraction needs one felling shift staged; nothing is.
	st.Set(x1, 0, int32(b1))

	if !hasKind(scanAll(st), KindEarlyStart) {
		t.Fatalf("expected an early start violation")
	}
}

func TestCheckEarlyStartSatisfiedByBuffer(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	// One felling slot stages 20, above the 18 the buffer demands.
	st.Set(f1, 0, int32(b1))
	st.Set(x1, 1, int32(b1))

	vs := scanAll(st)
	if hasKind(vs, KindEarlyStart) {
		t.Fatalf("buffered start should be legal, got %v", vs)
	}
}

func TestCheckSameSlotStagingDoesNotCount(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	x1, _ := p.MachineByID("X1")
	b1, _ := p.BlockByID("B1")
	// Felling in the same slot must not satisfy the extraction buffer.
	st.Set(f1, 0, int32(b1))
	st.Set(x1, 0, int32(b1))

	if !hasKind(scanAll(st), KindEarlyStart) {
		t.Fatalf("same-slot production should not satisfy the buffer")
	}
}

func TestViolationKindStrings(t *testing.T) {
	kinds := []ViolationKind{KindWindow, KindAvailability, KindIncompatible,
		KindMultiplicity, KindAbandon, KindEarlyStart}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		if s == "" || seen[s] {
			t.Fatalf("kind %d has empty or duplicate string %q", k, s)
		}
		seen[s] = true
	}
	if !KindAbandon.Sequencing() || KindWindow.Sequencing() {
		t.Fatalf("sequencing classification wrong")
	}
}
