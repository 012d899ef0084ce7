package schedule

import "testing"

func TestGreedySeedIsClean(t *testing.T) {
	p := testProblem(t)
	st := NewGreedy(p)
	if err := Check(st); err != nil {
		t.Fatalf("greedy seed violates invariants: %v", err)
	}
}

func TestGreedySeedCoversWork(t *testing.T) {
	p := testProblem(t)
	st := NewGreedy(p)
	// The horizon is generous, so every role of every block should get
	// its full gross assignment.
	for b := 0; b < p.NumBlocks(); b++ {
		for _, r := range p.Pipeline(b) {
			if !st.RoleExhausted(r, b) {
				t.Errorf("block %s role %s left %g short", p.Blocks[b].ID, p.RoleName(r),
					p.Blocks[b].WorkRequired-st.Produced(r, b))
			}
		}
	}
}

func TestGreedySeedDeterministic(t *testing.T) {
	p := testProblem(t)
	a := NewGreedy(p)
	b := NewGreedy(p)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("greedy seed is not deterministic")
	}
}

func TestFillRespectsWindow(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	st.SetWindow(6, p.Slots())
	Fill(st)
	for m := 0; m < p.NumMachines(); m++ {
		for s := 0; s < 6; s++ {
			if st.At(m, s) != Idle {
				t.Fatalf("Fill wrote into frozen slot %d", s)
			}
		}
	}
	if err := Check(st); err != nil {
		t.Fatalf("windowed fill violates invariants: %v", err)
	}
}

func TestFillExtendsExistingAssignments(t *testing.T) {
	p := testProblem(t)
	st := NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	st.Set(f1, 0, int32(b1))
	st.SetWindow(1, p.Slots())

	Fill(st)
	if st.At(f1, 0) != int32(b1) {
		t.Fatalf("Fill must not rewrite locked cells")
	}
	if err := Check(st); err != nil {
		t.Fatalf("extended schedule violates invariants: %v", err)
	}
	fell := p.RoleOf(f1)
	if !st.RoleExhausted(fell, b1) {
		t.Errorf("felling on B1 left unfinished: %g of %g",
			st.Produced(fell, b1), p.Blocks[b1].WorkRequired)
	}
}
