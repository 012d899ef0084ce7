package schedule

import "testing"

func TestRowsRoundTrip(t *testing.T) {
	p := testProblem(t)
	st := NewGreedy(p)
	rows := Rows(st)
	if want := p.NumMachines() * p.Slots(); len(rows) != want {
		t.Fatalf("rows = %d, want %d", len(rows), want)
	}
	back, err := FromRows(p, rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if back.Fingerprint() != st.Fingerprint() {
		t.Fatalf("round trip changed the schedule")
	}
}

func TestRowsVolumeMatchesRate(t *testing.T) {
	p := testProblem(t)
	st := NewGreedy(p)
	for _, r := range Rows(st) {
		if r.Block == "" {
			if r.Volume != 0 {
				t.Fatalf("idle row carries volume %g", r.Volume)
			}
			continue
		}
		m, _ := p.MachineByID(r.Machine)
		b, _ := p.BlockByID(r.Block)
		if r.Volume != p.Rate(m, b) {
			t.Fatalf("row volume %g, want rate %g", r.Volume, p.Rate(m, b))
		}
	}
}

func TestFromRowsRejectsDoubleBooking(t *testing.T) {
	p := testProblem(t)
	rows := []Row{
		{Machine: "F1", Day: 0, Shift: 0, Block: "B1"},
		{Machine: "F1", Day: 0, Shift: 0, Block: "B2"},
	}
	if _, err := FromRows(p, rows); err == nil {
		t.Fatalf("double-booked rows accepted")
	}
}

func TestFromRowsRejectsUnknownIDs(t *testing.T) {
	p := testProblem(t)
	if _, err := FromRows(p, []Row{{Machine: "ghost", Day: 0, Shift: 0, Block: "B1"}}); err == nil {
		t.Fatalf("unknown machine accepted")
	}
	if _, err := FromRows(p, []Row{{Machine: "F1", Day: 0, Shift: 0, Block: "ghost"}}); err == nil {
		t.Fatalf("unknown block accepted")
	}
}
