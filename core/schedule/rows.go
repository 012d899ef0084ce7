package schedule

import (
	"fmt"

	"github.com/harvestplan/harvestplan/core/model"
)

// Row is one line of the flat assignment table: what a machine does in one
// shift slot and the gross volume that earns. An empty Block means idle.
// The table's shape is identical whichever strategy produced the schedule.
type Row struct {
	Machine string  `json:"machine"`
	Day     int     `json:"day"`
	Shift   int     `json:"shift"`
	Block   string  `json:"block"`
	Volume  float64 `json:"volume"`
}

// Rows flattens st into the assignment table, machines in fleet order and
// slots ascending, one row per machine and slot.
func Rows(st *State) []Row {
	p := st.Problem()
	cal := p.Calendar
	rows := make([]Row, 0, p.NumMachines()*st.Slots())
	for m := 0; m < p.NumMachines(); m++ {
		for s := 0; s < st.Slots(); s++ {
			r := Row{
				Machine: p.Machines[m].ID,
				Day:     cal.Day(s),
				Shift:   cal.Shift(s),
			}
			if b := st.At(m, s); b != Idle {
				r.Block = p.Blocks[b].ID
				r.Volume = p.Rate(m, int(b))
			}
			rows = append(rows, r)
		}
	}
	return rows
}

// FromRows rebuilds a schedule from the flat table and validates it, the
// warm-start path for prior heuristic or solver output. Idle rows may be
// omitted.
func FromRows(p *model.Problem, rows []Row) (*State, error) {
	st := NewState(p)
	for i, r := range rows {
		if r.Block == "" {
			continue
		}
		m, ok := p.MachineByID(r.Machine)
		if !ok {
			return nil, fmt.Errorf("rows: row %d names unknown machine %q", i, r.Machine)
		}
		b, ok := p.BlockByID(r.Block)
		if !ok {
			return nil, fmt.Errorf("rows: row %d names unknown block %q", i, r.Block)
		}
		if r.Day < 0 || r.Day >= p.Calendar.Days || r.Shift < 0 || r.Shift >= p.Calendar.ShiftsPerDay {
			return nil, fmt.Errorf("rows: row %d slot day=%d shift=%d outside calendar", i, r.Day, r.Shift)
		}
		s := r.Day*p.Calendar.ShiftsPerDay + r.Shift
		if st.At(m, s) != Idle {
			return nil, fmt.Errorf("rows: machine %q assigned twice in day %d shift %d", r.Machine, r.Day, r.Shift)
		}
		st.Set(m, s, int32(b))
	}
	if err := Check(st); err != nil {
		return nil, err
	}
	st.ResetDirty()
	return st, nil
}
