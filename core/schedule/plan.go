package schedule

import (
	"fmt"

	"github.com/harvestplan/harvestplan/core/model"
)

// Stint is a maximal run of consecutive slots one machine spends on one
// block.
type Stint struct {
	BlockID string `json:"block_id"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// MachinePlan is a machine's timeline flattened to stints. Slots not
// covered by any stint are idle.
type MachinePlan struct {
	MachineID string  `json:"machine_id"`
	Role      string  `json:"role"`
	Stints    []Stint `json:"stints,omitempty"`
}

// Plan is the stint form of a schedule, the shape the plan command reads
// and renders alongside the flat row form. Exporting and re-importing a
// plan yields an identical schedule.
type Plan struct {
	Machines []MachinePlan `json:"machines"`
}

// ExportPlan flattens st into its exchange form, machines in fleet order
// and stints in slot order.
func ExportPlan(st *State) *Plan {
	p := st.Problem()
	plan := &Plan{Machines: make([]MachinePlan, p.NumMachines())}
	for m := 0; m < p.NumMachines(); m++ {
		mp := MachinePlan{
			MachineID: p.Machines[m].ID,
			Role:      string(p.Machines[m].Role),
		}
		var open *Stint
		for s := 0; s < st.Slots(); s++ {
			b := st.At(m, s)
			if b == Idle {
				open = nil
				continue
			}
			id := p.Blocks[b].ID
			if open != nil && open.BlockID == id && open.To == s-1 {
				open.To = s
				continue
			}
			mp.Stints = append(mp.Stints, Stint{BlockID: id, From: s, To: s})
			open = &mp.Stints[len(mp.Stints)-1]
		}
		plan.Machines[m] = mp
	}
	return plan
}

// FromPlan rebuilds a schedule from its exchange form and validates it.
// Plans that break a scheduling rule come back as an InvariantError so
// callers can report exactly which cell is at fault.
func FromPlan(p *model.Problem, plan *Plan) (*State, error) {
	st := NewState(p)
	seen := make(map[string]bool, len(plan.Machines))
	for _, mp := range plan.Machines {
		m, ok := p.MachineByID(mp.MachineID)
		if !ok {
			return nil, fmt.Errorf("plan: unknown machine %q", mp.MachineID)
		}
		if seen[mp.MachineID] {
			return nil, fmt.Errorf("plan: machine %q listed twice", mp.MachineID)
		}
		seen[mp.MachineID] = true
		for _, stint := range mp.Stints {
			b, ok := p.BlockByID(stint.BlockID)
			if !ok {
				return nil, fmt.Errorf("plan: unknown block %q", stint.BlockID)
			}
			if stint.From < 0 || stint.To >= st.Slots() || stint.From > stint.To {
				return nil, fmt.Errorf("plan: machine %q has stint [%d,%d] outside horizon",
					mp.MachineID, stint.From, stint.To)
			}
			for s := stint.From; s <= stint.To; s++ {
				if st.At(m, s) != Idle {
					return nil, fmt.Errorf("plan: machine %q assigned twice in slot %d", mp.MachineID, s)
				}
				st.Set(m, s, int32(b))
			}
		}
	}
	if err := Check(st); err != nil {
		return nil, err
	}
	st.ResetDirty()
	return st, nil
}
