// Package scenario loads YAML-defined planning instances, the input
// format shared by the CLI and the regression fixtures.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harvestplan/harvestplan/core/model"
)

type CalendarDef struct {
	Days         int `yaml:"days"`
	ShiftsPerDay int `yaml:"shifts_per_day"`
}

type SystemDef struct {
	ID           string             `yaml:"id"`
	Roles        []string           `yaml:"roles"`
	Multiplicity map[string]int     `yaml:"multiplicity,omitempty"`
	BufferShifts map[string]float64 `yaml:"buffer_shifts,omitempty"`
	LoaderBatch  float64            `yaml:"loader_batch,omitempty"`
}

func (s SystemDef) ToModel() model.HarvestSystem {
	sys := model.HarvestSystem{ID: s.ID, LoaderBatch: s.LoaderBatch}
	for _, r := range s.Roles {
		sys.Roles = append(sys.Roles, model.Role(r))
	}
	if len(s.Multiplicity) > 0 {
		sys.Multiplicity = make(map[model.Role]int, len(s.Multiplicity))
		for r, m := range s.Multiplicity {
			sys.Multiplicity[model.Role(r)] = m
		}
	}
	if len(s.BufferShifts) > 0 {
		sys.BufferShifts = make(map[model.Role]float64, len(s.BufferShifts))
		for r, b := range s.BufferShifts {
			sys.BufferShifts[model.Role(r)] = b
		}
	}
	return sys
}

type LandingDef struct {
	ID              string  `yaml:"id"`
	CapacityPerSlot float64 `yaml:"capacity_per_slot"`
}

type BlockDef struct {
	ID            string             `yaml:"id"`
	WorkRequired  float64            `yaml:"work_required"`
	EarliestStart int                `yaml:"earliest_start"`
	LatestFinish  int                `yaml:"latest_finish"`
	Landing       string             `yaml:"landing"`
	System        string             `yaml:"system"`
	Stand         map[string]float64 `yaml:"stand,omitempty"`
	// BufferOverride replaces the system head-start buffer per role for
	// this block only.
	BufferOverride map[string]float64 `yaml:"buffer_override,omitempty"`
}

func (b BlockDef) ToModel() model.Block {
	blk := model.Block{
		ID:            b.ID,
		WorkRequired:  b.WorkRequired,
		EarliestStart: b.EarliestStart,
		LatestFinish:  b.LatestFinish,
		LandingID:     b.Landing,
		SystemID:      b.System,
		Stand:         b.Stand,
	}
	if len(b.BufferOverride) > 0 {
		blk.BufferOverride = make(map[model.Role]float64, len(b.BufferOverride))
		for r, v := range b.BufferOverride {
			blk.BufferOverride[model.Role(r)] = v
		}
	}
	return blk
}

type MachineDef struct {
	ID             string  `yaml:"id"`
	Role           string  `yaml:"role"`
	OffSlots       []int   `yaml:"off_slots,omitempty"`
	WalkThresholdM float64 `yaml:"walk_threshold_m"`
	WalkCostPerM   float64 `yaml:"walk_cost_per_m"`
	SetupCost      float64 `yaml:"setup_cost"`
	StartLanding   string  `yaml:"start_landing,omitempty"`
}

func (m MachineDef) ToModel() model.Machine {
	return model.Machine{
		ID:             m.ID,
		Role:           model.Role(m.Role),
		OffSlots:       m.OffSlots,
		WalkThresholdM: m.WalkThresholdM,
		WalkCostPerM:   m.WalkCostPerM,
		SetupCost:      m.SetupCost,
		StartLandingID: m.StartLanding,
	}
}

type RatesDef struct {
	Default   float64                       `yaml:"default"`
	Overrides map[string]map[string]float64 `yaml:"overrides,omitempty"`
}

// Expected bounds the outcome every strategy must reach on the scenario.
type Expected struct {
	// MaxLeftover caps the unfinished volume in the best schedule.
	MaxLeftover float64 `yaml:"max_leftover"`
	// MinDelivered floors the volume reaching the landings.
	MinDelivered float64 `yaml:"min_delivered"`
}

type Scenario struct {
	Name        string                        `yaml:"name"`
	Description string                        `yaml:"description,omitempty"`
	Calendar    CalendarDef                   `yaml:"calendar"`
	Systems     []SystemDef                   `yaml:"systems"`
	Landings    []LandingDef                  `yaml:"landings"`
	Blocks      []BlockDef                    `yaml:"blocks"`
	Machines    []MachineDef                  `yaml:"machines"`
	Distances   map[string]map[string]float64 `yaml:"distances,omitempty"`
	Rates       RatesDef                      `yaml:"rates"`
	Expected    Expected                      `yaml:"expected"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ToProblem resolves the scenario into a validated problem instance.
func (sc *Scenario) ToProblem() (*model.Problem, error) {
	in := model.ProblemInput{
		Calendar:  model.Calendar{Days: sc.Calendar.Days, ShiftsPerDay: sc.Calendar.ShiftsPerDay},
		Distances: sc.Distances,
		Rates:     model.TableRates{Default: sc.Rates.Default, Rates: sc.Rates.Overrides},
	}
	for _, s := range sc.Systems {
		in.Systems = append(in.Systems, s.ToModel())
	}
	for _, l := range sc.Landings {
		in.Landings = append(in.Landings, model.Landing{ID: l.ID, CapacityPerSlot: l.CapacityPerSlot})
	}
	for _, b := range sc.Blocks {
		in.Blocks = append(in.Blocks, b.ToModel())
	}
	for _, m := range sc.Machines {
		in.Machines = append(in.Machines, m.ToModel())
	}
	p, err := model.NewProblem(in)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return p, nil
}
