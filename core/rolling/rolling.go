// Package rolling decomposes a long planning horizon into overlapping
// sub-horizons, solves each with a pluggable solver, and locks a leading
// window of every result into an append-only master plan. One slice's
// locked output is the next slice's boundary condition, so slices run
// strictly in sequence.
package rolling

import (
	"context"
	"fmt"
	"time"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/search"
)

// Solver produces a schedule for one sub-horizon. The search strategies
// satisfy it directly; an external exact solver plugs in through the same
// contract, consuming opts.Warm as the slice view and returning a full
// state whose editable window it respected.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *model.Problem, opts search.Options) (search.Result, error)
}

// Config shapes the decomposition. All lengths are in days.
type Config struct {
	// MasterDays is the span the master plan must cover. Zero means the
	// whole problem calendar.
	MasterDays int `json:"master_days"`
	// SubDays is the length of each sub-horizon handed to the solver.
	SubDays int `json:"sub_days"`
	// LockDays is the leading span of each solved sub-horizon frozen
	// into the master plan before advancing.
	LockDays int `json:"lock_days"`
	// Seed feeds the solver; slice i solves with Seed+i.
	Seed int64 `json:"seed"`
}

// SetDefaults fills unset fields with the standard decomposition.
func (c *Config) SetDefaults() {
	if c.SubDays == 0 {
		c.SubDays = 7
	}
	if c.LockDays == 0 {
		c.LockDays = 2
	}
}

func (c Config) Validate() error {
	if c.MasterDays < 0 {
		return fmt.Errorf("rolling: master_days must not be negative, got %d", c.MasterDays)
	}
	if c.SubDays < 1 {
		return fmt.Errorf("rolling: sub_days must be positive, got %d", c.SubDays)
	}
	if c.LockDays < 1 {
		return fmt.Errorf("rolling: lock_days must be positive, got %d", c.LockDays)
	}
	if c.LockDays > c.SubDays {
		return fmt.Errorf("rolling: lock_days %d exceeds sub_days %d", c.LockDays, c.SubDays)
	}
	return nil
}

// InfeasibleError reports the slice the orchestrator could not schedule,
// after the lock-shrink retry already failed.
type InfeasibleError struct {
	Slice   int
	Machine string
	Block   string
	Slot    int
	Reason  string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("rolling: slice %d infeasible: %s (machine %s, block %s, slot %d)",
		e.Slice, e.Reason, e.Machine, e.Block, e.Slot)
}

// SliceSummary is the per-iteration record streamed to the run log.
type SliceSummary struct {
	RunID string `json:"run_id"`
	Slice int    `json:"slice"`
	// OffsetDay is the first day of the sub-horizon.
	OffsetDay int `json:"offset_day"`
	// LockFrom and LockTo bound the locked slots, half-open.
	LockFrom int `json:"lock_from"`
	LockTo   int `json:"lock_to"`
	// Objective is the full-schedule objective after this slice.
	Objective float64 `json:"objective"`
	// Delivered is the cumulative delivered volume after this slice.
	Delivered float64 `json:"delivered"`
	// Bound is the LP relaxation on deliverable volume through LockTo's
	// sub-horizon end; GapPct the relative shortfall against it.
	Bound    float64       `json:"bound"`
	GapPct   float64       `json:"gap_pct"`
	Duration time.Duration `json:"duration"`
	// Retried marks slices that only succeeded after the lock window
	// was shrunk.
	Retried bool `json:"retried"`
}

// SummarySink persists slice summaries; infra/runlog implements it.
type SummarySink interface {
	RecordSliceSummary(SliceSummary) error
}

// Outcome is the stitched result of a full rolling run.
type Outcome struct {
	// Master is the final schedule; every slot below Covered is locked.
	Master *schedule.State
	// Plan is the flat assignment table of the master schedule.
	Plan []schedule.Row
	// Covered is the first slot not covered by any locked slice.
	Covered    int
	Objective  float64
	Components evaluate.Components
	Summaries  []SliceSummary
}

// BoundFunc computes the delivery upper bound for the first n slots.
// core/bound.Delivered satisfies it; nil disables gap reporting.
type BoundFunc func(p *model.Problem, slots int) (float64, error)
