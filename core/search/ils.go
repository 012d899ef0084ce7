package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// ILSConfig tunes iterated local search.
type ILSConfig struct {
	// Iterations is the number of perturb-and-descend cycles.
	Iterations int `json:"iterations"`
	// PerturbationStrength is the number of random moves each
	// perturbation applies.
	PerturbationStrength int `json:"perturbation_strength"`
	// Tolerance admits candidates this much worse than the incumbent.
	Tolerance float64 `json:"tolerance"`
	// StallLimit bounds consecutive non-improving samples in a descent.
	StallLimit int `json:"stall_limit"`
}

// SetDefaults fills unset fields with the standard tuning.
func (c *ILSConfig) SetDefaults() {
	if c.Iterations == 0 {
		c.Iterations = 200
	}
	if c.PerturbationStrength == 0 {
		c.PerturbationStrength = 4
	}
	if c.StallLimit == 0 {
		c.StallLimit = 150
	}
}

func (c ILSConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("ils: iterations must be positive, got %d", c.Iterations)
	}
	if c.PerturbationStrength < 1 {
		return fmt.Errorf("ils: perturbation_strength must be positive, got %d", c.PerturbationStrength)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("ils: tolerance must not be negative, got %g", c.Tolerance)
	}
	if c.StallLimit < 1 {
		return fmt.Errorf("ils: stall_limit must be positive, got %d", c.StallLimit)
	}
	return nil
}

// ILS alternates perturbation and steepest descent around an incumbent.
// Rejected cycles double the next perturbation for one cycle, then the
// strength resets.
type ILS struct {
	cfg ILSConfig
}

// NewILS validates cfg and returns the strategy.
func NewILS(cfg ILSConfig) (*ILS, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ILS{cfg: cfg}, nil
}

func (s *ILS) Name() string { return "ils" }

// descend applies improving moves until StallLimit consecutive samples fail
// to improve the current schedule, or the run is halted.
func (s *ILS) descend(ctx context.Context, r *run) (Status, bool, error) {
	stalled := 0
	for stalled < s.cfg.StallLimit {
		if status, stop := r.halted(ctx); stop {
			return status, true, nil
		}
		mv, obj, err := r.propose()
		if err != nil {
			if errors.Is(err, errMoveRejected) {
				stalled++
				continue
			}
			return "", false, err
		}
		if mv == nil {
			stalled++
			continue
		}
		if obj < r.cur-improveEps {
			r.keep(obj)
			stalled = 0
		} else {
			r.drop()
			stalled++
		}
	}
	return "", false, nil
}

// perturb commits strength random moves regardless of their effect on the
// objective.
func (s *ILS) perturb(r *run, strength int) error {
	for done, tries := 0, 0; done < strength && tries < strength*8; tries++ {
		mv, obj, err := r.propose()
		if err != nil {
			if errors.Is(err, errMoveRejected) {
				continue
			}
			return err
		}
		if mv == nil {
			continue
		}
		r.keep(obj)
		done++
	}
	return nil
}

func (s *ILS) Solve(ctx context.Context, p *model.Problem, opts Options) (Result, error) {
	r, err := newRun(s.Name(), p, opts)
	if err != nil {
		return Result{}, err
	}
	cfg := s.cfg

	strength := cfg.PerturbationStrength
	fill := func(snap *telemetry.Snapshot) { snap.Perturbation = strength }

	// Settle the greedy seed into its local optimum first.
	if status, stop, err := s.descend(ctx, r); err != nil {
		return Result{}, err
	} else if stop {
		return r.finish(status, fill), nil
	}
	incumbent := r.st.Clone()
	incObj := r.cur

	for r.iter = 0; r.iter < cfg.Iterations; r.iter++ {
		if status, stop := r.halted(ctx); stop {
			return r.finish(status, fill), nil
		}
		if err := s.perturb(r, strength); err != nil {
			return Result{}, err
		}
		if status, stop, err := s.descend(ctx, r); err != nil {
			return Result{}, err
		} else if stop {
			return r.finish(status, fill), nil
		}

		if r.cur <= incObj+cfg.Tolerance {
			incumbent.CopyFrom(r.st)
			incObj = r.cur
			strength = cfg.PerturbationStrength
			r.phase = PhaseExploring
		} else {
			// Restart the next cycle from the incumbent with a
			// harder kick, then fall back to the base strength.
			restore(r, incumbent, incObj)
			if strength == cfg.PerturbationStrength {
				r.phase = PhaseDiversifying
				strength = 2 * cfg.PerturbationStrength
				r.restarts++
			} else {
				strength = cfg.PerturbationStrength
				r.phase = PhaseExploring
			}
		}
		r.emit(false, fill)
	}
	return r.finish(StatusComplete, fill), nil
}

// restore rewinds the working schedule to the incumbent.
func restore(r *run, incumbent *schedule.State, obj float64) {
	r.st.CopyFrom(incumbent)
	r.tracker.Rescore(r.st)
	r.cur = obj
	_, r.curC = r.tracker.Current()
}
