package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// AnnealConfig tunes simulated annealing.
type AnnealConfig struct {
	// Iterations is the move budget.
	Iterations int `json:"iterations"`
	// InitialTemp is the starting temperature. Zero calibrates it from
	// the spread of sampled move deltas.
	InitialTemp float64 `json:"initial_temp"`
	// Cooling multiplies the temperature every iteration.
	Cooling float64 `json:"cooling"`
	// RestartInterval reheats on a fixed cadence, decoupling the cooling
	// schedule from the iteration count. Zero disables it.
	RestartInterval int `json:"restart_interval"`
	// ReheatFactor scales the initial temperature on every reheat.
	ReheatFactor float64 `json:"reheat_factor"`
	// StallLimit is the number of iterations without an incumbent
	// improvement before the run diversifies with a reheat.
	StallLimit int `json:"stall_limit"`
}

// SetDefaults fills unset fields with the standard tuning.
func (c *AnnealConfig) SetDefaults() {
	if c.Iterations == 0 {
		c.Iterations = 20000
	}
	if c.Cooling == 0 {
		c.Cooling = 0.995
	}
	if c.ReheatFactor == 0 {
		c.ReheatFactor = 0.5
	}
	if c.StallLimit == 0 {
		c.StallLimit = 2000
	}
}

func (c AnnealConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("anneal: iterations must be positive, got %d", c.Iterations)
	}
	if c.InitialTemp < 0 {
		return fmt.Errorf("anneal: initial_temp must not be negative, got %g", c.InitialTemp)
	}
	if c.Cooling <= 0 || c.Cooling >= 1 {
		return fmt.Errorf("anneal: cooling must lie in (0,1), got %g", c.Cooling)
	}
	if c.RestartInterval < 0 {
		return fmt.Errorf("anneal: restart_interval must not be negative, got %d", c.RestartInterval)
	}
	if c.ReheatFactor <= 0 {
		return fmt.Errorf("anneal: reheat_factor must be positive, got %g", c.ReheatFactor)
	}
	if c.StallLimit < 1 {
		return fmt.Errorf("anneal: stall_limit must be positive, got %d", c.StallLimit)
	}
	return nil
}

// Anneal is the baseline strategy: Metropolis acceptance under a geometric
// cooling schedule, with reheats instead of termination on stalls.
type Anneal struct {
	cfg AnnealConfig
}

// NewAnneal validates cfg and returns the strategy.
func NewAnneal(cfg AnnealConfig) (*Anneal, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Anneal{cfg: cfg}, nil
}

func (a *Anneal) Name() string { return "anneal" }

// calibrateTemp samples moves against the seed schedule and sets the
// starting temperature to the standard deviation of their deltas, so a
// median worsening move starts out roughly 60% acceptable.
func calibrateTemp(r *run, samples int) (float64, error) {
	deltas := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		mv, obj, err := r.propose()
		if err != nil {
			if errors.Is(err, errMoveRejected) {
				continue
			}
			return 0, err
		}
		if mv == nil {
			continue
		}
		deltas = append(deltas, obj-r.cur)
		r.drop()
	}
	if len(deltas) < 2 {
		return 1, nil
	}
	t := stat.StdDev(deltas, nil)
	if t <= 0 || math.IsNaN(t) {
		return 1, nil
	}
	return t, nil
}

func (a *Anneal) Solve(ctx context.Context, p *model.Problem, opts Options) (Result, error) {
	r, err := newRun(a.Name(), p, opts)
	if err != nil {
		return Result{}, err
	}
	cfg := a.cfg

	t0 := cfg.InitialTemp
	if t0 == 0 {
		if t0, err = calibrateTemp(r, 64); err != nil {
			return Result{}, err
		}
		r.opts.Log.Debugf("anneal: calibrated initial temperature %.4g", t0)
	}
	temp := t0
	fill := func(s *telemetry.Snapshot) { s.Temperature = temp }

	sinceImprove := 0
	for r.iter = 0; r.iter < cfg.Iterations; r.iter++ {
		if status, stop := r.halted(ctx); stop {
			return r.finish(status, fill), nil
		}
		if cfg.RestartInterval > 0 && r.iter > 0 && r.iter%cfg.RestartInterval == 0 {
			temp = t0 * cfg.ReheatFactor
		}

		mv, obj, err := r.propose()
		switch {
		case err != nil && errors.Is(err, errMoveRejected):
			mv = nil
		case err != nil:
			return Result{}, err
		}
		if mv != nil {
			delta := obj - r.cur
			if delta <= 0 || r.rng.Float64() < math.Exp(-delta/math.Max(temp, 1e-12)) {
				before := r.bestObj
				r.keep(obj)
				if r.bestObj < before-improveEps {
					sinceImprove = 0
					r.phase = PhaseExploring
				} else {
					sinceImprove++
				}
			} else {
				r.drop()
				sinceImprove++
			}
		} else {
			sinceImprove++
		}

		if sinceImprove >= cfg.StallLimit {
			// Stalls reheat and carry on; the run never exits here.
			r.phase = PhaseDiversifying
			temp = t0 * cfg.ReheatFactor
			r.restarts++
			sinceImprove = 0
			r.opts.Log.Debugf("anneal: stalled at iteration %d, reheated to %.4g", r.iter, temp)
		}

		temp *= cfg.Cooling
		if (r.iter+1)%r.opts.SnapshotEvery == 0 {
			r.emit(false, fill)
		}
	}
	return r.finish(StatusComplete, fill), nil
}
