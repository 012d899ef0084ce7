package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/operator"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// TabuConfig tunes tabu search.
type TabuConfig struct {
	// Iterations is the move budget.
	Iterations int `json:"iterations"`
	// Tenure is how many iterations a reversed move stays forbidden.
	Tenure int `json:"tenure"`
	// BatchNeighbours is the number of candidates scored per iteration.
	BatchNeighbours int `json:"batch_neighbours"`
	// StallLimit is the number of iterations without an incumbent
	// improvement before the tabu list is cleared.
	StallLimit int `json:"stall_limit"`
}

// SetDefaults fills unset fields with the standard tuning.
func (c *TabuConfig) SetDefaults() {
	if c.Iterations == 0 {
		c.Iterations = 5000
	}
	if c.Tenure == 0 {
		c.Tenure = 40
	}
	if c.BatchNeighbours == 0 {
		c.BatchNeighbours = 16
	}
	if c.StallLimit == 0 {
		c.StallLimit = 500
	}
}

func (c TabuConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("tabu: iterations must be positive, got %d", c.Iterations)
	}
	if c.Tenure < 1 {
		return fmt.Errorf("tabu: tenure must be positive, got %d", c.Tenure)
	}
	if c.BatchNeighbours < 1 {
		return fmt.Errorf("tabu: batch_neighbours must be positive, got %d", c.BatchNeighbours)
	}
	if c.StallLimit < 1 {
		return fmt.Errorf("tabu: stall_limit must be positive, got %d", c.StallLimit)
	}
	return nil
}

// Tabu always takes the best non-forbidden neighbour, remembers the reverse
// of every step for Tenure iterations, and admits a forbidden step only when
// it beats the best schedule seen so far. A stall clears the list and the
// search continues; it never terminates on a stall.
type Tabu struct {
	cfg TabuConfig
}

// NewTabu validates cfg and returns the strategy.
func NewTabu(cfg TabuConfig) (*Tabu, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tabu{cfg: cfg}, nil
}

func (t *Tabu) Name() string { return "tabu" }

func (t *Tabu) Solve(ctx context.Context, p *model.Problem, opts Options) (Result, error) {
	r, err := newRun(t.Name(), p, opts)
	if err != nil {
		return Result{}, err
	}
	cfg := t.cfg

	// tabu maps a move key to the iteration its ban expires.
	tabu := make(map[uint64]int, cfg.Tenure)
	fill := func(s *telemetry.Snapshot) { s.TabuLen = len(tabu) }

	sinceImprove := 0
	for r.iter = 0; r.iter < cfg.Iterations; r.iter++ {
		if status, stop := r.halted(ctx); stop {
			return r.finish(status, fill), nil
		}

		var bestMv *operator.Move
		bestObj := 0.0
		for n := 0; n < cfg.BatchNeighbours; n++ {
			mv := r.pool.Sample(r.st)
			if mv == nil {
				continue
			}
			obj, err := r.applyMove(mv)
			if err != nil {
				if errors.Is(err, errMoveRejected) {
					continue
				}
				return Result{}, err
			}
			r.drop()
			if exp, banned := tabu[mv.Key()]; banned {
				if exp <= r.iter {
					delete(tabu, mv.Key())
				} else if obj >= r.bestObj-improveEps {
					// Aspiration: a banned move is admitted only
					// when it beats the best schedule seen so far.
					continue
				}
			}
			if bestMv == nil || obj < bestObj {
				bestMv, bestObj = mv, obj
			}
		}

		if bestMv != nil {
			obj, err := r.applyMove(bestMv)
			if err != nil {
				// The same move normalised a moment ago; any failure
				// now is a defect.
				return Result{}, err
			}
			before := r.bestObj
			r.keep(obj)
			tabu[bestMv.InverseKey()] = r.iter + cfg.Tenure
			if r.bestObj < before-improveEps {
				sinceImprove = 0
				r.phase = PhaseExploring
			} else {
				sinceImprove++
			}
		} else {
			sinceImprove++
		}

		if sinceImprove >= cfg.StallLimit {
			// Escape and continue: forget the list, count the restart
			// and keep exploring from the current schedule.
			r.phase = PhaseDiversifying
			for k := range tabu {
				delete(tabu, k)
			}
			r.restarts++
			sinceImprove = 0
			r.opts.Log.Debugf("tabu: stalled at iteration %d, cleared tenure list", r.iter)
		}

		if (r.iter+1)%r.opts.SnapshotEvery == 0 {
			r.emit(false, fill)
		}
	}
	return r.finish(StatusComplete, fill), nil
}
