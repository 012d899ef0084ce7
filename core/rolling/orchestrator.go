package rolling

import (
	"context"
	"errors"
	"fmt"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/logger"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/search"
)

// Orchestrator drives slice / solve / lock / advance until the master
// horizon is covered. It is strictly sequential: slice N's locked output is
// a hard input to slice N+1.
type Orchestrator struct {
	p      *model.Problem
	cfg    Config
	solver Solver
	opts   search.Options
	bound  BoundFunc
	sink   SummarySink
	log    logger.Logger
}

// New builds an orchestrator. opts carries the shared solver inputs; Warm
// and Worker are managed per slice and must be unset. bound and sink may be
// nil.
func New(p *model.Problem, cfg Config, solver Solver, opts search.Options, bound BoundFunc, sink SummarySink, log logger.Logger) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, fmt.Errorf("rolling: no solver")
	}
	if opts.Warm != nil {
		return nil, fmt.Errorf("rolling: opts.Warm is managed per slice")
	}
	if cfg.MasterDays == 0 || cfg.MasterDays > p.Calendar.Days {
		cfg.MasterDays = p.Calendar.Days
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Orchestrator{p: p, cfg: cfg, solver: solver, opts: opts, bound: bound, sink: sink, log: log}, nil
}

// Run executes the decomposition. It returns the partial outcome alongside
// the error when a slice proves infeasible, so callers can inspect what was
// locked before the abort.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	spd := o.p.Calendar.ShiftsPerDay
	masterSlots := o.cfg.MasterDays * spd
	eval := evaluate.New(o.p, o.opts.Weights)

	master := schedule.NewState(o.p)
	out := &Outcome{Summaries: []SliceSummary{}}

	for slice, offsetDay := 0, 0; ; slice++ {
		lockFrom := offsetDay * spd
		if lockFrom >= masterSlots {
			break // master horizon covered
		}
		if err := ctx.Err(); err != nil {
			return o.seal(out, master, eval), err
		}

		// Slicing: the editable window is the sub-horizon; everything
		// before it stays frozen as boundary conditions.
		hi := (offsetDay + o.cfg.SubDays) * spd
		if hi > o.p.Slots() {
			hi = o.p.Slots()
		}
		master.SetWindow(lockFrom, hi)
		schedule.Fill(master)

		lockDays := o.cfg.LockDays
		res, retried, err := o.solveSlice(ctx, slice, master)
		if err != nil {
			var inv *schedule.InvariantError
			if errors.As(err, &inv) {
				// Infeasible even after the shrink retry: abort
				// with the failing entity, keeping what is locked.
				o.seal(out, master, eval)
				return out, &InfeasibleError{
					Slice:   slice,
					Machine: inv.Machine,
					Block:   inv.Block,
					Slot:    inv.Slot,
					Reason:  inv.Reason,
				}
			}
			return o.seal(out, master, eval), err
		}
		if retried {
			lockDays = (lockDays + 1) / 2
		}

		// Locking: adopt the solved slice and freeze its leading span.
		master = res.Best
		lockTo := lockFrom + lockDays*spd
		if lockTo > hi {
			lockTo = hi
		}
		master.SetWindow(lockTo, hi)

		summary := o.summarize(slice, offsetDay, lockFrom, lockTo, hi, res, retried, eval, master)
		out.Summaries = append(out.Summaries, summary)
		if o.sink != nil {
			if err := o.sink.RecordSliceSummary(summary); err != nil {
				o.log.Warnf("rolling: summary sink: %v", err)
			}
		}
		o.log.Infof("rolling: slice %d locked slots [%d,%d) objective %.2f", slice, lockFrom, lockTo, summary.Objective)

		// Advancing.
		out.Covered = lockTo
		if lockTo >= o.p.Slots() {
			break // calendar exhausted
		}
		offsetDay += lockDays
	}
	return o.seal(out, master, eval), nil
}

// solveSlice runs the solver on the current window, validating the result.
// An invalid slice is retried once, with a fresh seed and the lock window
// halved for this iteration, before the error escapes to the caller.
func (o *Orchestrator) solveSlice(ctx context.Context, slice int, master *schedule.State) (search.Result, bool, error) {
	res, err := o.trySolve(ctx, slice, 0, master)
	if err == nil {
		return res, false, nil
	}
	var inv *schedule.InvariantError
	if !errors.As(err, &inv) {
		return search.Result{}, false, err
	}
	o.log.Warnf("rolling: slice %d infeasible (%v), retrying with shrunk lock window", slice, err)
	res, err = o.trySolve(ctx, slice, 1, master)
	if err != nil {
		return search.Result{}, true, err
	}
	return res, true, nil
}

func (o *Orchestrator) trySolve(ctx context.Context, slice, attempt int, master *schedule.State) (search.Result, error) {
	opts := o.opts
	opts.Seed = o.cfg.Seed + int64(slice) + int64(attempt)*9973
	opts.Warm = master
	res, err := o.solver.Solve(ctx, o.p, opts)
	if err != nil {
		return search.Result{}, err
	}
	if res.Best == nil {
		return search.Result{}, fmt.Errorf("rolling: solver %q returned no schedule", o.solver.Name())
	}
	if err := schedule.Check(res.Best); err != nil {
		return search.Result{}, err
	}
	return res, nil
}

func (o *Orchestrator) summarize(slice, offsetDay, lockFrom, lockTo, hi int, res search.Result, retried bool, eval *evaluate.Evaluator, master *schedule.State) SliceSummary {
	obj, comps := eval.Score(master)
	s := SliceSummary{
		RunID:     o.opts.RunID,
		Slice:     slice,
		OffsetDay: offsetDay,
		LockFrom:  lockFrom,
		LockTo:    lockTo,
		Objective: obj,
		Delivered: comps.DeliveredVolume,
		Duration:  res.Duration,
		Retried:   retried,
	}
	if o.bound != nil {
		if ub, err := o.bound(o.p, hi); err != nil {
			o.log.Warnf("rolling: bound for slice %d: %v", slice, err)
		} else {
			s.Bound = ub
			if ub > 0 {
				s.GapPct = 100 * (ub - comps.DeliveredVolume) / ub
			}
		}
	}
	return s
}

// seal finishes the outcome: locks the master for good, prices it and
// flattens the plan.
func (o *Orchestrator) seal(out *Outcome, master *schedule.State, eval *evaluate.Evaluator) *Outcome {
	master.SetWindow(out.Covered, out.Covered)
	out.Master = master
	out.Objective, out.Components = eval.Score(master)
	out.Plan = schedule.Rows(master)
	return out
}
