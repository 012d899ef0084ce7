package search

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/logger"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/operator"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

const improveEps = 1e-9

// run is the state every strategy shares: one schedule, its tracker, the
// move pool and the incumbent. Strategies drive it single-threaded; nothing
// here suspends.
type run struct {
	name string
	p    *model.Problem
	opts Options

	rng     *rand.Rand
	pool    *operator.Pool
	eval    *evaluate.Evaluator
	rep     *evaluate.Repairer
	tracker *evaluate.Tracker

	st   *schedule.State
	cur  float64
	curC evaluate.Components

	best    *schedule.State
	bestObj float64

	iter     int
	restarts int
	phase    string
	traj     []float64
	started  time.Time
}

func newRun(name string, p *model.Problem, opts Options) (*run, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = 100
	}
	if opts.Log == nil {
		opts.Log = logger.NopLogger{}
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	pool, err := operator.NewPool(p, opts.Operators, rng)
	if err != nil {
		return nil, err
	}

	var st *schedule.State
	if opts.Warm != nil {
		st = opts.Warm.Clone()
	} else {
		st = schedule.NewGreedy(p)
	}
	eval := evaluate.New(p, opts.Weights)
	r := &run{
		name:    name,
		p:       p,
		opts:    opts,
		rng:     rng,
		pool:    pool,
		eval:    eval,
		rep:     evaluate.NewRepairer(p),
		st:      st,
		phase:   PhaseExploring,
		started: time.Now(),
	}
	r.tracker = eval.NewTracker(st)
	r.cur, r.curC = r.tracker.Current()
	r.best = st.Clone()
	r.bestObj = r.cur
	return r, nil
}

// halted checks the cancellation flag and the wall-clock budget. Strategies
// call it at every iteration boundary.
func (r *run) halted(ctx context.Context) (Status, bool) {
	if ctx.Err() != nil {
		return StatusCancelled, true
	}
	if r.opts.Budget > 0 && time.Since(r.started) >= r.opts.Budget {
		return StatusBudget, true
	}
	return "", false
}

// propose samples one move, applies and repairs it and rescores. On success
// the journal scope stays open: the caller decides with keep or drop. A nil
// move means the neighbourhood yielded nothing this try.
func (r *run) propose() (*operator.Move, float64, error) {
	mv := r.pool.Sample(r.st)
	if mv == nil {
		return nil, 0, nil
	}
	obj, err := r.applyMove(mv)
	if err != nil {
		return nil, 0, err
	}
	return mv, obj, nil
}

// applyMove opens a journal scope, writes mv and normalises the result.
// Moves the repairer cannot normalise are rolled back and reported as a nil
// error with the journal closed; the caller just samples again.
func (r *run) applyMove(mv *operator.Move) (float64, error) {
	r.st.Begin()
	mv.Apply(r.st)
	if err := r.rep.Repair(r.st); err != nil {
		var inv *schedule.InvariantError
		if errors.As(err, &inv) {
			return 0, err
		}
		r.drop()
		return 0, errMoveRejected
	}
	obj, _ := r.tracker.Rescore(r.st)
	return obj, nil
}

var errMoveRejected = errors.New("search: move rejected by repair")

// keep commits the open journal scope and adopts obj as the current
// objective, promoting the incumbent when it improves.
func (r *run) keep(obj float64) {
	r.st.Commit()
	r.cur = obj
	_, r.curC = r.tracker.Current()
	if obj < r.bestObj-improveEps {
		r.bestObj = obj
		r.best.CopyFrom(r.st)
	}
}

// drop rolls the open journal scope back and restores the tracker caches.
func (r *run) drop() {
	r.st.Rollback()
	r.tracker.Rescore(r.st)
}

// emit publishes a snapshot and extends the trajectory. fill adds the
// strategy internals.
func (r *run) emit(final bool, fill func(*telemetry.Snapshot)) {
	r.traj = append(r.traj, r.cur)
	if r.opts.Emitter == nil {
		return
	}
	s := telemetry.Snapshot{
		RunID:     r.opts.RunID,
		Strategy:  r.name,
		Worker:    r.opts.Worker,
		Phase:     r.phase,
		Iteration: r.iter,
		Objective: r.cur,
		Best:      r.bestObj,
		Elapsed:   time.Since(r.started),
		Restarts:  r.restarts,
		Final:     final,
	}
	if fill != nil {
		fill(&s)
	}
	r.opts.Emitter.Publish(s)
}

// finish emits the flush snapshot and assembles the result. Components are
// recomputed from scratch on the incumbent so the result carries the full
// diagnostic set, violation count included.
func (r *run) finish(status Status, fill func(*telemetry.Snapshot)) Result {
	r.phase = PhaseTerminated
	r.emit(true, fill)
	obj, comps := r.eval.Score(r.best)
	return Result{
		Best:       r.best,
		Objective:  obj,
		Components: comps,
		Trajectory: r.traj,
		Iterations: r.iter,
		Restarts:   r.restarts,
		Status:     status,
		Duration:   time.Since(r.started),
		Worker:     r.opts.Worker,
	}
}
