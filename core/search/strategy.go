// Package search holds the local-search strategies that improve harvest
// schedules: simulated annealing, iterated local search and tabu search.
// All three share the same move/repair/rescore loop and the same result
// contract, so the rolling orchestrator and the CLI can swap them freely.
package search

import (
	"context"
	"time"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/logger"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/operator"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// Phase names the state the shared search state machine is in. Strategies
// report it in snapshots; Terminated is only ever reached through budget
// exhaustion or cancellation, never through a stall.
const (
	PhaseExploring    = "exploring"
	PhaseStalled      = "stalled"
	PhaseDiversifying = "diversifying"
	PhaseTerminated   = "terminated"
)

// Status says why a run ended.
type Status string

const (
	// StatusComplete means the iteration budget ran out.
	StatusComplete Status = "complete"
	// StatusBudget means the wall-clock budget ran out first.
	StatusBudget Status = "budget"
	// StatusCancelled means the context was cancelled.
	StatusCancelled Status = "cancelled"
)

// Options carries the run-level inputs every strategy shares. Strategy
// tuning lives in the per-strategy config structs instead.
type Options struct {
	// RunID tags snapshots and summaries; the CLI uses a UUID.
	RunID string
	// Worker is the multistart worker index, 0 for single runs.
	Worker int
	// Seed fixes the random stream. Equal seeds give equal runs.
	Seed int64
	// Budget caps wall-clock time; zero means no cap.
	Budget time.Duration
	// SnapshotEvery is the snapshot cadence in iterations.
	SnapshotEvery int
	// Weights price the schedule. Zero-value weights are legal but score
	// everything zero; callers normally pass evaluate.DefaultWeights().
	Weights evaluate.Weights
	// Operators mixes the neighbourhood. The zero value takes defaults.
	Operators operator.Config
	// Warm seeds the run with a prior schedule instead of the greedy
	// construction. The state is cloned, never mutated.
	Warm *schedule.State
	// Emitter receives snapshots when set.
	Emitter *telemetry.Broadcaster
	// Log defaults to a no-op logger.
	Log logger.Logger
}

// Result is the shared outcome contract of every strategy.
type Result struct {
	Best       *schedule.State
	Objective  float64
	Components evaluate.Components
	// Trajectory holds the current objective at every snapshot.
	Trajectory []float64
	Iterations int
	Restarts   int
	Status     Status
	Duration   time.Duration
	Worker     int
}

// Strategy is one complete search algorithm. Solve blocks until the budget
// is spent or ctx is cancelled and always returns the best incumbent found;
// errors are reserved for invariant violations and bad configuration.
type Strategy interface {
	Name() string
	Solve(ctx context.Context, p *model.Problem, opts Options) (Result, error)
}
