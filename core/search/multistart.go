package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// Multistart runs the same strategy on workers private schedule copies and
// keeps the best result. Worker w searches with seed opts.Seed+w, so a
// fixed base seed reproduces the whole ensemble. Workers share nothing
// mutable; they report results only.
//
// Equal objectives resolve to the lowest worker index, keeping the merge
// deterministic whatever order the workers finish in.
//
// When opts.Emitter is set the coordinator also publishes "ensemble"
// snapshots carrying workers busy/total, once up front and once per worker
// exit, so dashboards can see occupancy next to the per-worker stream.
func Multistart(ctx context.Context, p *model.Problem, s Strategy, opts Options, workers int) (Result, error) {
	if workers < 1 {
		return Result{}, fmt.Errorf("search: multistart needs at least 1 worker, got %d", workers)
	}
	if workers == 1 {
		return s.Solve(ctx, p, opts)
	}

	var busy atomic.Int32
	busy.Store(int32(workers))
	occupancy := func() {
		if opts.Emitter == nil {
			return
		}
		opts.Emitter.Publish(telemetry.Snapshot{
			RunID:        opts.RunID,
			Strategy:     s.Name(),
			Phase:        "ensemble",
			WorkersBusy:  int(busy.Load()),
			WorkersTotal: workers,
		})
	}
	occupancy()

	results := make([]Result, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			o := opts
			o.Worker = w
			o.Seed = opts.Seed + int64(w)
			results[w], errs[w] = s.Solve(ctx, p, o)
			busy.Add(-1)
			occupancy()
		}(w)
	}
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			return Result{}, fmt.Errorf("search: worker %d: %w", w, err)
		}
	}
	best := 0
	for w := 1; w < workers; w++ {
		if results[w].Objective < results[best].Objective {
			best = w
		}
	}
	return results[best], nil
}
