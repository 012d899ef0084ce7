// Package scenarios runs YAML-defined planning instances end to end, the
// regression net for the solver stack.
package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/search"
	"github.com/harvestplan/harvestplan/core/telemetry"
	"github.com/harvestplan/harvestplan/infra/logger"
	"github.com/harvestplan/harvestplan/infra/metrics"
	"github.com/harvestplan/harvestplan/pkg/scenario"
)

// strategies builds one instance of every strategy with a budget small
// enough for test runs.
func strategies(t *testing.T) map[string]interface {
	Name() string
	Solve(ctx context.Context, p *model.Problem, opts search.Options) (search.Result, error)
} {
	t.Helper()
	sa, err := search.NewAnneal(search.AnnealConfig{Iterations: 3000})
	if err != nil {
		t.Fatalf("anneal: %v", err)
	}
	ils, err := search.NewILS(search.ILSConfig{Iterations: 40, StallLimit: 60})
	if err != nil {
		t.Fatalf("ils: %v", err)
	}
	tabu, err := search.NewTabu(search.TabuConfig{Iterations: 600})
	if err != nil {
		t.Fatalf("tabu: %v", err)
	}
	return map[string]interface {
		Name() string
		Solve(ctx context.Context, p *model.Problem, opts search.Options) (search.Result, error)
	}{
		"anneal": sa,
		"ils":    ils,
		"tabu":   tabu,
	}
}

// RunScenario solves the scenario with every strategy and checks the
// expected outcome bounds, with snapshots flowing through the full
// telemetry chain.
func RunScenario(t *testing.T, sc *scenario.Scenario) {
	p, err := sc.ToProblem()
	if err != nil {
		t.Fatalf("problem: %v", err)
	}

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	for name, strat := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			emitter := telemetry.NewBroadcaster()
			defer emitter.Close()
			metrics.StartSnapshotCollector(ctx, emitter, sink)

			res, err := strat.Solve(ctx, p, search.Options{
				RunID:   "qa-" + sc.Name,
				Seed:    7,
				Weights: scenarioWeights(),
				Emitter: emitter,
				Log:     logger.NopLogger{},
			})
			if err != nil {
				t.Fatalf("solve: %v", err)
			}
			if err := schedule.Check(res.Best); err != nil {
				t.Fatalf("best schedule violates invariants: %v", err)
			}
			if res.Components.LeftoverVolume > sc.Expected.MaxLeftover+1e-9 {
				t.Errorf("scenario %s: leftover %g above cap %g",
					sc.Name, res.Components.LeftoverVolume, sc.Expected.MaxLeftover)
			}
			if res.Components.DeliveredVolume < sc.Expected.MinDelivered-1e-9 {
				t.Errorf("scenario %s: delivered %g below floor %g",
					sc.Name, res.Components.DeliveredVolume, sc.Expected.MinDelivered)
			}
			snap, ok := emitter.Last()
			if !ok || !snap.Final {
				t.Errorf("scenario %s: run ended without a final snapshot", sc.Name)
			}

			// A second run with the same seed must reproduce the result.
			again, err := strat.Solve(context.Background(), p, search.Options{
				RunID:   "qa-" + sc.Name,
				Seed:    7,
				Weights: scenarioWeights(),
				Log:     logger.NopLogger{},
			})
			if err != nil {
				t.Fatalf("replay: %v", err)
			}
			if again.Objective != res.Objective {
				t.Errorf("scenario %s: seed 7 gave %g then %g", sc.Name, res.Objective, again.Objective)
			}
		})
	}
}

func scenarioWeights() evaluate.Weights { return evaluate.DefaultWeights() }
