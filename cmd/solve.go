package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harvestplan/harvestplan/config"
	"github.com/harvestplan/harvestplan/core/schedule"
	"github.com/harvestplan/harvestplan/core/search"
	"github.com/harvestplan/harvestplan/core/telemetry"
	"github.com/harvestplan/harvestplan/infra/logger"
	"github.com/harvestplan/harvestplan/infra/metrics"
	"github.com/harvestplan/harvestplan/pkg/export"
)

var solveOut string

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Search a schedule for the whole scenario horizon",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&solveOut, "out", "o", "", "write the plan to this file (.csv or .json)")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProblem()
	if err != nil {
		return err
	}
	strat, err := newStrategy(cfg)
	if err != nil {
		return err
	}

	log := logger.New("solve")
	sink, closeSinks, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	emitter := telemetry.NewBroadcaster()
	defer emitter.Close()
	metrics.StartSnapshotCollector(ctx, emitter, sink)

	runID := uuid.NewString()
	opts := search.Options{
		RunID:         runID,
		Seed:          cfg.Search.Seed,
		Budget:        time.Duration(cfg.Search.BudgetSeconds) * time.Second,
		SnapshotEvery: cfg.Search.SnapshotEvery,
		Weights:       cfg.Weights,
		Operators:     cfg.Operators,
		Emitter:       emitter,
		Log:           log,
	}

	log.Infof("run %s: %s with %d worker(s) on %d blocks, %d machines, %d slots",
		runID, strat.Name(), cfg.Search.Workers, len(p.Blocks), p.NumMachines(), p.Slots())

	res, err := search.Multistart(ctx, p, strat, opts, cfg.Search.Workers)
	if err != nil {
		return err
	}

	printResult(runID, res)
	return writePlan(solveOut, schedule.Rows(res.Best))
}

// newStrategy builds the configured strategy.
func newStrategy(cfg *config.Config) (search.Strategy, error) {
	switch cfg.Search.Strategy {
	case config.StrategyAnneal:
		return search.NewAnneal(cfg.Anneal)
	case config.StrategyILS:
		return search.NewILS(cfg.ILS)
	case config.StrategyTabu:
		return search.NewTabu(cfg.Tabu)
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Search.Strategy)
	}
}

func printResult(runID string, res search.Result) {
	head := color.New(color.FgGreen, color.Bold)
	if res.Status != search.StatusComplete {
		head = color.New(color.FgYellow, color.Bold)
	}
	head.Printf("run %s finished: %s\n", runID, res.Status)
	fmt.Printf("  objective     %.2f\n", res.Objective)
	fmt.Printf("  delivered     %.1f m3\n", res.Components.DeliveredVolume)
	fmt.Printf("  leftover      %.1f m3\n", res.Components.LeftoverVolume)
	fmt.Printf("  mobilisation  %.1f\n", res.Components.MobilisationCost)
	fmt.Printf("  iterations    %d (restarts %d, worker %d)\n", res.Iterations, res.Restarts, res.Worker)
	fmt.Printf("  duration      %s\n", res.Duration.Round(time.Millisecond))
}

// writePlan exports the rows in the format the file extension names. An
// empty path skips the export.
func writePlan(path string, rows []schedule.Row) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return export.WriteCSV(f, rows)
	case ".json":
		return export.WriteJSON(f, rows)
	default:
		return fmt.Errorf("unsupported plan format: %s", path)
	}
}
