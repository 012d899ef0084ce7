package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/harvestplan/harvestplan/core/bound"
	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/search"
	"github.com/harvestplan/harvestplan/core/telemetry"
	"github.com/harvestplan/harvestplan/infra/logger"
	"github.com/harvestplan/harvestplan/infra/metrics"
	"github.com/harvestplan/harvestplan/infra/runlog"
)

var rollingOut string

var rollingCmd = &cobra.Command{
	Use:   "rolling",
	Short: "Plan the horizon slice by slice with locked commitments",
	RunE:  runRolling,
}

func init() {
	rollingCmd.Flags().StringVarP(&rollingOut, "out", "o", "", "write the master plan to this file (.csv or .json)")
	rootCmd.AddCommand(rollingCmd)
}

func runRolling(cmd *cobra.Command, args []string) error {
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

	log := logger.New("rolling")
	sink, closeSinks, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	emitter := telemetry.NewBroadcaster()
	defer emitter.Close()
	metrics.StartSnapshotCollector(ctx, emitter, sink)

	summarySinks := summaryFan{sink}
	if cfg.Runlog.Enabled {
		store, err := runlog.NewSQLiteStore(cfg.Runlog.Path)
		if err != nil {
			return fmt.Errorf("runlog: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Errorf("runlog close: %v", err)
			}
		}()
		summarySinks = append(summarySinks, store)
	}

	runID := uuid.NewString()
	opts := search.Options{
		RunID:         runID,
		Budget:        time.Duration(cfg.Search.BudgetSeconds) * time.Second,
		SnapshotEvery: cfg.Search.SnapshotEvery,
		Weights:       cfg.Weights,
		Operators:     cfg.Operators,
		Emitter:       emitter,
		Log:           log,
	}
	rollCfg := cfg.Rolling
	if rollCfg.Seed == 0 {
		rollCfg.Seed = cfg.Search.Seed
	}

	orch, err := rolling.New(p, rollCfg, strat, opts, bound.Delivered, summarySinks, log)
	if err != nil {
		return err
	}

	out, runErr := orch.Run(ctx)
	if out != nil {
		printSummaries(out.Summaries)
	}
	if runErr != nil {
		var inf *rolling.InfeasibleError
		if errors.As(runErr, &inf) {
			color.New(color.FgRed, color.Bold).Printf("aborted: %v\n", inf)
			return runErr
		}
		return runErr
	}

	color.New(color.FgGreen, color.Bold).Printf("run %s: master plan covers %d slots\n", runID, out.Covered)
	fmt.Printf("  objective  %.2f\n", out.Objective)
	fmt.Printf("  delivered  %.1f m3\n", out.Components.DeliveredVolume)
	fmt.Printf("  leftover   %.1f m3\n", out.Components.LeftoverVolume)
	return writePlan(rollingOut, out.Plan)
}

func printSummaries(sums []rolling.SliceSummary) {
	if len(sums) == 0 {
		return
	}
	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"slice", "lock", "objective", "delivered", "bound", "gap %", "duration", "retried"})
	for _, s := range sums {
		_ = table.Append([]string{
			strconv.Itoa(s.Slice),
			fmt.Sprintf("[%d,%d)", s.LockFrom, s.LockTo),
			fmt.Sprintf("%.2f", s.Objective),
			fmt.Sprintf("%.1f", s.Delivered),
			fmt.Sprintf("%.1f", s.Bound),
			fmt.Sprintf("%.1f", s.GapPct),
			s.Duration.Round(time.Millisecond).String(),
			strconv.FormatBool(s.Retried),
		})
	}
	_ = table.Render()
}
