// Package cmd wires the command-line interface: solve for single searches,
// rolling for horizon decomposition and plan for rendering exported plans.
package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harvestplan/harvestplan/config"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/pkg/scenario"
)

var (
	cfgPath      string
	scenarioPath string
)

var rootCmd = &cobra.Command{
	Use:          "harvestplan",
	Short:        "Harvest schedule optimiser",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file defining the planning instance")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	applyLogLevel(cfg.Logging.Level)
	return cfg, nil
}

func loadProblem() (*model.Problem, error) {
	if scenarioPath == "" {
		return nil, fmt.Errorf("--scenario is required")
	}
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return sc.ToProblem()
}

func applyLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
