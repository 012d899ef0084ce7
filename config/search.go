package config

import "fmt"

// Strategy names accepted by the search section.
const (
	StrategyAnneal = "anneal"
	StrategyILS    = "ils"
	StrategyTabu   = "tabu"
)

// SearchConfig selects the strategy and the run-level knobs shared by all
// strategies. Per-strategy tuning lives in the anneal, ils and tabu
// sections.
type SearchConfig struct {
	// Strategy is one of "anneal", "ils" or "tabu".
	Strategy string `json:"strategy"`
	// Workers is the number of independent multistart runs. One means a
	// single run.
	Workers int `json:"workers"`
	// Seed fixes the random stream; worker w runs with Seed+w.
	Seed int64 `json:"seed"`
	// BudgetSeconds caps wall-clock time per run. Zero means no cap.
	BudgetSeconds int `json:"budget_seconds"`
	// SnapshotEvery is the telemetry cadence in iterations.
	SnapshotEvery int `json:"snapshot_every"`
}

// SetDefaults applies the standard run shape.
func (c *SearchConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyAnneal
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = 100
	}
}

// Validate checks the strategy name and counters.
func (c SearchConfig) Validate() error {
	switch c.Strategy {
	case StrategyAnneal, StrategyILS, StrategyTabu:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BudgetSeconds < 0 {
		return fmt.Errorf("budget_seconds must not be negative, got %d", c.BudgetSeconds)
	}
	if c.SnapshotEvery < 1 {
		return fmt.Errorf("snapshot_every must be positive, got %d", c.SnapshotEvery)
	}
	return nil
}
