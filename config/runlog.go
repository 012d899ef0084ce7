package config

import "fmt"

// RunlogConfig persists rolling-horizon slice summaries in SQLite.
type RunlogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *RunlogConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "harvestplan.db"
	}
}

// Validate checks mandatory fields.
func (c RunlogConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("runlog enabled without path")
	}
	return nil
}
