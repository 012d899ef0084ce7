// Package telemetry carries search progress out of the solver loops. The
// strategies publish Snapshots through a Broadcaster; sinks and dashboards
// subscribe without ever sharing state with the search itself.
package telemetry

import "time"

// Snapshot is one progress record from a running search. Strategies emit
// them at a configurable cadence plus exactly one final snapshot when the
// run ends, whatever the reason.
type Snapshot struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	// Worker identifies the multistart worker, 0 for single runs.
	Worker    int           `json:"worker"`
	Phase     string        `json:"phase"`
	Iteration int           `json:"iteration"`
	Objective float64       `json:"objective"`
	Best      float64       `json:"best"`
	Elapsed   time.Duration `json:"elapsed"`
	// Strategy internals. Unused fields stay zero: only annealing has a
	// temperature, only tabu a tenure fill, only ILS a perturbation.
	Temperature  float64 `json:"temperature,omitempty"`
	TabuLen      int     `json:"tabu_len,omitempty"`
	Perturbation int     `json:"perturbation,omitempty"`
	Restarts     int     `json:"restarts"`
	// WorkersBusy and WorkersTotal report multistart ensemble occupancy.
	// The coordinator emits them; single runs leave both zero.
	WorkersBusy  int `json:"workers_busy,omitempty"`
	WorkersTotal int `json:"workers_total,omitempty"`
	// Final marks the flush snapshot emitted on termination or
	// cancellation. Every run ends with exactly one.
	Final bool `json:"final"`
}

// Sink consumes snapshots. Implementations live under infra; they must be
// safe for calls from multiple workers.
type Sink interface {
	RecordSnapshot(Snapshot) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordSnapshot(Snapshot) error { return nil }
