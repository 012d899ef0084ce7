package metrics

import (
	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// MultiSink fans snapshots out to multiple sinks.
type MultiSink struct {
	Sinks []telemetry.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...telemetry.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSnapshot forwards the snapshot to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordSnapshot(snap telemetry.Snapshot) error {
	for _, s := range m.Sinks {
		if err := s.RecordSnapshot(snap); err != nil {
			return err
		}
	}
	return nil
}

// RecordSliceSummary forwards slice summaries to the sinks that record them.
func (m *MultiSink) RecordSliceSummary(sum rolling.SliceSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(rolling.SummarySink); ok {
			if err := rec.RecordSliceSummary(sum); err != nil {
				return err
			}
		}
	}
	return nil
}
