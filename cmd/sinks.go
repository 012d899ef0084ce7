package cmd

import (
	"context"
	"fmt"

	"github.com/harvestplan/harvestplan/config"
	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/telemetry"
	"github.com/harvestplan/harvestplan/infra/logger"
	"github.com/harvestplan/harvestplan/infra/metrics"
	"github.com/harvestplan/harvestplan/infra/mqtt"
)

// buildSinks assembles the configured telemetry sinks into one fan-out.
// The returned closer releases broker connections; call it when the run
// ends. The MultiSink also forwards slice summaries to the sinks that
// record them.
func buildSinks(ctx context.Context, cfg *config.Config, log logger.Logger) (*metrics.MultiSink, func(), error) {
	var sinks []telemetry.Sink
	var closers []func()

	if cfg.Metrics.Prometheus.Enabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Prometheus.Port)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	if cfg.Metrics.Influx.Enabled {
		in := cfg.Metrics.Influx
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket))
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewSnapshotPublisher(cfg.MQTT.Publisher())
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
	}

	closer := func() {
		for _, c := range closers {
			c()
		}
	}
	return metrics.NewMultiSink(sinks...), closer, nil
}

// summaryFan forwards slice summaries to every sink in order, stopping on
// the first error.
type summaryFan []rolling.SummarySink

func (f summaryFan) RecordSliceSummary(s rolling.SliceSummary) error {
	for _, sink := range f {
		if err := sink.RecordSliceSummary(s); err != nil {
			return err
		}
	}
	return nil
}
