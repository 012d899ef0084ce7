package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// PromSink records search progress and slice results in Prometheus metrics.
type PromSink struct {
	snapshots *prometheus.CounterVec
	objective *prometheus.GaugeVec
	best      *prometheus.GaugeVec
	restarts  *prometheus.GaugeVec
	sliceDur  prometheus.Histogram
	sliceGap  prometheus.Gauge
}

// NewPromSink registers the search metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// the configured port.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
// Already-registered collectors are reused, so several sinks may share a
// process.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_snapshots_total",
		Help: "Total number of search snapshots received",
	}, []string{"strategy", "worker"})
	objective := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "search_objective",
		Help: "Current objective value of the walking schedule",
	}, []string{"strategy", "worker"})
	best := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "search_best_objective",
		Help: "Best objective value found so far",
	}, []string{"strategy", "worker"})
	restarts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "search_restarts_total",
		Help: "Diversification restarts taken by the strategy",
	}, []string{"strategy", "worker"})
	sliceDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rolling_slice_duration_seconds",
		Help:    "Wall-clock time spent solving one rolling-horizon slice",
		Buckets: prometheus.DefBuckets,
	})
	sliceGap := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rolling_slice_gap_pct",
		Help: "Delivery gap of the latest slice against its relaxation bound",
	})

	for _, c := range []struct {
		col  prometheus.Collector
		keep func(prometheus.Collector)
	}{
		{snapshots, func(c prometheus.Collector) { snapshots = c.(*prometheus.CounterVec) }},
		{objective, func(c prometheus.Collector) { objective = c.(*prometheus.GaugeVec) }},
		{best, func(c prometheus.Collector) { best = c.(*prometheus.GaugeVec) }},
		{restarts, func(c prometheus.Collector) { restarts = c.(*prometheus.GaugeVec) }},
		{sliceDur, func(c prometheus.Collector) { sliceDur = c.(prometheus.Histogram) }},
		{sliceGap, func(c prometheus.Collector) { sliceGap = c.(prometheus.Gauge) }},
	} {
		if err := reg.Register(c.col); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				c.keep(are.ExistingCollector)
			} else {
				return nil, err
			}
		}
	}

	return &PromSink{
		snapshots: snapshots,
		objective: objective,
		best:      best,
		restarts:  restarts,
		sliceDur:  sliceDur,
		sliceGap:  sliceGap,
	}, nil
}

// RecordSnapshot updates the per-worker counters and gauges.
func (s *PromSink) RecordSnapshot(snap telemetry.Snapshot) error {
	w := strconv.Itoa(snap.Worker)
	s.snapshots.WithLabelValues(snap.Strategy, w).Inc()
	s.objective.WithLabelValues(snap.Strategy, w).Set(snap.Objective)
	s.best.WithLabelValues(snap.Strategy, w).Set(snap.Best)
	s.restarts.WithLabelValues(snap.Strategy, w).Set(float64(snap.Restarts))
	return nil
}

// RecordSliceSummary observes the slice duration and publishes its gap.
func (s *PromSink) RecordSliceSummary(sum rolling.SliceSummary) error {
	s.sliceDur.Observe(sum.Duration.Seconds())
	s.sliceGap.Set(sum.GapPct)
	return nil
}
