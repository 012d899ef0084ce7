package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/telemetry"
	"github.com/harvestplan/harvestplan/infra/logger"
)

// InfluxSink writes search snapshots and slice summaries to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) telemetry.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return telemetry.NopSink{}
	}
	return sink
}

// RecordSnapshot writes the snapshot as a search_snapshot point.
func (s *InfluxSink) RecordSnapshot(snap telemetry.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("search_snapshot").
		AddTag("run_id", snap.RunID).
		AddTag("strategy", snap.Strategy).
		AddTag("worker", strconv.Itoa(snap.Worker)).
		AddTag("phase", snap.Phase).
		AddTag("final", strconv.FormatBool(snap.Final)).
		AddField("iteration", snap.Iteration).
		AddField("objective", round3(snap.Objective)).
		AddField("best", round3(snap.Best)).
		AddField("elapsed_ms", round3(snap.Elapsed.Seconds()*1000)).
		AddField("temperature", round3(snap.Temperature)).
		AddField("tabu_len", snap.TabuLen).
		AddField("restarts", snap.Restarts).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSliceSummary persists the outcome of one rolling-horizon slice.
func (s *InfluxSink) RecordSliceSummary(sum rolling.SliceSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("rolling_slice").
		AddTag("run_id", sum.RunID).
		AddTag("slice", strconv.Itoa(sum.Slice)).
		AddTag("retried", strconv.FormatBool(sum.Retried)).
		AddField("offset_day", sum.OffsetDay).
		AddField("lock_from", sum.LockFrom).
		AddField("lock_to", sum.LockTo).
		AddField("objective", round3(sum.Objective)).
		AddField("delivered", round3(sum.Delivered)).
		AddField("bound", round3(sum.Bound)).
		AddField("gap_pct", round3(sum.GapPct)).
		AddField("duration_ms", round3(sum.Duration.Seconds()*1000)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
