package config

import "fmt"

// MetricsConfig enables the telemetry sinks. All sinks are off by default;
// the CLI always keeps the in-process broadcaster.
type MetricsConfig struct {
	Prometheus PrometheusConfig `json:"prometheus"`
	Influx     InfluxConfig     `json:"influx"`
}

// PrometheusConfig exposes search metrics on an HTTP scrape endpoint.
type PrometheusConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// InfluxConfig streams snapshots to an InfluxDB bucket. A failing health
// check at startup degrades to a no-op sink.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 2112
	}
}

// Validate checks the enabled sinks.
func (c MetricsConfig) Validate() error {
	if c.Prometheus.Enabled && (c.Prometheus.Port < 1 || c.Prometheus.Port > 65535) {
		return fmt.Errorf("prometheus port %d out of range", c.Prometheus.Port)
	}
	if c.Influx.Enabled && c.Influx.URL == "" {
		return fmt.Errorf("influx enabled without url")
	}
	return nil
}
