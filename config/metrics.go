package config

import "time"

// InfluxConfig enables export of fleet telemetry to InfluxDB.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// MetricsConfig controls the Prometheus endpoint and the Influx sink.
type MetricsConfig struct {
	PromAddr            string       `json:"prom_addr"`
	SnapshotIntervalSec int          `json:"snapshot_interval_seconds"`
	Influx              InfluxConfig `json:"influx"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.PromAddr == "" {
		c.PromAddr = ":9090"
	}
	if c.SnapshotIntervalSec <= 0 {
		c.SnapshotIntervalSec = 15
	}
}

func (c MetricsConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}
