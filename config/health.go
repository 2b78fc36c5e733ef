package config

import (
	"time"

	"github.com/mowbotai/fleetd/core/health"
)

// HealthConfig feeds the broker health monitor. Zero values fall back to
// the monitor's own defaults.
type HealthConfig struct {
	ProbeIntervalSec   int `json:"probe_interval_seconds"`
	UnhealthyThreshold int `json:"unhealthy_threshold"`
	BackoffBaseSec     int `json:"backoff_base_seconds"`
	BackoffMaxSec      int `json:"backoff_max_seconds"`
	MaxAttempts        int `json:"max_attempts"`
}

// Runtime converts the section into the monitor's configuration.
func (c HealthConfig) Runtime() health.Config {
	return health.Config{
		ProbeInterval:      time.Duration(c.ProbeIntervalSec) * time.Second,
		UnhealthyThreshold: c.UnhealthyThreshold,
		BackoffBase:        time.Duration(c.BackoffBaseSec) * time.Second,
		BackoffMax:         time.Duration(c.BackoffMaxSec) * time.Second,
		MaxAttempts:        c.MaxAttempts,
	}
}
