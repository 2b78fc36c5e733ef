package config

import (
	"fmt"
	"time"
)

// FleetConfig tunes the telemetry store and the protocol namespace.
type FleetConfig struct {
	// InterfaceName is the leading topic segment shared by the whole fleet.
	InterfaceName string `json:"interface_name"`
	// StaleAfterSec marks a silent vehicle STALE after this many seconds.
	StaleAfterSec int `json:"stale_after_seconds"`
	// OfflineAfterSec marks a silent vehicle OFFLINE after this many seconds.
	OfflineAfterSec int `json:"offline_after_seconds"`
	// WindowCap bounds the per-vehicle telemetry event window.
	WindowCap int `json:"window_cap"`
}

func (c *FleetConfig) SetDefaults() {
	if c.InterfaceName == "" {
		c.InterfaceName = "uagv"
	}
	if c.StaleAfterSec <= 0 {
		c.StaleAfterSec = 60
	}
	if c.OfflineAfterSec <= 0 {
		c.OfflineAfterSec = 120
	}
	if c.WindowCap <= 0 {
		c.WindowCap = 100
	}
}

func (c FleetConfig) Validate() error {
	if c.OfflineAfterSec <= c.StaleAfterSec {
		return fmt.Errorf("offline_after_seconds (%d) must exceed stale_after_seconds (%d)",
			c.OfflineAfterSec, c.StaleAfterSec)
	}
	return nil
}

func (c FleetConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSec) * time.Second
}

func (c FleetConfig) OfflineAfter() time.Duration {
	return time.Duration(c.OfflineAfterSec) * time.Second
}
