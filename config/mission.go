package config

import (
	"fmt"
	"time"

	"github.com/mowbotai/fleetd/core/mission"
)

// MissionConfig tunes order dispatch.
type MissionConfig struct {
	AckTimeoutSec int `json:"ack_timeout_seconds"`
	MaxNodes      int `json:"max_nodes"`
}

func (c *MissionConfig) SetDefaults() {
	if c.AckTimeoutSec <= 0 {
		c.AckTimeoutSec = int(mission.DefaultAckTimeout / time.Second)
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = mission.DefaultMaxNodes
	}
}

func (c MissionConfig) Validate() error {
	if c.MaxNodes > 10000 {
		return fmt.Errorf("max_nodes %d is unreasonably large", c.MaxNodes)
	}
	return nil
}

func (c MissionConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutSec) * time.Second
}
