package main

import "time"

// Config drives a simulated AGV fleet.
type Config struct {
	Broker        string
	InterfaceName string
	Manufacturer  string
	Vehicles      int
	StateInterval time.Duration
	// AckDelay is how long a vehicle waits before its state report first
	// carries a received order id.
	AckDelay time.Duration
	// DropAcks suppresses order ids in state reports, so dispatched orders
	// run into their ack deadline.
	DropAcks bool
	// Speed is distance covered per state interval while executing an order.
	Speed float64
}

func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://127.0.0.1:1883"
	}
	if c.InterfaceName == "" {
		c.InterfaceName = "uagv"
	}
	if c.Manufacturer == "" {
		c.Manufacturer = "mowbot"
	}
	if c.Vehicles <= 0 {
		c.Vehicles = 3
	}
	if c.StateInterval <= 0 {
		c.StateInterval = 2 * time.Second
	}
	if c.AckDelay < 0 {
		c.AckDelay = 0
	}
	if c.Speed <= 0 {
		c.Speed = 0.5
	}
}
