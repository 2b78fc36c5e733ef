package main

import "sync"

const (
	batteryFull     = 100.0
	chargeThreshold = 20.0
	drainMoving     = 0.4
	drainIdle       = 0.05
	chargeRate      = 1.5
)

// Battery is a coarse charge model: it drains while the vehicle moves and
// recharges once it falls below the charge threshold and the vehicle idles.
type Battery struct {
	mu       sync.Mutex
	charge   float64
	charging bool
}

func NewBattery() *Battery {
	return &Battery{charge: batteryFull}
}

// Tick advances the model by one state interval.
func (b *Battery) Tick(moving bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.charging:
		b.charge += chargeRate
		if b.charge >= batteryFull {
			b.charge = batteryFull
			b.charging = false
		}
	case moving:
		b.charge -= drainMoving
	default:
		b.charge -= drainIdle
		if b.charge < chargeThreshold {
			b.charging = true
		}
	}
	if b.charge < 0 {
		b.charge = 0
	}
}

func (b *Battery) Charge() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.charge
}

func (b *Battery) Charging() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.charging
}
