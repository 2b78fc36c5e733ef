package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mowbotai/fleetd/core/vda5050"
)

func testOrder() *vda5050.Order {
	return &vda5050.Order{
		OrderID: "order-1",
		Nodes: []vda5050.OrderNode{
			{NodeID: "n1", SequenceID: 0, NodePosition: &vda5050.AGVPosition{X: 0, Y: 0}},
			{NodeID: "n2", SequenceID: 2, NodePosition: &vda5050.AGVPosition{X: 2, Y: 0}},
		},
	}
}

func TestStepWalksOrderNodes(t *testing.T) {
	cfg := Config{Speed: 1}
	cfg.SetDefaults()
	cfg.Speed = 1
	v := NewSimulatedAGV("agv-1", cfg)
	v.order = testOrder()

	// first node is the start position, reached immediately
	v.step()
	assert.Equal(t, "n1", v.lastNodeID)

	// two steps of speed 1 cover the 2m edge
	v.step()
	assert.Equal(t, "n1", v.lastNodeID)
	assert.InDelta(t, 1.0, v.pos.X, 1e-9)

	v.step()
	assert.Equal(t, "n2", v.lastNodeID)
	assert.Nil(t, v.order, "order completes at the last node")
}

func TestStepIdlesWithoutOrder(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	v := NewSimulatedAGV("agv-1", cfg)
	v.step()
	assert.Equal(t, 0.0, v.pos.X)
	assert.Equal(t, "", v.lastNodeID)
}

func TestBatteryDrainsAndRecharges(t *testing.T) {
	b := NewBattery()
	for i := 0; i < 300; i++ {
		b.Tick(true)
	}
	assert.Less(t, b.Charge(), batteryFull)

	// drain to the charge threshold, then idle ticks recharge
	for b.Charge() >= chargeThreshold {
		b.Tick(true)
	}
	b.Tick(false)
	assert.True(t, b.Charging())
	before := b.Charge()
	b.Tick(false)
	assert.Greater(t, b.Charge(), before)
}

func TestOrderUpdateReplacesOlder(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	v := NewSimulatedAGV("agv-1", cfg)
	v.order = testOrder()

	stale := *testOrder()
	stale.OrderUpdateID = 0
	v.nodeIdx = 1

	newer := *testOrder()
	newer.OrderUpdateID = 1

	v.mu.Lock()
	cur := v.order
	v.mu.Unlock()
	assert.Equal(t, uint32(0), cur.OrderUpdateID)

	// an update with a higher orderUpdateId restarts the route
	v.applyOrder(newer)
	assert.Equal(t, uint32(1), v.order.OrderUpdateID)
	assert.Equal(t, 0, v.nodeIdx)

	// a replayed older update is ignored
	v.applyOrder(stale)
	assert.Equal(t, uint32(1), v.order.OrderUpdateID)
}
