package mission

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mowbotai/fleetd/core/connection"
	"github.com/mowbotai/fleetd/core/logger"
	"github.com/mowbotai/fleetd/core/model"
	"github.com/mowbotai/fleetd/core/vda5050"
	"github.com/mowbotai/fleetd/internal/eventbus"
)

// DefaultAckTimeout is the acknowledgement deadline for dispatched orders.
const DefaultAckTimeout = 30 * time.Second

// AckEvent is published when an order is acknowledged or times out.
type AckEvent struct {
	OrderID   string
	VehicleID string
	State     model.AckState
	Latency   time.Duration
}

// Request describes the route an operator wants a vehicle to execute.
type Request struct {
	VehicleID string
	Nodes     []model.MissionNode
	Edges     []model.MissionEdge
}

// VehicleResolver supplies the manufacturer for a known vehicle. The
// telemetry store implements it.
type VehicleResolver interface {
	Get(vehicleID string) (model.AGVRecord, bool)
}

// Dispatcher builds and sends mission orders and tracks their
// acknowledgement. It never retries a timed-out order on its own: duplicate
// physical-motion commands are unsafe, so retry is an explicit operator
// action via Redispatch.
type Dispatcher struct {
	codec      *vda5050.Codec
	conn       connection.Manager
	vehicles   VehicleResolver
	ackTimeout time.Duration
	maxNodes   int
	log        logger.Logger
	bus        *eventbus.Bus[AckEvent]

	mu     sync.Mutex
	orders map[string]*model.MissionOrder
	timers map[string]*time.Timer
}

// NewDispatcher creates a Dispatcher. A non-positive ackTimeout falls back to
// DefaultAckTimeout.
func NewDispatcher(codec *vda5050.Codec, conn connection.Manager, vehicles VehicleResolver, ackTimeout time.Duration, maxNodes int, log logger.Logger, bus *eventbus.Bus[AckEvent]) (*Dispatcher, error) {
	if codec == nil || conn == nil || vehicles == nil {
		return nil, fmt.Errorf("mission: nil parameter provided to NewDispatcher")
	}
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Dispatcher{
		codec:      codec,
		conn:       conn,
		vehicles:   vehicles,
		ackTimeout: ackTimeout,
		maxNodes:   maxNodes,
		log:        log,
		bus:        bus,
		orders:     make(map[string]*model.MissionOrder),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Dispatch validates the route, assigns orderId and orderUpdateId, publishes
// the encoded order and records it as PENDING with a deadline. A publish
// failure leaves no PENDING order behind.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (model.MissionOrder, error) {
	if err := validateRoute(req.Nodes, req.Edges, d.maxNodes); err != nil {
		return model.MissionOrder{}, err
	}
	rec, ok := d.vehicles.Get(req.VehicleID)
	if !ok {
		return model.MissionOrder{}, fmt.Errorf("%w: %s", ErrUnknownVehicle, req.VehicleID)
	}

	nodes := make([]model.MissionNode, len(req.Nodes))
	copy(nodes, req.Nodes)
	for i := range nodes {
		nodes[i].Theta = normalizeTheta(nodes[i].Theta)
	}

	order := model.MissionOrder{
		OrderID:   uuid.NewString(),
		VehicleID: req.VehicleID,
		Nodes:     nodes,
		Edges:     req.Edges,
	}
	return d.publish(ctx, rec.Manufacturer, order)
}

// Redispatch re-sends a timed-out or failed order with the next
// orderUpdateId. It refuses orders that are still pending or already
// acknowledged.
func (d *Dispatcher) Redispatch(ctx context.Context, orderID string) (model.MissionOrder, error) {
	d.mu.Lock()
	prev, ok := d.orders[orderID]
	if !ok {
		d.mu.Unlock()
		return model.MissionOrder{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if prev.AckState == model.AckPending || prev.AckState == model.AckAcked {
		state := prev.AckState
		d.mu.Unlock()
		return model.MissionOrder{}, fmt.Errorf("%w: order %s is %s", ErrInvalidOrder, orderID, state)
	}
	order := *prev
	d.mu.Unlock()

	rec, ok := d.vehicles.Get(order.VehicleID)
	if !ok {
		return model.MissionOrder{}, fmt.Errorf("%w: %s", ErrUnknownVehicle, order.VehicleID)
	}
	return d.publish(ctx, rec.Manufacturer, order)
}

func (d *Dispatcher) publish(ctx context.Context, manufacturer string, order model.MissionOrder) (model.MissionOrder, error) {
	topic, payload, updateID, err := d.codec.EncodeOrder(manufacturer, order)
	if err != nil {
		return model.MissionOrder{}, err
	}
	if err := d.conn.Publish(ctx, topic, payload); err != nil {
		return model.MissionOrder{}, fmt.Errorf("dispatch %s: %w", order.OrderID, err)
	}
	ordersDispatched.Inc()

	order.OrderUpdateID = updateID
	order.DispatchedAt = time.Now()
	order.AckDeadline = order.DispatchedAt.Add(d.ackTimeout)
	order.AckState = model.AckPending

	d.mu.Lock()
	stored := order
	d.orders[order.OrderID] = &stored
	if t, ok := d.timers[order.OrderID]; ok {
		t.Stop()
	}
	d.timers[order.OrderID] = time.AfterFunc(d.ackTimeout, func() { d.expire(order.OrderID) })
	d.mu.Unlock()

	if d.log != nil {
		d.log.Infof("dispatched order %s update %d to %s", order.OrderID, updateID, order.VehicleID)
	}
	return order, nil
}

// HandleState correlates an inbound state message with a pending order. It is
// called on the decode path and must stay a lookup, never a wait.
func (d *Dispatcher) HandleState(msg vda5050.StateMessage) {
	if msg.OrderID == "" {
		return
	}
	d.mu.Lock()
	order, ok := d.orders[msg.OrderID]
	if !ok || order.AckState != model.AckPending {
		d.mu.Unlock()
		return
	}
	if serial := msg.Header().SerialNumber; serial != order.VehicleID {
		d.mu.Unlock()
		if d.log != nil {
			d.log.Warnf("ignoring ack for order %s from %s, order belongs to %s",
				order.OrderID, serial, order.VehicleID)
		}
		return
	}
	order.AckState = model.AckAcked
	latency := time.Since(order.DispatchedAt)
	if t, ok := d.timers[msg.OrderID]; ok {
		t.Stop()
		delete(d.timers, msg.OrderID)
	}
	ev := AckEvent{OrderID: order.OrderID, VehicleID: order.VehicleID, State: model.AckAcked, Latency: latency}
	d.mu.Unlock()

	ordersAcked.Inc()
	ackLatency.Observe(latency.Seconds())
	if d.log != nil {
		d.log.Infof("order %s acknowledged by %s after %s", ev.OrderID, ev.VehicleID, latency)
	}
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}

// expire transitions a still-pending order to TIMEOUT exactly once.
func (d *Dispatcher) expire(orderID string) {
	d.mu.Lock()
	order, ok := d.orders[orderID]
	if !ok || order.AckState != model.AckPending {
		d.mu.Unlock()
		return
	}
	order.AckState = model.AckTimeout
	delete(d.timers, orderID)
	ev := AckEvent{OrderID: order.OrderID, VehicleID: order.VehicleID, State: model.AckTimeout}
	d.mu.Unlock()

	ordersTimedOut.Inc()
	if d.log != nil {
		d.log.Warnf("order %s to %s timed out waiting for acknowledgement", ev.OrderID, ev.VehicleID)
	}
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}

// Order returns a copy of one tracked order.
func (d *Dispatcher) Order(orderID string) (model.MissionOrder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	order, ok := d.orders[orderID]
	if !ok {
		return model.MissionOrder{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return *order, nil
}

// Orders returns copies of all tracked orders, newest first.
func (d *Dispatcher) Orders() []model.MissionOrder {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]model.MissionOrder, 0, len(d.orders))
	for _, o := range d.orders {
		res = append(res, *o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DispatchedAt.After(res[j].DispatchedAt) })
	return res
}

// CancelOrder publishes a cancelOrder instant action for the vehicle.
func (d *Dispatcher) CancelOrder(ctx context.Context, orderID string) error {
	d.mu.Lock()
	order, ok := d.orders[orderID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	vehicleID := order.VehicleID
	d.mu.Unlock()

	rec, ok := d.vehicles.Get(vehicleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	action := vda5050.Action{
		ActionType:   "cancelOrder",
		ActionID:     uuid.NewString(),
		BlockingType: "HARD",
	}
	topic, payload, err := d.codec.EncodeInstantActions(rec.Manufacturer, vehicleID, []vda5050.Action{action})
	if err != nil {
		return err
	}
	return d.conn.Publish(ctx, topic, payload)
}

// Close stops all pending deadline timers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
