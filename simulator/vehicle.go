package main

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mowbotai/fleetd/core/vda5050"
)

const protocolVersion = "2.0.0"

type stateWire struct {
	vda5050.Header
	BatteryState  vda5050.BatteryState `json:"batteryState"`
	OperatingMode string               `json:"operatingMode"`
	AGVPosition   *vda5050.AGVPosition `json:"agvPosition,omitempty"`
	LastNodeID    string               `json:"lastNodeId"`
	OrderID       string               `json:"orderId"`
	OrderUpdateID uint32               `json:"orderUpdateId"`
	Errors        []vda5050.StateError `json:"errors"`
}

type connectionWire struct {
	vda5050.Header
	ConnectionState string `json:"connectionState"`
}

type visualizationWire struct {
	vda5050.Header
	AGVPosition *vda5050.AGVPosition `json:"agvPosition,omitempty"`
}

// SimulatedAGV speaks the vehicle side of the protocol: it announces
// presence on the connection channel, streams state and pose, and works
// through orders it receives.
type SimulatedAGV struct {
	Serial string

	cfg    Config
	client paho.Client

	mu         sync.Mutex
	headerIDs  map[string]uint64
	pos        vda5050.AGVPosition
	lastNodeID string
	order      *vda5050.Order
	ackAt      time.Time
	nodeIdx    int
	battery    *Battery
}

func NewSimulatedAGV(serial string, cfg Config) *SimulatedAGV {
	return &SimulatedAGV{
		Serial:    serial,
		cfg:       cfg,
		headerIDs: map[string]uint64{},
		battery:   NewBattery(),
	}
}

func (v *SimulatedAGV) topic(channel string) string {
	return vda5050.Topic{
		InterfaceName: v.cfg.InterfaceName,
		Manufacturer:  v.cfg.Manufacturer,
		SerialNumber:  v.Serial,
		Channel:       channel,
	}.String()
}

func (v *SimulatedAGV) header(channel string) vda5050.Header {
	v.headerIDs[channel]++
	return vda5050.Header{
		HeaderID:     v.headerIDs[channel],
		Timestamp:    time.Now().UTC(),
		Version:      protocolVersion,
		Manufacturer: v.cfg.Manufacturer,
		SerialNumber: v.Serial,
	}
}

// Run connects to the broker and reports until ctx is done. The last will
// publishes CONNECTIONBROKEN so an ungraceful exit is still visible.
func (v *SimulatedAGV) Run(ctx context.Context) error {
	v.mu.Lock()
	will, _ := json.Marshal(connectionWire{Header: v.header(vda5050.ChannelConnection), ConnectionState: vda5050.ConnConnectionBroken})
	v.mu.Unlock()

	opts := paho.NewClientOptions().
		AddBroker(v.cfg.Broker).
		SetClientID("sim-" + v.Serial).
		SetWill(v.topic(vda5050.ChannelConnection), string(will), 1, true)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	v.client = cli

	if token := cli.Subscribe(v.topic(vda5050.ChannelOrder), 1, v.onOrder); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	if token := cli.Subscribe(v.topic(vda5050.ChannelInstantActions), 1, v.onInstantActions); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}

	v.publishConnection(vda5050.ConnOnline)

	ticker := time.NewTicker(v.cfg.StateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			v.publishConnection(vda5050.ConnOffline)
			cli.Disconnect(250)
			return nil
		case <-ticker.C:
			v.step()
			v.publishState()
			v.publishVisualization()
		}
	}
}

func (v *SimulatedAGV) onOrder(_ paho.Client, msg paho.Message) {
	var order vda5050.Order
	if err := json.Unmarshal(msg.Payload(), &order); err != nil {
		log.Printf("%s: decode order: %v", v.Serial, err)
		return
	}
	v.applyOrder(order)
}

func (v *SimulatedAGV) applyOrder(order vda5050.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.order != nil && v.order.OrderID == order.OrderID && order.OrderUpdateID <= v.order.OrderUpdateID {
		return
	}
	v.order = &order
	v.nodeIdx = 0
	v.ackAt = time.Now().Add(v.cfg.AckDelay)
}

func (v *SimulatedAGV) onInstantActions(_ paho.Client, msg paho.Message) {
	var ia vda5050.InstantActions
	if err := json.Unmarshal(msg.Payload(), &ia); err != nil {
		log.Printf("%s: decode instant actions: %v", v.Serial, err)
		return
	}
	for _, a := range ia.Actions {
		if a.ActionType == "cancelOrder" {
			v.mu.Lock()
			v.order = nil
			v.mu.Unlock()
		}
	}
}

// step moves toward the next order node.
func (v *SimulatedAGV) step() {
	v.mu.Lock()
	defer v.mu.Unlock()

	moving := false
	if v.order != nil && v.nodeIdx < len(v.order.Nodes) {
		target := v.order.Nodes[v.nodeIdx]
		if target.NodePosition != nil {
			dx := target.NodePosition.X - v.pos.X
			dy := target.NodePosition.Y - v.pos.Y
			dist := math.Hypot(dx, dy)
			if dist <= v.cfg.Speed {
				v.pos.X = target.NodePosition.X
				v.pos.Y = target.NodePosition.Y
				v.lastNodeID = target.NodeID
				v.nodeIdx++
			} else {
				v.pos.Theta = math.Atan2(dy, dx)
				v.pos.X += v.cfg.Speed * math.Cos(v.pos.Theta)
				v.pos.Y += v.cfg.Speed * math.Sin(v.pos.Theta)
				moving = true
			}
		} else {
			v.lastNodeID = target.NodeID
			v.nodeIdx++
		}
		if v.nodeIdx >= len(v.order.Nodes) {
			v.order = nil
		}
	}
	v.battery.Tick(moving)
}

func (v *SimulatedAGV) publishState() {
	v.mu.Lock()
	w := stateWire{
		Header:        v.header(vda5050.ChannelState),
		BatteryState:  vda5050.BatteryState{BatteryCharge: v.battery.Charge(), Charging: v.battery.Charging()},
		OperatingMode: "AUTOMATIC",
		AGVPosition:   &vda5050.AGVPosition{X: v.pos.X, Y: v.pos.Y, Theta: v.pos.Theta},
		LastNodeID:    v.lastNodeID,
		Errors:        []vda5050.StateError{},
	}
	if v.order != nil && !v.cfg.DropAcks && !time.Now().Before(v.ackAt) {
		w.OrderID = v.order.OrderID
		w.OrderUpdateID = v.order.OrderUpdateID
	}
	v.mu.Unlock()
	v.publish(vda5050.ChannelState, w)
}

func (v *SimulatedAGV) publishVisualization() {
	v.mu.Lock()
	w := visualizationWire{
		Header:      v.header(vda5050.ChannelVisualization),
		AGVPosition: &vda5050.AGVPosition{X: v.pos.X, Y: v.pos.Y, Theta: v.pos.Theta},
	}
	v.mu.Unlock()
	v.publish(vda5050.ChannelVisualization, w)
}

func (v *SimulatedAGV) publishConnection(state string) {
	v.mu.Lock()
	w := connectionWire{Header: v.header(vda5050.ChannelConnection), ConnectionState: state}
	v.mu.Unlock()
	v.publish(vda5050.ChannelConnection, w)
}

func (v *SimulatedAGV) publish(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("%s: encode %s: %v", v.Serial, channel, err)
		return
	}
	retain := channel == vda5050.ChannelConnection
	if token := v.client.Publish(v.topic(channel), 1, retain, data); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("%s: publish %s: %v", v.Serial, channel, token.Error())
	}
}
