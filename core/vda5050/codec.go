package vda5050

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mowbotai/fleetd/core/model"
)

// protocolVersion is the VDA5050 version stamped on outbound messages.
const protocolVersion = "2.0.0"

var now = time.Now

// Codec decodes inbound fleet frames and encodes outbound orders. It owns the
// inbound sequencing baseline and the per-order orderUpdateId counters.
type Codec struct {
	interfaceName string
	seq           *Sequencer

	mu        sync.Mutex
	headerID  uint64
	orderUpds map[string]uint32
}

// NewCodec creates a Codec for the given interface namespace.
func NewCodec(interfaceName string) *Codec {
	return &Codec{
		interfaceName: interfaceName,
		seq:           NewSequencer(),
		orderUpds:     make(map[string]uint32),
	}
}

// wireHeader uses pointers so that absent mandatory fields are detectable.
type wireHeader struct {
	HeaderID     *uint64    `json:"headerId"`
	Timestamp    *time.Time `json:"timestamp"`
	Version      string     `json:"version"`
	Manufacturer string     `json:"manufacturer"`
	SerialNumber string     `json:"serialNumber"`
}

func (w wireHeader) validate() error {
	switch {
	case w.SerialNumber == "":
		return fmt.Errorf("%w: serialNumber", ErrMissingField)
	case w.HeaderID == nil:
		return fmt.Errorf("%w: headerId", ErrMissingField)
	case w.Timestamp == nil:
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	case w.Version == "":
		return fmt.Errorf("%w: version", ErrMissingField)
	}
	return nil
}

// Decode parses an inbound frame into its tagged variant. The message kind is
// chosen by the topic's trailing segment. Out-of-sequence frames return
// ErrStaleSequence; a connection ONLINE frame resets the vehicle's baseline
// first, so a rebooted AGV resynchronizes cleanly.
func (c *Codec) Decode(rawTopic string, payload []byte) (Message, error) {
	topic, err := ParseTopic(rawTopic)
	if err != nil {
		return nil, err
	}

	var wh wireHeader
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := wh.validate(); err != nil {
		return nil, err
	}
	hdr := Header{
		HeaderID:     *wh.HeaderID,
		Timestamp:    *wh.Timestamp,
		Version:      wh.Version,
		Manufacturer: wh.Manufacturer,
		SerialNumber: wh.SerialNumber,
	}

	var msg Message
	switch topic.Channel {
	case ChannelState:
		var m StateMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		m.Header_ = hdr
		msg = m
	case ChannelConnection:
		var m ConnectionMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		m.Header_ = hdr
		if m.ConnectionState == ConnOnline {
			c.seq.Reset(hdr.SerialNumber)
		}
		msg = m
	case ChannelVisualization:
		var m VisualizationMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		m.Header_ = hdr
		msg = m
	default:
		return UnknownMessage{Header_: hdr, Channel: topic.Channel}, nil
	}

	if !c.seq.Accept(hdr.SerialNumber, topic.Channel, hdr.HeaderID) {
		return nil, fmt.Errorf("%w: %s/%s headerId %d", ErrStaleSequence,
			hdr.SerialNumber, topic.Channel, hdr.HeaderID)
	}
	return msg, nil
}

// EncodeOrder builds the order topic and payload for a mission. It assigns
// the next orderUpdateId for the orderId and reports it back.
func (c *Codec) EncodeOrder(manufacturer string, mission model.MissionOrder) (topic string, payload []byte, updateID uint32, err error) {
	updateID = c.nextOrderUpdate(mission.OrderID)

	nodes := make([]OrderNode, 0, len(mission.Nodes))
	for _, n := range mission.Nodes {
		nodes = append(nodes, OrderNode{
			NodeID:       n.NodeID,
			SequenceID:   n.SequenceID,
			Released:     true,
			NodePosition: &AGVPosition{X: n.X, Y: n.Y, Theta: n.Theta},
			Actions:      []Action{},
		})
	}
	edges := make([]OrderEdge, 0, len(mission.Edges))
	for _, e := range mission.Edges {
		edges = append(edges, OrderEdge{
			EdgeID:      e.EdgeID,
			SequenceID:  e.SequenceID,
			Released:    true,
			StartNodeID: e.StartNodeID,
			EndNodeID:   e.EndNodeID,
			Actions:     []Action{},
		})
	}

	order := Order{
		Header:        c.nextHeader(manufacturer, mission.VehicleID),
		OrderID:       mission.OrderID,
		OrderUpdateID: updateID,
		Nodes:         nodes,
		Edges:         edges,
	}
	payload, err = json.Marshal(order)
	if err != nil {
		return "", nil, 0, fmt.Errorf("encode order: %w", err)
	}
	return OrderTopic(c.interfaceName, manufacturer, mission.VehicleID), payload, updateID, nil
}

// EncodeInstantActions builds the instantActions topic and payload for a
// vehicle, e.g. cancelOrder or startPause.
func (c *Codec) EncodeInstantActions(manufacturer, serial string, actions []Action) (string, []byte, error) {
	ia := InstantActions{
		Header:  c.nextHeader(manufacturer, serial),
		Actions: actions,
	}
	payload, err := json.Marshal(ia)
	if err != nil {
		return "", nil, fmt.Errorf("encode instant actions: %w", err)
	}
	return InstantActionsTopic(c.interfaceName, manufacturer, serial), payload, nil
}

// DecodeOrder parses an order payload. Used to verify round-trips and by
// tooling that replays recorded orders.
func DecodeOrder(payload []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return o, nil
}

func (c *Codec) nextHeader(manufacturer, serial string) Header {
	c.mu.Lock()
	c.headerID++
	id := c.headerID
	c.mu.Unlock()
	return Header{
		HeaderID:     id,
		Timestamp:    now().UTC(),
		Version:      protocolVersion,
		Manufacturer: manufacturer,
		SerialNumber: serial,
	}
}

func (c *Codec) nextOrderUpdate(orderID string) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, seen := c.orderUpds[orderID]
	if seen {
		next++
	}
	c.orderUpds[orderID] = next
	return next
}
