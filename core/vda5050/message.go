package vda5050

import "time"

// Channel names used as the trailing topic segment.
const (
	ChannelOrder          = "order"
	ChannelInstantActions = "instantActions"
	ChannelState          = "state"
	ChannelConnection     = "connection"
	ChannelVisualization  = "visualization"
)

// Kind tags the decoded message variant.
type Kind string

const (
	KindState         Kind = "state"
	KindConnection    Kind = "connection"
	KindVisualization Kind = "visualization"
	KindUnknown       Kind = "unknown"
)

// Message is a decoded inbound frame.
type Message interface {
	Kind() Kind
	Header() Header
}

// Header carries the fields common to every VDA5050 message.
type Header struct {
	HeaderID     uint64    `json:"headerId"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Manufacturer string    `json:"manufacturer"`
	SerialNumber string    `json:"serialNumber"`
}

// BatteryState reports charge level and charging status.
type BatteryState struct {
	BatteryCharge float64 `json:"batteryCharge"`
	Charging      bool    `json:"charging"`
}

// AGVPosition is the vehicle pose reported in state and visualization frames.
type AGVPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
	MapID string  `json:"mapId,omitempty"`
}

// StateError is one entry of the errors array in a state message.
type StateError struct {
	ErrorType        string `json:"errorType"`
	ErrorDescription string `json:"errorDescription"`
	ErrorLevel       string `json:"errorLevel"`
}

// StateMessage is the periodic vehicle state report.
type StateMessage struct {
	Header_       Header       `json:"-"`
	BatteryState  BatteryState `json:"batteryState"`
	OperatingMode string       `json:"operatingMode"`
	AGVPosition   *AGVPosition `json:"agvPosition,omitempty"`
	LastNodeID    string       `json:"lastNodeId"`
	OrderID       string       `json:"orderId"`
	OrderUpdateID uint32       `json:"orderUpdateId"`
	Errors        []StateError `json:"errors"`
}

func (m StateMessage) Kind() Kind     { return KindState }
func (m StateMessage) Header() Header { return m.Header_ }

// ConnState values carried by connection messages.
const (
	ConnOnline           = "ONLINE"
	ConnOffline          = "OFFLINE"
	ConnConnectionBroken = "CONNECTIONBROKEN"
)

// ConnectionMessage announces broker-level vehicle presence, usually as a
// retained or last-will payload.
type ConnectionMessage struct {
	Header_         Header `json:"-"`
	ConnectionState string `json:"connectionState"`
}

func (m ConnectionMessage) Kind() Kind     { return KindConnection }
func (m ConnectionMessage) Header() Header { return m.Header_ }

// VisualizationMessage is the high-rate pose stream.
type VisualizationMessage struct {
	Header_     Header       `json:"-"`
	AGVPosition *AGVPosition `json:"agvPosition,omitempty"`
	Velocity    *Velocity    `json:"velocity,omitempty"`
}

// Velocity is the vehicle speed reported in visualization frames.
type Velocity struct {
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Omega float64 `json:"omega"`
}

func (m VisualizationMessage) Kind() Kind     { return KindVisualization }
func (m VisualizationMessage) Header() Header { return m.Header_ }

// UnknownMessage preserves the header of a frame on an unrecognized channel.
type UnknownMessage struct {
	Header_ Header `json:"-"`
	Channel string `json:"-"`
}

func (m UnknownMessage) Kind() Kind     { return KindUnknown }
func (m UnknownMessage) Header() Header { return m.Header_ }

// OrderNode is a waypoint of an outbound order.
type OrderNode struct {
	NodeID       string       `json:"nodeId"`
	SequenceID   int          `json:"sequenceId"`
	Released     bool         `json:"released"`
	NodePosition *AGVPosition `json:"nodePosition,omitempty"`
	Actions      []Action     `json:"actions"`
}

// OrderEdge links two consecutive order nodes.
type OrderEdge struct {
	EdgeID      string   `json:"edgeId"`
	SequenceID  int      `json:"sequenceId"`
	Released    bool     `json:"released"`
	StartNodeID string   `json:"startNodeId"`
	EndNodeID   string   `json:"endNodeId"`
	Actions     []Action `json:"actions"`
}

// Action is a VDA5050 action attached to a node, edge or instant action set.
type Action struct {
	ActionType       string            `json:"actionType"`
	ActionID         string            `json:"actionId"`
	BlockingType     string            `json:"blockingType"`
	ActionParameters []ActionParameter `json:"actionParameters,omitempty"`
}

// ActionParameter is a key/value argument of an Action.
type ActionParameter struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Order is the outbound order payload.
type Order struct {
	Header
	OrderID       string      `json:"orderId"`
	OrderUpdateID uint32      `json:"orderUpdateId"`
	Nodes         []OrderNode `json:"nodes"`
	Edges         []OrderEdge `json:"edges"`
}

// InstantActions is the outbound instant action payload.
type InstantActions struct {
	Header
	Actions []Action `json:"actions"`
}
