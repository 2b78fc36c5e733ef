package model

import "time"

// AckState tracks the lifecycle of a dispatched mission order.
type AckState string

const (
	AckPending AckState = "PENDING"
	AckAcked   AckState = "ACKED"
	AckFailed  AckState = "FAILED"
	AckTimeout AckState = "TIMEOUT"
)

// MissionNode is one waypoint of a mission route.
type MissionNode struct {
	NodeID     string  `json:"node_id"`
	SequenceID int     `json:"sequence_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Theta      float64 `json:"theta"`
}

// MissionEdge links two consecutive mission nodes.
type MissionEdge struct {
	EdgeID      string `json:"edge_id"`
	SequenceID  int    `json:"sequence_id"`
	StartNodeID string `json:"start_node_id"`
	EndNodeID   string `json:"end_node_id"`
}

// MissionOrder is a dispatched order plus its acknowledgement bookkeeping.
// OrderUpdateID is monotonic per OrderID.
type MissionOrder struct {
	OrderID       string        `json:"order_id"`
	OrderUpdateID uint32        `json:"order_update_id"`
	VehicleID     string        `json:"vehicle_id"`
	Nodes         []MissionNode `json:"nodes"`
	Edges         []MissionEdge `json:"edges"`
	DispatchedAt  time.Time     `json:"dispatched_at"`
	AckDeadline   time.Time     `json:"ack_deadline"`
	AckState      AckState      `json:"ack_state"`
}
