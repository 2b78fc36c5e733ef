package model

import "time"

// ConnectionState classifies how recently an AGV has been heard from.
type ConnectionState string

const (
	ConnectionOnline  ConnectionState = "ONLINE"
	ConnectionStale   ConnectionState = "STALE"
	ConnectionOffline ConnectionState = "OFFLINE"
)

// Position is an AGV pose on the operating map.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// AGVError describes one entry of a vehicle's reported error list.
type AGVError struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
}

// AGVRecord is the latest known state of a single vehicle. LastSeenAt is the
// local arrival time of the most recent message, not the device-embedded
// timestamp, so liveness decisions are immune to skewed vehicle clocks.
type AGVRecord struct {
	VehicleID     string            `json:"vehicle_id"`
	Manufacturer  string            `json:"manufacturer"`
	Battery       float64           `json:"battery"`
	OperatingMode string            `json:"operating_mode"`
	Position      Position          `json:"position"`
	LastNodeID    string            `json:"last_node_id"`
	CurrentOrder  string            `json:"current_order,omitempty"`
	Errors        []AGVError        `json:"errors,omitempty"`
	SensorStatus  map[string]string `json:"sensor_status,omitempty"`
	// MessageTime is the timestamp embedded in the vehicle message;
	// the UI may display it, liveness logic must not trust it.
	MessageTime     time.Time       `json:"message_time"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
	ConnectionState ConnectionState `json:"connection_state"`
}

// TelemetryEvent is one decoded message retained in a vehicle's recent-event
// window.
type TelemetryEvent struct {
	VehicleID string    `json:"vehicle_id"`
	Channel   string    `json:"channel"`
	HeaderID  uint64    `json:"header_id"`
	Arrived   time.Time `json:"arrived"`
	Payload   []byte    `json:"payload,omitempty"`
}
