package connection

import "context"

// State is the broker session lifecycle.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	// StateDegraded means a heartbeat was missed; inbound traffic is still
	// accepted but the health monitor has been flagged.
	StateDegraded State = "DEGRADED"
)

// Manager owns the broker session. Retry policy is deliberately not part of
// this interface; the health monitor decides when to call Connect again.
type Manager interface {
	// Connect opens the session and subscribes the fleet topics. It does
	// not retry internally; a classified *ConnectError reports why it
	// failed.
	Connect(ctx context.Context) error

	// Publish sends a payload. It fails with ErrNotConnected unless the
	// session is connected and never blocks past its timeout budget.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Disconnect unsubscribes and releases the session.
	Disconnect()

	// State reports the current session state.
	State() State
}
