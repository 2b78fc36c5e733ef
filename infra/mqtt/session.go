package mqtt

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/mowbotai/fleetd/core/connection"
)

// Session state machine. Transitions mirror the broker session lifecycle:
// disconnected -> connecting -> connected -> degraded -> disconnected.
const (
	stateDisconnected = "disconnected"
	stateConnecting   = "connecting"
	stateConnected    = "connected"
	stateDegraded     = "degraded"

	eventDial      = "dial"
	eventEstablish = "establish"
	eventDegrade   = "degrade"
	eventDrop      = "drop"
)

func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		stateDisconnected,
		fsm.Events{
			{Name: eventDial, Src: []string{stateDisconnected}, Dst: stateConnecting},
			{Name: eventEstablish, Src: []string{stateConnecting}, Dst: stateConnected},
			{Name: eventDegrade, Src: []string{stateConnected}, Dst: stateDegraded},
			{Name: eventDrop, Src: []string{stateConnecting, stateConnected, stateDegraded}, Dst: stateDisconnected},
		},
		fsm.Callbacks{},
	)
}

// sessionState maps the FSM state onto the core connection state.
func sessionState(f *fsm.FSM) connection.State {
	switch f.Current() {
	case stateConnecting:
		return connection.StateConnecting
	case stateConnected:
		return connection.StateConnected
	case stateDegraded:
		return connection.StateDegraded
	default:
		return connection.StateDisconnected
	}
}

// fire triggers an FSM event, swallowing invalid-transition errors: a drop on
// an already disconnected session is not a fault.
func fire(f *fsm.FSM, event string) {
	_ = f.Event(context.Background(), event)
}
