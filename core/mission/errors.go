package mission

import "errors"

// Mission errors. Use errors.Is() to classify.
var (
	// ErrInvalidOrder is returned when the node/edge sequence fails
	// validation; nothing is dispatched or recorded.
	ErrInvalidOrder = errors.New("mission: invalid order")

	// ErrAckTimeout marks an order whose acknowledgement deadline elapsed.
	ErrAckTimeout = errors.New("mission: acknowledgement timeout")

	// ErrUnknownOrder is returned when looking up an order id that was
	// never dispatched.
	ErrUnknownOrder = errors.New("mission: unknown order")

	// ErrUnknownVehicle is returned when dispatching to a vehicle the
	// telemetry store has never seen.
	ErrUnknownVehicle = errors.New("mission: unknown vehicle")
)
