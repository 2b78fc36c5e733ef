package vda5050

import "errors"

// Protocol errors. A failing message is dropped by the caller; none of these
// are fatal to the decode pipeline. Use errors.Is() to classify.
var (
	// ErrMalformedPayload is returned when a payload is not valid JSON for
	// the expected message schema.
	ErrMalformedPayload = errors.New("vda5050: malformed payload")

	// ErrMissingField is returned when a mandatory header field is absent.
	ErrMissingField = errors.New("vda5050: missing mandatory field")

	// ErrInvalidTopic is returned when a topic does not follow the
	// interfaceName/manufacturer/serialNumber/channel convention.
	ErrInvalidTopic = errors.New("vda5050: invalid topic")

	// ErrStaleSequence is returned when a message's headerId is not greater
	// than the last accepted one for the same vehicle and channel.
	ErrStaleSequence = errors.New("vda5050: stale or duplicate sequence")
)
