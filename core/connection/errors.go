package connection

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Publish when the session is not connected.
var ErrNotConnected = errors.New("connection: session not connected")

// ErrorKind classifies a failed connection attempt.
type ErrorKind string

const (
	KindDNS     ErrorKind = "DNS"
	KindTLS     ErrorKind = "TLS"
	KindAuth    ErrorKind = "AUTH"
	KindTimeout ErrorKind = "TIMEOUT"
)

// ConnectError wraps the transport error behind a classification the health
// monitor and the operator surface can act on.
type ConnectError struct {
	Kind ErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NewConnectError builds a classified connection error.
func NewConnectError(kind ErrorKind, err error) *ConnectError {
	return &ConnectError{Kind: kind, Err: err}
}

// KindOf extracts the classification from err, or "" if err is not a
// ConnectError.
func KindOf(err error) ErrorKind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
