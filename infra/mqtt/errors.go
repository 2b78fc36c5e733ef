package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"github.com/mowbotai/fleetd/core/connection"
)

// classifyConnectError maps a transport failure onto the connection error
// taxonomy so the health monitor and the operator surface can tell DNS, TLS,
// authentication and timeout failures apart.
func classifyConnectError(err error) *connection.ConnectError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return connection.NewConnectError(connection.KindDNS, err)
	}

	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return connection.NewConnectError(connection.KindTLS, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return connection.NewConnectError(connection.KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return connection.NewConnectError(connection.KindTimeout, err)
	}

	// paho surfaces broker CONNACK refusals as plain errors; match on the
	// refusal reason text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not authori"), strings.Contains(msg, "bad user name or password"), strings.Contains(msg, "identifier rejected"):
		return connection.NewConnectError(connection.KindAuth, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return connection.NewConnectError(connection.KindTimeout, err)
	case strings.Contains(msg, "tls"), strings.Contains(msg, "certificate"):
		return connection.NewConnectError(connection.KindTLS, err)
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "lookup "):
		return connection.NewConnectError(connection.KindDNS, err)
	}
	return connection.NewConnectError(connection.KindTimeout, err)
}
