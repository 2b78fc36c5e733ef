package connection

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectErrorClassification(t *testing.T) {
	base := errors.New("tls: handshake failure")
	err := NewConnectError(KindTLS, base)
	if KindOf(err) != KindTLS {
		t.Fatalf("expected TLS kind, got %s", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error lost")
	}
	wrapped := fmt.Errorf("connect: %w", err)
	if KindOf(wrapped) != KindTLS {
		t.Fatal("classification lost through wrapping")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != "" {
		t.Fatal("plain error must have no kind")
	}
	if KindOf(ErrNotConnected) != "" {
		t.Fatal("ErrNotConnected is not a ConnectError")
	}
}
