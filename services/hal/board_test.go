package hal

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"hvac-node/errcode"
)

func openBoard(t *testing.T) *Board {
	t.Helper()
	b, err := Open(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Skipf("periph host unavailable: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestUnknownPin(t *testing.T) {
	b := openBoard(t)
	if _, err := b.Pin("NO_SUCH_PIN_42"); !errors.Is(err, errcode.Unsupported) {
		t.Fatalf("Pin err = %v, want unsupported", err)
	}
}

func TestUnknownBus(t *testing.T) {
	b := openBoard(t)
	if _, err := b.I2C("no-such-bus-42"); !errors.Is(err, errcode.Unsupported) {
		t.Fatalf("I2C err = %v, want unsupported", err)
	}
}

func TestCloseEmpty(t *testing.T) {
	b := openBoard(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
