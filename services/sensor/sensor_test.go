package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*readyAHT20)(nil)

// readyAHT20 answers every measurement immediately.
type readyAHT20 struct {
	hraw, traw uint32
	err        error
	addrs      map[uint16]int
	resets     int
	busy       bool
}

func (f *readyAHT20) Tx(addr uint16, w, r []byte) error {
	if f.addrs == nil {
		f.addrs = map[uint16]int{}
	}
	f.addrs[addr]++
	if f.err != nil {
		return f.err
	}
	const calibrated = 0x08
	switch {
	case len(w) == 1 && w[0] == 0xBA:
		f.resets++
	case len(w) == 1 && len(r) == 1:
		r[0] = calibrated
	case len(w) == 0 && len(r) == 7:
		h, t := f.hraw, f.traw
		r[0] = calibrated
		if f.busy {
			r[0] |= 0x80
		}
		r[1] = byte(h >> 12)
		r[2] = byte(h >> 4)
		r[3] = byte((h&0xF)<<4 | (t>>16)&0x0F)
		r[4] = byte(t >> 8)
		r[5] = byte(t)
		r[6] = 0
	}
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAHT20Read(t *testing.T) {
	bus := &readyAHT20{hraw: 576_717, traw: 393_216}
	s := NewAHT20(bus, 0, quiet())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r := s.Read()
	if !r.Valid() {
		t.Fatalf("reading invalid: %+v", r)
	}
	if math.Abs(r.Temperature-25.0) > 0.01 || math.Abs(r.Humidity-55.0) > 0.01 {
		t.Fatalf("reading = %+v, want ~25.0/55.0", r)
	}
	if bus.addrs[0x38] == 0 || len(bus.addrs) != 1 {
		t.Fatalf("addresses used = %v, want only 0x38", bus.addrs)
	}
}

func TestAHT20BusErrorIsNaN(t *testing.T) {
	bus := &readyAHT20{}
	s := NewAHT20(bus, 0x39, quiet())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	bus.err = errors.New("nack")
	r := s.Read()
	if r.Valid() || !math.IsNaN(r.Temperature) || !math.IsNaN(r.Humidity) {
		t.Fatalf("reading = %+v, want NaN", r)
	}
	if bus.addrs[0x39] == 0 {
		t.Fatalf("configured address not used: %v", bus.addrs)
	}
}

func TestAHT20RecoversAfterFailedRead(t *testing.T) {
	bus := &readyAHT20{hraw: 576_717, traw: 393_216}
	s := NewAHT20(bus, 0, quiet())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if bus.resets != 0 {
		t.Fatalf("resets after Init = %d, want 0", bus.resets)
	}

	bus.err = errors.New("nack")
	if s.Read().Valid() {
		t.Fatal("read with a failing bus was valid")
	}
	bus.err = nil
	if bus.resets != 0 {
		t.Fatalf("reset counted while the bus was failing: %d", bus.resets)
	}

	if r := s.Read(); !r.Valid() {
		t.Fatalf("read after recovery invalid: %+v", r)
	}
}

func TestAHT20ResetsOnFailedConversion(t *testing.T) {
	bus := &readyAHT20{hraw: 576_717, traw: 393_216, busy: true}
	s := NewAHT20(bus, 0, quiet())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.Read().Valid() {
		t.Fatal("busy sensor returned a valid reading")
	}
	if bus.resets != 1 {
		t.Fatalf("resets = %d, want 1", bus.resets)
	}
	bus.busy = false
	if r := s.Read(); !r.Valid() {
		t.Fatalf("read after reset invalid: %+v", r)
	}
}

func TestDHT22WithoutInitIsNaN(t *testing.T) {
	if NewDHT22("GPIO14", quiet()).Read().Valid() {
		t.Fatal("uninitialised DHT22 returned a valid reading")
	}
}

func TestSimulatedRanges(t *testing.T) {
	s := NewSimulated(7)
	for i := 0; i < 1000; i++ {
		r := s.Read()
		if r.Temperature < 18 || r.Temperature > 28 || r.Humidity < 30 || r.Humidity > 70 {
			t.Fatalf("reading %d out of range: %+v", i, r)
		}
	}
	a, b := NewSimulated(3).Read(), NewSimulated(3).Read()
	if a != b {
		t.Fatalf("same seed differs: %+v vs %+v", a, b)
	}
}
