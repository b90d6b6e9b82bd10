package hal

import (
	"errors"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"hvac-node/errcode"
)

// Board hands out the host's I²C buses and GPIO pins by name. Buses are
// opened once and shared, so the display and the sensor on the same wires
// use one handle.
type Board struct {
	log *slog.Logger

	mu    sync.Mutex
	buses map[string]i2c.BusCloser
}

// Open loads the periph host drivers.
func Open(l *slog.Logger) (*Board, error) {
	st, err := host.Init()
	if err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "hal.open", err)
	}
	l = l.With(slog.String("component", "hal"))
	for _, d := range st.Loaded {
		l.Debug("host driver loaded", slog.String("driver", d.String()))
	}
	return &Board{log: l, buses: map[string]i2c.BusCloser{}}, nil
}

// I2C returns the named bus. An empty name selects the first bus found.
func (b *Board) I2C(name string) (i2c.Bus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bus, ok := b.buses[name]; ok {
		return bus, nil
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "hal.i2c", err)
	}
	b.buses[name] = bus
	b.log.Info("i2c bus opened", slog.String("bus", bus.String()))
	return bus, nil
}

// Pin resolves a GPIO by its periph name, e.g. "GPIO14".
func (b *Board) Pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "hal.pin", Msg: "no pin named " + name}
	}
	return p, nil
}

// Close releases every opened bus.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, bus := range b.buses {
		if err := bus.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.buses, name)
	}
	return errors.Join(errs...)
}
