// Package aht20 provides a driver for the AHT20 temperature/humidity sensor.
// It exposes a two-phase measurement API:
//
//	d.Trigger()              // start a measurement (fast)
//	err := d.Collect(&s)     // fetch when ready; returns ErrNotReady while busy
//
// d.Read() performs trigger + bounded polling until ready.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x38

// Commands and status bits (per datasheet).
const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x38 if zero.
	Address uint16
	// PollInterval is used by Read() between Collect() attempts. Default 15 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read(). Default 250 ms.
	CollectTimeout time.Duration
	// TriggerHint is the nominal conversion time. Default 80 ms.
	TriggerHint time.Duration
}

func (c *Config) defaults() {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 250 * time.Millisecond
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 80 * time.Millisecond
	}
}

// Device wraps an I2C connection to an AHT20 device.
type Device struct {
	bus drivers.I2C
	cfg Config
	buf [7]byte
}

// New creates a Device on an already configured bus. It does not touch the
// hardware; call Configure before the first measurement.
func New(bus drivers.I2C) *Device {
	d := &Device{bus: bus}
	d.cfg.defaults()
	return d
}

// Configure applies cfg and calibrates the sensor when its status says it is
// not calibrated yet.
func (d *Device) Configure(cfg Config) error {
	cfg.defaults()
	d.cfg = cfg

	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	// The sensor needs ~10 ms after calibration before the first trigger.
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Give the device ~20ms afterwards before using.
func (d *Device) Reset() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) Status() (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Trigger starts a conversion. It does not block.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

func (d *Device) TriggerHint() time.Duration { return d.cfg.TriggerHint }

// Collect reads one measurement into out. ErrNotReady is returned while the
// conversion is still running; bus errors are returned as-is.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	out.RawHumidity = uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4
	out.RawTemp = uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5])
	return nil
}

// Read runs Trigger, waits the trigger hint, then polls Collect until it
// succeeds or CollectTimeout elapses.
func (d *Device) Read(out *Sample) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	time.Sleep(d.cfg.TriggerHint)
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(out)
		if !errors.Is(err, ErrNotReady) {
			return err
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(d.cfg.PollInterval)
	}
}

// Sample holds raw 20-bit readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) RelHumidity() float64 {
	return float64(s.RawHumidity) * 100 / 0x100000
}

func (s Sample) Celsius() float64 {
	return float64(s.RawTemp)*200/0x100000 - 50
}

// DeciCelsius returns tenths of °C without floating point.
func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/0x100000) - 500
}

// DeciRelHumidity returns tenths of %RH without floating point.
func (s Sample) DeciRelHumidity() int32 {
	return int32(int64(s.RawHumidity) * 1000 / 0x100000)
}
