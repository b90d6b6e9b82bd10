// Package measure runs the periodic read → validate → render → publish cycle.
package measure

import (
	"log/slog"
	"time"

	"hvac-node/errcode"
	"hvac-node/types"
	"hvac-node/x/timex"
)

// Sensor acquires one reading. Failures are signalled by NaN fields.
type Sensor interface {
	Read() types.Reading
}

// Display draws text into fixed regions; WriteRegion clears the region first.
type Display interface {
	WriteRegion(x, y int, text string) error
	Flush() error
}

// Telemetry publishes one property value as text.
type Telemetry interface {
	Publish(property, value string) error
}

// Region is the top-left pixel of a text line on the display.
type Region struct{ X, Y int }

// Layout places the reading lines on the display.
type Layout struct {
	Temperature Region
	Humidity    Region
}

// Precision is the number of fractional digits shown and published.
const Precision = 2

type Config struct {
	Interval time.Duration
	Layout   Layout
}

// Scheduler owns the measurement cycle state. It is not safe for concurrent
// use; the node runtime calls it from a single goroutine.
type Scheduler struct {
	sensor    Sensor
	display   Display
	telemetry Telemetry
	log       *slog.Logger

	interval uint32 // ms
	layout   Layout

	started bool
	last    uint32 // ms, clock units
}

func New(cfg Config, s Sensor, d Display, t Telemetry, l *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Scheduler{
		sensor:    s,
		display:   d,
		telemetry: t,
		log:       l.With(slog.String("component", "measure")),
		interval:  timex.Ms(cfg.Interval),
		layout:    cfg.Layout,
	}
}

// Due reports whether a cycle would run at now.
func (s *Scheduler) Due(now uint32) bool {
	return !s.started || timex.Elapsed(now, s.last) >= s.interval
}

// OnTick runs one measurement cycle when due and reports whether it did.
// The timestamp advances after every cycle, including failed reads, so a
// broken sensor is retried only at the normal cadence.
func (s *Scheduler) OnTick(now uint32) bool {
	if !s.Due(now) {
		return false
	}
	s.cycle()
	s.started = true
	s.last = now
	return true
}

// LastMeasure returns the timestamp of the last cycle and whether one ran.
func (s *Scheduler) LastMeasure() (uint32, bool) { return s.last, s.started }

func (s *Scheduler) cycle() {
	r := s.sensor.Read()
	if !r.Valid() {
		s.log.Warn("failed to read from sensor",
			slog.String("code", string(errcode.SensorReadInvalid)),
			slog.Float64("temperature", r.Temperature),
			slog.Float64("humidity", r.Humidity))
		return
	}
	s.log.Info("sensor reading validated",
		slog.Float64("temperature_c", r.Temperature),
		slog.Float64("humidity_pct", r.Humidity))

	temp := FormatValue(r.Temperature)
	humi := FormatValue(r.Humidity)

	s.render(temp, humi)

	s.log.Debug("publishing readings")
	s.publish(types.PropDegrees, temp)
	s.publish(types.PropRelative, humi)
}

func (s *Scheduler) render(temp, humi string) {
	s.log.Debug("printing to display")
	if err := s.display.WriteRegion(s.layout.Temperature.X, s.layout.Temperature.Y, TemperatureText(temp)); err != nil {
		s.log.Warn("display write failed", slog.String("region", "temperature"), slog.Any("error", err))
	}
	if err := s.display.WriteRegion(s.layout.Humidity.X, s.layout.Humidity.Y, HumidityText(humi)); err != nil {
		s.log.Warn("display write failed", slog.String("region", "humidity"), slog.Any("error", err))
	}
	if err := s.display.Flush(); err != nil {
		s.log.Warn("display flush failed", slog.Any("error", err))
	}
}

// publish is fire-and-forget: a failure on one property does not affect the other.
func (s *Scheduler) publish(property, value string) {
	if err := s.telemetry.Publish(property, value); err != nil {
		s.log.Warn("telemetry publish failed",
			slog.String("property", property),
			slog.String("code", string(errcode.Of(err))),
			slog.Any("error", err))
	}
}
