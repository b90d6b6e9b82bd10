// Package sensor provides the temperature/humidity backends behind
// measure.Sensor. Every backend reports driver failures as an invalid
// (NaN) reading rather than an error.
package sensor

import (
	"context"
	"log/slog"
	"time"

	"tinygo.org/x/drivers"

	"hvac-node/drivers/aht20"
	"hvac-node/types"
	"hvac-node/x/mathx"
)

// AHT20 reads an AHT20 over I²C. A failed read soft-resets the sensor and
// the next read recalibrates it first.
type AHT20 struct {
	dev     *aht20.Device
	cfg     aht20.Config
	log     *slog.Logger
	recover bool
}

func NewAHT20(bus drivers.I2C, addr uint16, l *slog.Logger) *AHT20 {
	if addr == 0 {
		addr = aht20.Address
	}
	return &AHT20{
		dev: aht20.New(bus),
		cfg: aht20.Config{
			Address:        addr,
			PollInterval:   15 * time.Millisecond,
			CollectTimeout: 250 * time.Millisecond,
			TriggerHint:    80 * time.Millisecond,
		},
		log: l.With(slog.String("component", "sensor"), slog.String("driver", "aht20")),
	}
}

// Init calibrates the sensor if it is not already.
func (s *AHT20) Init(ctx context.Context) error {
	return s.dev.Configure(s.cfg)
}

func (s *AHT20) Read() types.Reading {
	if s.recover {
		if err := s.dev.Configure(s.cfg); err != nil {
			s.log.Debug("recalibration failed", slog.Any("error", err))
			return types.InvalidReading()
		}
		s.recover = false
	}
	var smp aht20.Sample
	if err := s.dev.Read(&smp); err != nil {
		s.log.Debug("read failed", slog.Any("error", err))
		if err := s.dev.Reset(); err != nil {
			s.log.Debug("soft reset failed", slog.Any("error", err))
		}
		s.recover = true
		return types.InvalidReading()
	}
	return types.Reading{Temperature: smp.Celsius(), Humidity: mathx.Clamp(smp.RelHumidity(), 0, 100)}
}
