package sensor

import (
	"context"
	"log/slog"

	dht "github.com/MichaelS11/go-dht"

	"hvac-node/errcode"
	"hvac-node/types"
)

// DHT22 reads a DHT22 on a single GPIO data pin.
type DHT22 struct {
	pin string
	dev *dht.DHT
	log *slog.Logger
}

func NewDHT22(pin string, l *slog.Logger) *DHT22 {
	return &DHT22{
		pin: pin,
		log: l.With(slog.String("component", "sensor"), slog.String("driver", "dht22")),
	}
}

func (s *DHT22) Init(ctx context.Context) error {
	if err := dht.HostInit(); err != nil {
		return errcode.Wrap(errcode.Unsupported, "dht22.init", err)
	}
	d, err := dht.NewDHT(s.pin, dht.Celsius, "dht22")
	if err != nil {
		return errcode.Wrap(errcode.Unsupported, "dht22.init", err)
	}
	s.dev = d
	return nil
}

func (s *DHT22) Read() types.Reading {
	if s.dev == nil {
		return types.InvalidReading()
	}
	humidity, temperature, err := s.dev.Read()
	if err != nil {
		s.log.Debug("read failed", slog.Any("error", err))
		return types.InvalidReading()
	}
	return types.Reading{Temperature: temperature, Humidity: humidity}
}
