// Package ir forwards HVAC commands to an infrared blaster reachable over
// MQTT (Tasmota IRsend style). The node itself carries no IR codes; each
// mode's payload comes from configuration.
package ir

import (
	"context"
	"log/slog"

	"periph.io/x/conn/v3/gpio"

	"hvac-node/errcode"
	"hvac-node/services/command"
)

// Publisher sends a raw payload to an absolute MQTT topic.
type Publisher interface {
	PublishRaw(topic string, payload []byte, retained bool) error
}

// PowerPin switches the transmitter supply. gpio.PinIO satisfies it.
type PowerPin interface {
	Out(l gpio.Level) error
}

type Bridge struct {
	pub      Publisher
	topic    string
	payloads map[command.Mode][]byte
	power    PowerPin
	log      *slog.Logger
}

// NewBridge builds a bridge from payloads keyed by mode name (off, dry,
// heat_auto_22). power may be nil.
func NewBridge(pub Publisher, topic string, payloads map[string]string, power PowerPin, l *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		pub:      pub,
		topic:    topic,
		payloads: make(map[command.Mode][]byte, len(payloads)),
		power:    power,
		log:      l.With(slog.String("component", "ir")),
	}
	for k, v := range payloads {
		m, ok := command.ParseMode(k)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidConfig, Op: "ir.new", Msg: "unknown mode " + k}
		}
		b.payloads[m] = []byte(v)
	}
	return b, nil
}

// Init powers the transmitter.
func (b *Bridge) Init(ctx context.Context) error {
	if b.power != nil {
		if err := b.power.Out(gpio.High); err != nil {
			return errcode.Wrap(errcode.Error, "ir.init", err)
		}
	}
	b.log.Debug("transmitter ready", slog.String("topic", b.topic), slog.Int("codes", len(b.payloads)))
	return nil
}

// Transmit implements command.Transmitter.
func (b *Bridge) Transmit(m command.Mode) error {
	p, ok := b.payloads[m]
	if !ok {
		return &errcode.E{C: errcode.NoPayload, Op: "ir.transmit", Msg: m.String()}
	}
	if err := b.pub.PublishRaw(b.topic, p, false); err != nil {
		return err
	}
	b.log.Info("ir command sent", slog.String("mode", m.String()), slog.String("topic", b.topic))
	return nil
}

// Close switches the transmitter off.
func (b *Bridge) Close() error {
	if b.power == nil {
		return nil
	}
	return b.power.Out(gpio.Low)
}
