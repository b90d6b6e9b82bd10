package command

import (
	"log/slog"

	"hvac-node/errcode"
)

// Transmitter emits the hardware action for a mode. It is called at most
// once per accepted write and never for ModeUnknown.
type Transmitter interface {
	Transmit(m Mode) error
}

type Dispatcher struct {
	tx  Transmitter
	log *slog.Logger
}

// NewDispatcher builds a dispatcher. tx may be nil, in which case commands
// are only logged.
func NewDispatcher(tx Transmitter, l *slog.Logger) *Dispatcher {
	return &Dispatcher{tx: tx, log: l.With(slog.String("component", "command"))}
}

// OnModeWrite handles a remote write of the mode property and reports whether
// the property store should take the value.
func (d *Dispatcher) OnModeWrite(raw string) bool {
	accepted, m := Decide(raw)
	if !accepted {
		d.log.Warn("HVAC mode rejected", slog.String("code", string(errcode.EmptyCommand)))
		return false
	}

	d.log.Info("HVAC mode received", slog.String("value", raw))
	if m == ModeUnknown {
		d.log.Info(m.Description(), slog.String("value", raw))
		return true
	}
	d.log.Info(m.Description(), slog.String("mode", m.String()))

	if d.tx != nil {
		if err := d.tx.Transmit(m); err != nil {
			d.log.Warn("transmit failed",
				slog.String("mode", m.String()),
				slog.String("code", string(errcode.Of(err))),
				slog.Any("error", err))
		}
	}
	return true
}
