// Package node wires the collaborators together: the ordered startup, the
// advertised properties and the single loop that serialises measurement
// ticks with remote mode writes.
package node

import (
	"context"
	"log/slog"

	"hvac-node/errcode"
	"hvac-node/services/display"
	"hvac-node/services/measure"
)

// Step is one collaborator initialisation.
type Step struct {
	Name string
	Init func(ctx context.Context) error
}

// Startup runs steps in order, logging each success, and stops at the
// first failure.
func Startup(ctx context.Context, l *slog.Logger, steps ...Step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Init(ctx); err != nil {
			l.Error(s.Name+" setup failed", slog.String("code", string(errcode.Of(err))), slog.Any("error", err))
			return &errcode.E{C: errcode.Of(err), Op: "startup", Msg: s.Name, Err: err}
		}
		l.Info(s.Name + " setup ok")
	}
	return nil
}

// Layout is the full screen: firmware identity above the two reading lines.
type Layout struct {
	Name    measure.Region
	Version measure.Region
	Reading measure.Layout
}

// DefaultLayout stacks the four lines from the top-left corner.
func DefaultLayout() Layout {
	return Layout{
		Name:    measure.Region{X: 0, Y: 0},
		Version: measure.Region{X: 0, Y: display.LineHeight},
		Reading: measure.Layout{
			Temperature: measure.Region{X: 0, Y: 2 * display.LineHeight},
			Humidity:    measure.Region{X: 0, Y: 3 * display.LineHeight},
		},
	}
}

// ShowInfo draws the firmware identity and zeroed readings.
func ShowInfo(d measure.Display, lay Layout, name, version string) error {
	zero := measure.FormatValue(0)
	lines := []struct {
		r    measure.Region
		text string
	}{
		{lay.Name, "Name: " + name},
		{lay.Version, "Ver : " + version},
		{lay.Reading.Temperature, measure.TemperatureText(zero)},
		{lay.Reading.Humidity, measure.HumidityText(zero)},
	}
	for _, ln := range lines {
		if err := d.WriteRegion(ln.r.X, ln.r.Y, ln.text); err != nil {
			return err
		}
	}
	return d.Flush()
}
