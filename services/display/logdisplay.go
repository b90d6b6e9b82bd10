package display

import (
	"context"
	"image"
	"log/slog"
	"slices"
	"sync"
)

// Log is a headless display: Flush writes the current lines to the log.
type Log struct {
	mu    sync.Mutex
	lines map[image.Point]string
	log   *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	return &Log{lines: map[image.Point]string{}, log: l.With(slog.String("component", "display"))}
}

func (d *Log) Init(ctx context.Context) error { return nil }

func (d *Log) WriteRegion(x, y int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines[image.Pt(x, y)] = text
	return nil
}

func (d *Log) Flush() error {
	for _, line := range d.Lines() {
		d.log.Info("screen", slog.String("line", line))
	}
	return nil
}

// Lines returns the text top to bottom, then left to right.
func (d *Log) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	pts := make([]image.Point, 0, len(d.lines))
	for p := range d.lines {
		pts = append(pts, p)
	}
	slices.SortFunc(pts, func(a, b image.Point) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
	out := make([]string, len(pts))
	for i, p := range pts {
		out[i] = d.lines[p]
	}
	return out
}

func (d *Log) Close() error { return nil }
