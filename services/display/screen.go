// Package display renders the node's text lines onto a monochrome panel.
package display

import (
	"context"
	"image"
	"image/draw"
	"log/slog"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"hvac-node/errcode"
)

// LineHeight is the pixel height of one text line in the built-in face.
const LineHeight = 13

// Panel is the physical display. *ssd1306.Dev satisfies it.
type Panel interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
	Halt() error
}

// Opener powers up and returns a panel.
type Opener func() (Panel, error)

// Screen keeps a frame buffer; WriteRegion edits the buffer and Flush pushes
// it to the panel.
type Screen struct {
	open   Opener
	settle time.Duration
	panel  Panel

	buf  *image1bit.VerticalLSB
	face font.Face
	log  *slog.Logger
}

func NewScreen(open Opener, width, height int, settle time.Duration, l *slog.Logger) *Screen {
	return &Screen{
		open:   open,
		settle: settle,
		buf:    image1bit.NewVerticalLSB(image.Rect(0, 0, width, height)),
		face:   basicfont.Face7x13,
		log:    l.With(slog.String("component", "display")),
	}
}

// Init opens the panel, waits for it to settle and blanks it.
func (s *Screen) Init(ctx context.Context) error {
	p, err := s.open()
	if err != nil {
		return errcode.Wrap(errcode.Unsupported, "display.init", err)
	}
	s.panel = p
	if s.settle > 0 {
		t := time.NewTimer(s.settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	s.Clear()
	return s.Flush()
}

func (s *Screen) Clear() {
	draw.Draw(s.buf, s.buf.Bounds(), image.NewUniform(image1bit.Off), image.Point{}, draw.Src)
}

// WriteRegion blanks the line starting at (x, y) to the right edge and draws
// text in it. y is the top of the line.
func (s *Screen) WriteRegion(x, y int, text string) error {
	line := image.Rect(x, y, s.buf.Bounds().Max.X, y+LineHeight).Intersect(s.buf.Bounds())
	if line.Empty() {
		return &errcode.E{C: errcode.Unsupported, Op: "display.write", Msg: "region outside the screen"}
	}
	draw.Draw(s.buf, line, image.NewUniform(image1bit.Off), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  s.buf,
		Src:  image.NewUniform(image1bit.On),
		Face: s.face,
		Dot:  fixed.P(x, y+s.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return nil
}

func (s *Screen) Flush() error {
	if s.panel == nil {
		return errcode.Wrap(errcode.NotConnected, "display.flush", nil)
	}
	return s.panel.Draw(s.panel.Bounds(), s.buf, image.Point{})
}

// Close blanks and halts the panel.
func (s *Screen) Close() error {
	if s.panel == nil {
		return nil
	}
	return s.panel.Halt()
}
