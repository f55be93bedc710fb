package clock

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

const DefaultLayout = "15:04"

// Scene draws the wall-clock time, centred, in white on black.
type Scene struct {
	Layout string
	Face   font.Face
	Colour color.Color

	now func() time.Time
}

func New() *Scene {
	return &Scene{
		Layout: DefaultLayout,
		Face:   basicfont.Face7x13,
		Colour: color.White,
		now:    time.Now,
	}
}

// WithNow swaps the time source.
func (s *Scene) WithNow(now func() time.Time) *Scene {
	s.now = now
	return s
}

func (s *Scene) Name() string { return "clock" }

// Text is the string the next tick will draw.
func (s *Scene) Text() string { return s.now().Format(s.Layout) }

func (s *Scene) Tick(c *canvas.Canvas, _ render.FrameTick) {
	c.Clear()
	d := &font.Drawer{
		Dst:  c,
		Src:  image.NewUniform(s.Colour),
		Face: s.Face,
	}
	text := s.Text()
	bounds, _ := d.BoundString(text)
	width := (bounds.Max.X - bounds.Min.X).Ceil()
	m := s.Face.Metrics()
	height := (m.Ascent + m.Descent).Ceil()

	x := (c.Width() - width) / 2
	y := (c.Height()-height)/2 + m.Ascent.Ceil()
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
