package plasma

import (
	"math"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

// Scene is a stateless plasma field; each pixel is a closed-form
// function of its position and the scene time.
type Scene struct{}

func New() *Scene { return &Scene{} }

func (*Scene) Name() string { return "plasma" }

func (*Scene) Tick(c *canvas.Canvas, tick render.FrameTick) {
	t := tick.T * 0.5
	// coordinates are normalised against twice the width so a 64 wide
	// panel sees the same slice of the field as x/128
	scale := float64(2 * c.Width())
	if scale == 0 {
		return
	}
	zoom := 5 + math.Sin(t*0.25)
	ox, oy := math.Sin(t*0.25)*5, math.Cos(t*0.25)*5
	for y := 0; y < c.Height(); y++ {
		for x := 0; x < c.Width(); x++ {
			xp := (float64(x)/scale-0.5)*zoom + ox
			yp := (float64(y)/scale-0.5)*zoom + oy
			u, v := Sample(xp, yp, t)
			c.SetPixel(x, y, float32(u), float32(v), float32((u+v)/2))
		}
	}
}

// Sample evaluates the field at plane coordinates xp, yp and time t.
func Sample(xp, yp, t float64) (u, v float64) {
	p := math.Sin(
		math.Sin(math.Sin(0.25*t)*xp+math.Cos(0.29*t)*yp+t) +
			math.Sin(math.Hypot(xp+math.Sin(t*0.25)*4, yp+math.Cos(t*0.43)*4)+t) -
			math.Cos(math.Hypot(xp+math.Cos(t*0.36)*6, yp+math.Sin(t*0.39)*5.3)+t))

	u = math.Cos(9*p+0.5*xp+t)*0.5 + 0.5
	v = math.Sin(9*p+0.5*yp+t)*0.5 + 0.5
	return u * u, v * v
}
