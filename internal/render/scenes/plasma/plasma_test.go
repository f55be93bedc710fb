package plasma

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

func TestSampleRange(t *testing.T) {
	for _, tt := range []float64{0, 0.5, 3, 17.25, 400} {
		for x := -5.0; x <= 5; x += 0.7 {
			for y := -5.0; y <= 5; y += 0.9 {
				u, v := Sample(x, y, tt)
				if u < 0 || u > 1 || v < 0 || v > 1 {
					t.Fatalf("out of range at (%v,%v,%v): %v %v", x, y, tt, u, v)
				}
			}
		}
	}
}

func TestTickIsDeterministic(t *testing.T) {
	a, b := canvas.New(16, 8), canvas.New(16, 8)
	tick := render.FrameTick{T: 12.5}
	New().Tick(a, tick)
	New().Tick(b, tick)
	assert.Equal(t, a.Pix, b.Pix)

	New().Tick(b, render.FrameTick{T: 13.5})
	assert.NotEqual(t, a.Pix, b.Pix)
}
