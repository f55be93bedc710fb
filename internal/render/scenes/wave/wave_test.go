package wave

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

func TestKernelSkipsCentre(t *testing.T) {
	k := kernel(2)
	assert.Len(t, k, 24)
	for _, tp := range k {
		if tp.dx == 0 && tp.dy == 0 {
			t.Fatalf("centre present in kernel")
		}
		want := math.Pow(1/float64(tp.dx*tp.dx+tp.dy*tp.dy), 0.1)
		assert.InDelta(t, want, float64(tp.w), 1e-6)
	}
}

func TestFieldStaysInRangeAndAlive(t *testing.T) {
	const w, h = 64, 32
	s := New(w, h, rand.New(rand.NewPCG(7, 11)))
	c := canvas.New(w, h)
	dt := time.Second / 30

	for i := 0; i < 600; i++ {
		tick := render.FrameTick{Delta: dt, DT: dt.Seconds(), T: float64(i) * dt.Seconds()}
		s.Tick(c, tick)
		var sum float64
		for j, v := range s.Field() {
			if v < 0 || v > 1 {
				t.Fatalf("tick %d: cell %d out of range: %v", i, j, v)
			}
			sum += float64(v)
		}
		if i >= 100 {
			mean := sum / float64(w*h)
			if mean <= 0.05 || mean >= 0.95 {
				t.Fatalf("tick %d: mean %.3f collapsed", i, mean)
			}
		}
	}
}

func TestZeroDeltaHoldsBrightCells(t *testing.T) {
	s := New(8, 8, rand.New(rand.NewPCG(1, 2)))
	for i := range s.cur {
		s.cur[i] = 0.9
	}
	s.step(0)
	for _, v := range s.Field() {
		assert.Equal(t, float32(0.9), v)
	}
}

func TestRenderPaintsEveryPixel(t *testing.T) {
	s := New(4, 4, rand.New(rand.NewPCG(3, 4)))
	for i := range s.cur {
		s.cur[i] = 1
	}
	c := canvas.New(4, 4)
	s.draw(c, 0)
	for i := 0; i < c.Len(); i++ {
		assert.True(t, c.Lit(i))
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 63, wrap(-1, 64))
	assert.Equal(t, 0, wrap(64, 64))
	assert.Equal(t, 5, wrap(5, 64))
}
