package wave

import (
	"math"
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

const (
	searchRadius = 2
	falloff      = 0.1

	decayMin, decayMax       = 0.2, 0.4
	regrowMin, regrowMax     = 0.1, 0.35
	activateMin, activateMax = 0.4, 0.6
	jitterMin, jitterMax     = 0.9, 1.1

	chroma   = 0.1
	hueSpeed = 0.1
)

type tap struct {
	dx, dy int
	w      float32
}

// Scene is a decay/regrowth automaton on a torus. Cells fade each tick and,
// once dim enough, refill from a weighted average of their bright neighbours.
type Scene struct {
	w, h int
	cur  []float32
	prev []float32
	taps []tap
	rng  *rand.Rand
}

// New seeds the field uniformly from rng. A nil rng uses a random seed.
func New(w, h int, rng *rand.Rand) *Scene {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Scene{
		w:    w,
		h:    h,
		cur:  make([]float32, w*h),
		prev: make([]float32, w*h),
		taps: kernel(searchRadius),
		rng:  rng,
	}
	for i := range s.cur {
		s.cur[i] = rng.Float32()
	}
	return s
}

// kernel lists the neighbourhood offsets with inverse-distance weights.
// The centre is not part of its own neighbourhood.
func kernel(radius int) []tap {
	var out []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d2 := float64(dx*dx + dy*dy)
			out = append(out, tap{dx: dx, dy: dy, w: float32(math.Pow(1/d2, falloff))})
		}
	}
	return out
}

func (s *Scene) Name() string { return "wave" }

// Field exposes the current values, row-major.
func (s *Scene) Field() []float32 { return s.cur }

func (s *Scene) Tick(c *canvas.Canvas, tick render.FrameTick) {
	s.step(float32(tick.DT))
	s.draw(c, tick.T)
}

func (s *Scene) step(dt float32) {
	s.cur, s.prev = s.prev, s.cur
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			i := y*s.w + x
			last := s.prev[i]
			v := last * (1 - s.uniform(decayMin, decayMax)*dt)

			if last <= s.uniform(regrowMin, regrowMax) {
				var sum, norm float32
				for _, k := range s.taps {
					n := s.prev[wrap(y+k.dy, s.h)*s.w+wrap(x+k.dx, s.w)]
					if n > s.uniform(activateMin, activateMax) {
						sum += n * s.uniform(jitterMin, jitterMax) * k.w
						norm += k.w
					}
				}
				if norm > 0 {
					v = sum / norm
				}
			}
			s.cur[i] = clamp01(v)
		}
	}
}

func (s *Scene) draw(c *canvas.Canvas, t float64) {
	for y := 0; y < s.h && y < c.Height(); y++ {
		for x := 0; x < s.w && x < c.Width(); x++ {
			v := float64(s.cur[y*s.w+x])
			v *= v
			hue := math.Mod((v+t*hueSpeed)*360, 360)
			col := colorful.OkLch(v, chroma, hue).Clamped()
			c.SetPixel(x, y, float32(col.R), float32(col.G), float32(col.B))
		}
	}
}

func (s *Scene) uniform(lo, hi float32) float32 {
	return lo + (hi-lo)*s.rng.Float32()
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clamp01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
