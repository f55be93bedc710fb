package sand

import (
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/render"
)

const (
	// Threshold is the pressure a tile keeps for itself.
	Threshold = 0.1
	// BasePressure is added for every sand tile resting on top of another.
	BasePressure = 100000.0

	spoutEvery = 1.0 // seconds
	spoutReset = 2.0
)

var sandColour = [3]float32{0, 0.9, 0.7}

type Kind uint8

const (
	Empty Kind = iota
	Sand
)

type Tile struct {
	Kind     Kind
	Pressure float32
}

// Options tune the spout. Zero values pick the defaults.
type Options struct {
	Rand   *rand.Rand
	Batch  int // tiles per spout; negative disables spawning
	Spread int // max column offset from centre
}

// Scene is a falling sand automaton where stacked tiles build pressure
// that pushes sand sideways.
type Scene struct {
	w, h  int
	grid  []Tile
	order []int
	moved []bool
	rng   *rand.Rand

	batch, spread int
	lastSpout     float64

	violations int
}

func New(w, h int, o Options) *Scene {
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Batch == 0 {
		o.Batch = 5
	}
	if o.Spread == 0 {
		o.Spread = w * 5 / 16
	}
	order := make([]int, w*h)
	for i := range order {
		order[i] = i
	}
	return &Scene{
		w:      w,
		h:      h,
		grid:   make([]Tile, w*h),
		order:  order,
		moved:  make([]bool, w*h),
		rng:    o.Rand,
		batch:  o.Batch,
		spread: o.Spread,
	}
}

func (s *Scene) Name() string { return "sand" }

// Tile returns the tile at x,y and whether the point is on the grid.
func (s *Scene) Tile(x, y int) (Tile, bool) {
	if !s.inBounds(x, y) {
		return Tile{}, false
	}
	return s.grid[y*s.w+x], true
}

// Place puts a tile on the grid; off-grid points are ignored.
func (s *Scene) Place(x, y int, t Tile) {
	if s.inBounds(x, y) {
		s.grid[y*s.w+x] = t
	}
}

// Count is the number of sand tiles on the grid.
func (s *Scene) Count() int {
	n := 0
	for _, t := range s.grid {
		if t.Kind == Sand {
			n++
		}
	}
	return n
}

// Violations counts passes that changed the number of sand tiles.
func (s *Scene) Violations() int { return s.violations }

func (s *Scene) Tick(c *canvas.Canvas, tick render.FrameTick) {
	s.Step(tick.T)
	s.draw(c)
}

// Step advances the automaton one tick at scene time t (seconds).
func (s *Scene) Step(t float64) {
	n := s.Count()
	n = s.check("spawn", n, s.spawn(t))

	s.rng.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })

	s.gravity()
	n = s.check("gravity", n, 0)
	s.accumulate()
	n = s.check("accumulate", n, 0)
	s.relieve()
	n = s.check("relieve", n, 0)
	s.settle()
	s.check("settle", n, 0)
}

func (s *Scene) check(pass string, before, added int) int {
	after := s.Count()
	if after != before+added {
		s.violations++
		log.Error().
			Str("component", "sand").
			Str("pass", pass).
			Int("in", before+added).
			Int("out", after).
			Msg("sand count changed")
	}
	return after
}

func (s *Scene) spawn(t float64) int {
	if s.batch < 0 || s.w == 0 || s.h == 0 || t-s.lastSpout < spoutEvery {
		return 0
	}
	if t-s.lastSpout >= spoutReset {
		s.lastSpout = t
	}
	added := 0
	centre := s.w / 2
	for i := 0; i < s.batch; i++ {
		x := centre
		if s.spread > 0 {
			x += s.rng.IntN(2*s.spread) - s.spread
		}
		x = min(max(x, 0), s.w-1)
		if s.grid[x].Kind == Empty {
			s.grid[x] = Tile{Kind: Sand}
			added++
		}
	}
	return added
}

func (s *Scene) gravity() {
	clear(s.moved)
	for _, i := range s.order {
		if s.moved[i] || s.grid[i].Kind != Sand {
			continue
		}
		x, y := i%s.w, i/s.w
		dest := -1
		if s.isEmpty(x, y+1) {
			dest = i + s.w
		} else {
			l, r := s.isEmpty(x-1, y+1), s.isEmpty(x+1, y+1)
			switch {
			case l && r:
				if s.rng.IntN(2) == 0 {
					dest = i + s.w - 1
				} else {
					dest = i + s.w + 1
				}
			case l:
				dest = i + s.w - 1
			case r:
				dest = i + s.w + 1
			}
		}
		if dest < 0 {
			continue
		}
		s.grid[dest] = Tile{Kind: Sand}
		s.grid[i] = Tile{}
		s.moved[dest] = true
	}
}

func (s *Scene) accumulate() {
	for _, i := range s.order {
		if s.grid[i].Kind != Sand || i < s.w {
			continue
		}
		if above := s.grid[i-s.w]; above.Kind == Sand {
			s.grid[i].Pressure = BasePressure + above.Pressure
		}
	}
}

func (s *Scene) relieve() {
	for _, i := range s.order {
		t := s.grid[i]
		if t.Kind != Sand || t.Pressure <= Threshold {
			continue
		}
		x, y := i%s.w, i/s.w
		excess := t.Pressure - Threshold
		l, r := s.isSand(x-1, y), s.isSand(x+1, y)
		switch {
		case l && r:
			s.grid[i-1].Pressure += excess / 2
			s.grid[i+1].Pressure += excess / 2
		case l:
			s.grid[i-1].Pressure += excess
		case r:
			s.grid[i+1].Pressure += excess
		default:
			continue
		}
		s.grid[i].Pressure -= excess
	}
}

func (s *Scene) settle() {
	clear(s.moved)
	for _, i := range s.order {
		t := s.grid[i]
		if s.moved[i] || t.Kind != Sand || t.Pressure < Threshold {
			continue
		}
		x, y := i%s.w, i/s.w
		l, r := s.isEmpty(x-1, y), s.isEmpty(x+1, y)
		dest := -1
		switch {
		case l && r:
			if s.rng.IntN(2) == 0 {
				dest = i - 1
			} else {
				dest = i + 1
			}
		case l:
			dest = i - 1
		case r:
			dest = i + 1
		}
		if dest < 0 {
			continue
		}
		s.grid[dest] = Tile{Kind: Sand, Pressure: t.Pressure - Threshold}
		s.grid[i] = Tile{}
		s.moved[dest] = true
	}
}

func (s *Scene) draw(c *canvas.Canvas) {
	for y := 0; y < s.h && y < c.Height(); y++ {
		for x := 0; x < s.w && x < c.Width(); x++ {
			if s.grid[y*s.w+x].Kind == Sand {
				c.SetPixel(x, y, sandColour[0], sandColour[1], sandColour[2])
			} else {
				c.SetPixel(x, y, 0, 0, 0)
			}
		}
	}
}

func (s *Scene) inBounds(x, y int) bool { return x >= 0 && y >= 0 && x < s.w && y < s.h }

// off-grid cells are walls: neither empty nor sand
func (s *Scene) isEmpty(x, y int) bool {
	return s.inBounds(x, y) && s.grid[y*s.w+x].Kind == Empty
}

func (s *Scene) isSand(x, y int) bool {
	return s.inBounds(x, y) && s.grid[y*s.w+x].Kind == Sand
}
