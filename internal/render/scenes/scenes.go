package scenes

import (
	"math/rand/v2"

	"github.com/coreman2200/matryx/internal/render"
	"github.com/coreman2200/matryx/internal/render/scenes/clock"
	"github.com/coreman2200/matryx/internal/render/scenes/plasma"
	"github.com/coreman2200/matryx/internal/render/scenes/sand"
	"github.com/coreman2200/matryx/internal/render/scenes/wave"
)

// Register adds every built-in scene to reg. A zero seed draws a random one
// per scene instance.
func Register(reg *render.Registry, seed uint64) {
	rng := func() *rand.Rand {
		if seed == 0 {
			return nil
		}
		return rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	reg.Register("wave", func(w, h int) render.Scene { return wave.New(w, h, rng()) })
	reg.Register("sand", func(w, h int) render.Scene { return sand.New(w, h, sand.Options{Rand: rng()}) })
	reg.Register("plasma", func(w, h int) render.Scene { return plasma.New() })
	reg.Register("clock", func(w, h int) render.Scene { return clock.New() })
}

// Default is a registry holding the built-in scenes.
func Default(seed uint64) *render.Registry {
	reg := render.NewRegistry()
	Register(reg, seed)
	return reg
}
