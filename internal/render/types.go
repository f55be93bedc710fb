package render

import (
	"sort"
	"time"

	"github.com/coreman2200/matryx/internal/canvas"
)

// FrameTick is the timing snapshot handed to every scene for one frame.
type FrameTick struct {
	Start   time.Time
	Instant time.Time
	Delta   time.Duration
	T       float64 // seconds since Start
	DT      float64 // seconds since previous tick
}

// Scene draws into a canvas once per frame. Scenes keep their own state
// and are only touched from the render goroutine.
type Scene interface {
	Name() string
	Tick(c *canvas.Canvas, tick FrameTick)
}

// Factory builds a scene for a canvas of w x h pixels.
type Factory func(w, h int) Scene

type Registry struct{ m map[string]Factory }

func NewRegistry() *Registry { return &Registry{m: map[string]Factory{}} }

func (r *Registry) Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	r.m[name] = f
}

// New builds a fresh instance of the named scene.
func (r *Registry) New(name string, w, h int) (Scene, bool) {
	f, ok := r.m[name]
	if !ok {
		return nil, false
	}
	return f(w, h), true
}

func (r *Registry) Has(name string) bool { _, ok := r.m[name]; return ok }

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
