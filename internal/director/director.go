// Package director runs the render loop: it picks day or night from the
// ambient level, composes the frame and hands it to the display sink.
package director

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/display"
	"github.com/coreman2200/matryx/internal/render"
	"github.com/coreman2200/matryx/internal/render/post"
	"github.com/coreman2200/matryx/internal/sequence"
)

type Mode string

const (
	ModeDay   Mode = "day"
	ModeNight Mode = "night"
)

const (
	HueStart = -180.0
	HueEnd   = 180.0
)

// ModeObserver hears about every day/night switch. Calls happen on the
// render goroutine.
type ModeObserver interface {
	ObserveMode(mode Mode, level uint8)
}

type ModeObserverFunc func(Mode, uint8)

func (f ModeObserverFunc) ObserveMode(m Mode, level uint8) { f(m, level) }

// LevelSource is where the latest ambient reading comes from. Load must not
// block.
type LevelSource interface {
	Load() uint8
}

type Config struct {
	NightThreshold  uint8   // levels at or below this are night
	NightBrightness uint8   // sent with every night frame
	DayBrightness   uint8   // sent with every day frame
	OverlayDim      float64 // day pixels under the overlay are scaled by this
	HueStep         float64 // degrees added per day frame; 0 turns the sweep off
	NightDarken     float64 // 0 leaves night frames alone
	NightRedOnly    bool
	Overlay         string // registry name of the overlay scene
	DayScene        string
	// Playlist replaces DayScene when it has clips.
	Playlist sequence.Program
}

func DefaultConfig() Config {
	return Config{
		NightThreshold:  24,
		NightBrightness: 10,
		DayBrightness:   100,
		OverlayDim:      0.1,
		HueStep:         1,
		Overlay:         "clock",
		DayScene:        "wave",
	}
}

// Director owns every canvas and scene; only its goroutine touches them.
type Director struct {
	cfg   Config
	reg   *render.Registry
	sink  display.Sink
	level LevelSource
	w, h  int

	overlay render.Scene
	active  render.Scene
	armed   render.Scene
	alpha   float64
	player  *sequence.Player
	scenes  map[string]render.Scene

	overlayBuf *canvas.Canvas
	dayBuf     *canvas.Canvas
	nextBuf    *canvas.Canvas
	outBuf     *canvas.Canvas

	hue    float64
	frames uint64

	mu        sync.RWMutex
	mode      Mode
	observers []ModeObserver
}

func New(reg *render.Registry, sink display.Sink, level LevelSource, w, h int, cfg Config) (*Director, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("director: bad size %dx%d", w, h)
	}
	if sink == nil || level == nil {
		return nil, fmt.Errorf("director: sink and level source are required")
	}
	d := &Director{
		cfg:        cfg,
		reg:        reg,
		sink:       sink,
		level:      level,
		w:          w,
		h:          h,
		scenes:     map[string]render.Scene{},
		overlayBuf: canvas.New(w, h),
		dayBuf:     canvas.New(w, h),
		nextBuf:    canvas.New(w, h),
		outBuf:     canvas.New(w, h),
		hue:        HueStart,
	}
	var err error
	if d.overlay, err = d.scene(cfg.Overlay); err != nil {
		return nil, err
	}
	if len(cfg.Playlist.Clips) > 0 {
		for _, c := range cfg.Playlist.Clips {
			if !reg.Has(c.Scene) {
				return nil, fmt.Errorf("director: playlist scene %q is not registered", c.Scene)
			}
		}
		d.player = sequence.NewPlayer(d.hooks())
		if err := d.player.Load(cfg.Playlist); err != nil {
			return nil, fmt.Errorf("director: %w", err)
		}
		d.player.Start()
		if d.active == nil {
			return nil, fmt.Errorf("director: playlist did not select a scene")
		}
		return d, nil
	}
	if d.active, err = d.scene(cfg.DayScene); err != nil {
		return nil, err
	}
	return d, nil
}

// scene returns the instance for name, creating it on first use so state
// survives between playlist visits.
func (d *Director) scene(name string) (render.Scene, error) {
	if s, ok := d.scenes[name]; ok {
		return s, nil
	}
	s, ok := d.reg.New(name, d.w, d.h)
	if !ok {
		return nil, fmt.Errorf("director: scene %q is not registered", name)
	}
	d.scenes[name] = s
	return s, nil
}

func (d *Director) hooks() sequence.Hooks {
	return sequence.Hooks{
		SetScene: func(name string) {
			if s, err := d.scene(name); err == nil {
				d.active = s
				d.armed = nil
				d.alpha = 0
			}
		},
		ArmNext: func(name string) {
			// a clip followed by the same scene just carries on
			if s, err := d.scene(name); err == nil && s != d.active {
				d.armed = s
			}
		},
		SetCrossfade: func(a float64) {
			switch {
			case a >= 1:
				if d.armed != nil {
					d.active = d.armed
				}
				d.armed = nil
				d.alpha = 0
			case a <= 0:
				d.alpha = 0
			default:
				d.alpha = a
			}
		},
		SetParam: d.setParam,
	}
}

func (d *Director) setParam(name string, v float64) {
	switch name {
	case "hue_step":
		d.cfg.HueStep = v
	case "overlay_dim":
		d.cfg.OverlayDim = v
	}
}

// Observe registers o for mode changes.
func (d *Director) Observe(o ModeObserver) {
	if o == nil {
		return
	}
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// Mode is the mode of the last frame, empty before the first.
func (d *Director) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// Hue is the shift applied to the last day frame.
func (d *Director) Hue() float64 { return d.hue }

// Frames is how many frames have been sent.
func (d *Director) Frames() uint64 { return d.frames }

// ActiveScene names the day scene on screen.
func (d *Director) ActiveScene() string {
	if d.active == nil {
		return ""
	}
	return d.active.Name()
}

// Step renders and sends one frame for tick.
func (d *Director) Step(tick render.FrameTick) {
	d.overlay.Tick(d.overlayBuf, tick)
	level := d.level.Load()

	mode := ModeDay
	if level <= d.cfg.NightThreshold {
		mode = ModeNight
	}
	d.setMode(mode, level)

	var (
		out    *canvas.Canvas
		bright uint8
	)
	if mode == ModeNight {
		out = d.night()
		bright = d.cfg.NightBrightness
	} else {
		out = d.day(tick)
		bright = d.cfg.DayBrightness
	}

	if err := d.sink.SendBrightness(bright); err != nil {
		log.Debug().Err(err).Str("component", "director").Msg("send brightness")
	}
	if err := d.sink.SendFrame(out.Bytes()); err != nil {
		log.Debug().Err(err).Str("component", "director").Msg("send frame")
	}
	d.frames++
}

func (d *Director) night() *canvas.Canvas {
	if d.cfg.NightDarken <= 0 && !d.cfg.NightRedOnly {
		return d.overlayBuf
	}
	d.outBuf.CopyFrom(d.overlayBuf)
	if d.cfg.NightDarken > 0 {
		post.Lightness(d.outBuf, d.cfg.NightDarken)
	}
	if d.cfg.NightRedOnly {
		post.RedOnly(d.outBuf)
	}
	return d.outBuf
}

func (d *Director) day(tick render.FrameTick) *canvas.Canvas {
	if d.player != nil {
		d.player.Tick(tick.DT)
	}
	d.active.Tick(d.dayBuf, tick)
	out := d.dayBuf
	if d.armed != nil && d.armed != d.active && d.alpha > 0 {
		d.armed.Tick(d.nextBuf, tick)
		post.Mix(d.outBuf, d.dayBuf, d.nextBuf, d.alpha)
		out = d.outBuf
	}
	post.DimInside(out, d.overlayBuf, d.cfg.OverlayDim)
	if d.cfg.HueStep != 0 {
		d.advanceHue()
		post.HueShift(out, d.hue)
	}
	return out
}

func (d *Director) advanceHue() {
	if d.hue >= HueEnd {
		d.hue = HueStart
		return
	}
	d.hue += d.cfg.HueStep
	if d.hue > HueEnd {
		d.hue = HueEnd
	}
}

func (d *Director) setMode(m Mode, level uint8) {
	d.mu.Lock()
	changed := d.mode != m
	d.mode = m
	obs := d.observers
	d.mu.Unlock()
	if !changed {
		return
	}
	log.Info().Str("component", "director").Str("mode", string(m)).Uint8("level", level).Msg("mode changed")
	for _, o := range obs {
		o.ObserveMode(m, level)
	}
}

// Run renders frames paced by sched until ctx is done.
func (d *Director) Run(ctx context.Context, sched *render.Scheduler) error {
	if sched == nil {
		sched = render.NewScheduler(render.DefaultPeriod)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.Step(sched.Tick())
		sched.WaitForNextFrame()
	}
}
