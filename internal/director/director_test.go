package director

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/matryx/internal/ambient"
	"github.com/coreman2200/matryx/internal/canvas"
	"github.com/coreman2200/matryx/internal/display"
	"github.com/coreman2200/matryx/internal/render"
	"github.com/coreman2200/matryx/internal/sequence"
)

type fill struct {
	name    string
	r, g, b float32
}

func (f fill) Name() string { return f.name }
func (f fill) Tick(c *canvas.Canvas, _ render.FrameTick) {
	c.ClearTo(f.r, f.g, f.b)
}

// dot lights only the top-left pixel.
type dot struct{}

func (dot) Name() string { return "dot" }
func (dot) Tick(c *canvas.Canvas, _ render.FrameTick) {
	c.Clear()
	c.SetPixel(0, 0, 1, 1, 1)
}

// counter counts its ticks.
type counter struct{ ticks int }

func (c *counter) Name() string { return "counter" }
func (c *counter) Tick(cv *canvas.Canvas, _ render.FrameTick) {
	c.ticks++
	cv.ClearTo(0, 1, 0)
}

type levelFunc func() uint8

func (f levelFunc) Load() uint8 { return f() }

func testRegistry() *render.Registry {
	reg := render.NewRegistry()
	reg.Register("dot", func(w, h int) render.Scene { return dot{} })
	reg.Register("blank", func(w, h int) render.Scene { return fill{name: "blank"} })
	reg.Register("red", func(w, h int) render.Scene { return fill{name: "red", r: 1} })
	reg.Register("blue", func(w, h int) render.Scene { return fill{name: "blue", b: 1} })
	return reg
}

func newDirector(t *testing.T, level *uint8, mod func(*Config)) (*Director, *display.Recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Overlay = "dot"
	cfg.DayScene = "red"
	cfg.HueStep = 0
	if mod != nil {
		mod(&cfg)
	}
	rec := &display.Recorder{}
	d, err := New(testRegistry(), rec, levelFunc(func() uint8 { return *level }), 4, 2, cfg)
	require.NoError(t, err)
	return d, rec
}

func TestNightSendsOverlayDimly(t *testing.T) {
	level := uint8(10)
	d, rec := newDirector(t, &level, nil)
	d.Step(render.FrameTick{})

	assert.Equal(t, ModeNight, d.Mode())
	assert.Equal(t, []uint8{10}, rec.Levels())
	frame := rec.Last()
	require.Len(t, frame, 4*2*3)
	assert.Equal(t, []byte{255, 255, 255}, frame[:3])
	assert.Equal(t, []byte{0, 0, 0}, frame[3:6])
	assert.Equal(t, -180.0, d.Hue(), "hue only moves on day frames")
}

func TestDayDimsUnderOverlay(t *testing.T) {
	level := uint8(200)
	d, rec := newDirector(t, &level, nil)
	d.Step(render.FrameTick{})

	assert.Equal(t, ModeDay, d.Mode())
	assert.Equal(t, []uint8{100}, rec.Levels())
	frame := rec.Last()
	assert.InDelta(t, 25, int(frame[0]), 1)
	assert.Equal(t, byte(0), frame[1])
	assert.Equal(t, []byte{255, 0, 0}, frame[3:6])
}

func TestThresholdIsInclusive(t *testing.T) {
	level := uint8(24)
	d, _ := newDirector(t, &level, nil)
	d.Step(render.FrameTick{})
	assert.Equal(t, ModeNight, d.Mode())

	level = 25
	d.Step(render.FrameTick{})
	assert.Equal(t, ModeDay, d.Mode())
}

func TestDefaultLevelIsDay(t *testing.T) {
	cell := ambient.NewCell()
	d, err := New(testRegistry(), &display.Recorder{}, cell, 4, 2, Config{
		NightThreshold: 24, Overlay: "dot", DayScene: "red", HueStep: 1,
	})
	require.NoError(t, err)
	d.Step(render.FrameTick{})
	assert.Equal(t, ModeDay, d.Mode())
}

func TestHueSweepWraps(t *testing.T) {
	level := uint8(200)
	d, _ := newDirector(t, &level, func(c *Config) { c.HueStep = 1 })

	d.Step(render.FrameTick{})
	assert.Equal(t, -179.0, d.Hue())
	for i := 0; i < 359; i++ {
		d.Step(render.FrameTick{})
	}
	assert.Equal(t, 180.0, d.Hue())
	d.Step(render.FrameTick{})
	assert.Equal(t, -180.0, d.Hue())
	d.Step(render.FrameTick{})
	assert.Equal(t, -179.0, d.Hue())
}

func TestModeObserversOnlyHearChanges(t *testing.T) {
	level := uint8(200)
	d, _ := newDirector(t, &level, nil)
	var seen []Mode
	d.Observe(ModeObserverFunc(func(m Mode, _ uint8) { seen = append(seen, m) }))

	for _, l := range []uint8{200, 200, 10, 10, 200} {
		level = l
		d.Step(render.FrameTick{})
	}
	assert.Equal(t, []Mode{ModeDay, ModeNight, ModeDay}, seen)
	assert.Equal(t, uint64(5), d.Frames())
}

func TestNightFiltersAreOptional(t *testing.T) {
	level := uint8(0)
	d, rec := newDirector(t, &level, func(c *Config) { c.NightRedOnly = true })
	d.Step(render.FrameTick{})
	assert.Equal(t, []byte{255, 0, 0}, rec.Last()[:3])
}

func TestPlaylistCrossfades(t *testing.T) {
	level := uint8(200)
	d, rec := newDirector(t, &level, func(c *Config) {
		c.Overlay = "blank"
		c.Playlist = sequence.Program{Loop: true, Clips: []sequence.Clip{
			{Scene: "red", DurationS: 1, XFadeS: 0.5},
			{Scene: "blue", DurationS: 1},
		}}
	})
	assert.Equal(t, "red", d.ActiveScene())

	step := func() []byte {
		d.Step(render.FrameTick{DT: 0.25})
		return rec.Last()[:3]
	}
	assert.Equal(t, []byte{255, 0, 0}, step())   // t=.25
	assert.Equal(t, []byte{255, 0, 0}, step())   // t=.5, alpha 0
	assert.Equal(t, []byte{128, 0, 128}, step()) // t=.75, alpha .5
	assert.Equal(t, []byte{0, 0, 255}, step())   // t=1, blue promoted
	assert.Equal(t, "blue", d.ActiveScene())
}

func TestRepeatedSceneIsTickedOncePerFrame(t *testing.T) {
	reg := testRegistry()
	var made []*counter
	reg.Register("counter", func(w, h int) render.Scene {
		c := &counter{}
		made = append(made, c)
		return c
	})
	cfg := DefaultConfig()
	cfg.Overlay = "blank"
	cfg.HueStep = 0
	cfg.Playlist = sequence.Program{Loop: true, Clips: []sequence.Clip{
		{Scene: "counter", DurationS: 1, XFadeS: 0.5},
		{Scene: "counter", DurationS: 1, XFadeS: 0.5},
	}}
	rec := &display.Recorder{}
	d, err := New(reg, rec, levelFunc(func() uint8 { return 200 }), 4, 2, cfg)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		d.Step(render.FrameTick{DT: 0.25})
	}
	require.Len(t, made, 1)
	assert.Equal(t, 8, made[0].ticks)
	assert.Equal(t, "counter", d.ActiveScene())
	assert.Equal(t, []byte{0, 255, 0}, rec.Last()[:3])
}

func TestNewRejectsUnknownScenes(t *testing.T) {
	rec := &display.Recorder{}
	lv := levelFunc(func() uint8 { return 100 })

	cfg := DefaultConfig()
	cfg.Overlay = "dot"
	cfg.DayScene = "nope"
	_, err := New(testRegistry(), rec, lv, 4, 2, cfg)
	assert.Error(t, err)

	cfg.DayScene = "red"
	cfg.Playlist = sequence.Program{Clips: []sequence.Clip{{Scene: "nope", DurationS: 1}}}
	_, err = New(testRegistry(), rec, lv, 4, 2, cfg)
	assert.Error(t, err)

	_, err = New(testRegistry(), rec, lv, 0, 2, DefaultConfig())
	assert.Error(t, err)
}

func TestRunStopsWithContext(t *testing.T) {
	level := uint8(200)
	d, rec := newDirector(t, &level, nil)

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Unix(0, 0)
	sleeps := 0
	sched := render.NewScheduler(render.DefaultPeriod).WithClock(
		func() time.Time { return now },
		func(dur time.Duration) {
			now = now.Add(dur)
			if sleeps++; sleeps == 10 {
				cancel()
			}
		},
	)
	err := d.Run(ctx, sched)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, rec.Frames())
}
