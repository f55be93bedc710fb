package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/matryx/internal/ambient"
	"github.com/coreman2200/matryx/internal/capture"
	"github.com/coreman2200/matryx/internal/config"
	"github.com/coreman2200/matryx/internal/director"
	"github.com/coreman2200/matryx/internal/display"
	"github.com/coreman2200/matryx/internal/preview"
	"github.com/coreman2200/matryx/internal/render"
	"github.com/coreman2200/matryx/internal/render/scenes"
	"github.com/coreman2200/matryx/internal/telemetry"
)

// Core is the wired pipeline: monitor -> cell -> director -> sinks.
type Core struct {
	Cfg   *config.Config
	Reg   *render.Registry
	Cell  *ambient.Cell
	Mon   *ambient.Monitor // nil with the camera off
	Dir   *director.Director
	Sink  display.Multi
	Hub   *preview.Hub      // nil unless preview is enabled
	Term  *display.Terminal // nil unless a terminal sink is configured
	MQTT  *telemetry.MQTT   // nil unless mqtt is enabled and reachable
	Sched *render.Scheduler
}

// Options replace parts of the configured pipeline; zero values keep it.
type Options struct {
	Registry  *render.Registry
	Source    ambient.Source
	Sinks     []display.Sink
	Scheduler *render.Scheduler
}

func InitCore(cfg *config.Config, opts Options) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Core{Cfg: cfg, Reg: opts.Registry, Cell: ambient.NewCell(), Sched: opts.Scheduler}

	// 1) Registry
	if c.Reg == nil {
		c.Reg = scenes.Default(cfg.Seed)
	}
	dcfg := directorConfig(cfg.Director)
	if !c.Reg.Has(dcfg.DayScene) && len(dcfg.Playlist.Clips) == 0 {
		names := c.Reg.List()
		if len(names) == 0 {
			return nil, fmt.Errorf("no scenes registered")
		}
		log.Warn().Str("scene", dcfg.DayScene).Str("using", names[0]).Msg("day scene not registered; falling back")
		dcfg.DayScene = names[0]
	}

	// 2) Sinks
	c.Sink = display.NewMulti(append(c.openSinks(), opts.Sinks...)...)

	// 3) Director
	d, err := director.New(c.Reg, c.Sink, c.Cell, cfg.Display.Width, cfg.Display.Height, dcfg)
	if err != nil {
		_ = c.Sink.Close()
		return nil, err
	}
	c.Dir = d

	// 4) Ambient monitor
	src := opts.Source
	if src == nil {
		src = sourceFor(cfg.Camera)
	}
	if src != nil {
		c.Mon = ambient.NewMonitor(src, c.Cell, monitorConfig(cfg.Camera))
	} else {
		log.Info().Str("component", "app").Msg("camera off; brightness stays at the default level")
	}

	// 5) Observers
	if c.Hub != nil {
		hub := c.Hub
		c.Dir.Observe(director.ModeObserverFunc(func(m director.Mode, level uint8) {
			hub.SetStatus(level, string(m))
		}))
		if c.Mon != nil {
			c.Mon.Observe(ambient.ObserverFunc(func(s ambient.Sample) {
				hub.SetStatus(s.Level, string(d.Mode()))
			}))
		}
	}
	if cfg.MQTT.Enabled {
		m, err := telemetry.Dial(telemetry.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Prefix,
		})
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt unavailable; telemetry disabled")
		} else {
			c.MQTT = m
			c.Dir.Observe(m)
			if c.Mon != nil {
				c.Mon.Observe(m)
			}
		}
	}

	if c.Sched == nil {
		c.Sched = render.NewScheduler(render.PeriodForFPS(cfg.Display.FPS))
	}
	return c, nil
}

func (c *Core) openSinks() []display.Sink {
	cfg := c.Cfg
	w, h := cfg.Display.Width, cfg.Display.Height
	var out []display.Sink
	for _, kind := range cfg.Sink.Kinds {
		switch kind {
		case "ws":
			out = append(out, display.NewWebSocket(cfg.Sink.URL, w, h))
		case "strip":
			s, err := display.OpenStrip(display.StripOptions{
				Layout:     display.Layout{Width: w, Height: h, XFlipEveryRow: cfg.Sink.Strip.XFlipEveryRow},
				Port:       cfg.Sink.Strip.Port,
				Freq:       physic.Frequency(cfg.Sink.Strip.FreqKHz) * physic.KiloHertz,
				WhiteCap:   cfg.Sink.Strip.WhiteCap,
				BudgetAmps: cfg.Sink.Strip.BudgetAmps,
			})
			if err != nil {
				log.Warn().Err(err).Str("sink", "strip").Msg("strip unavailable; skipping")
				continue
			}
			out = append(out, s)
		case "terminal":
			t, err := display.NewTerminal(w, h)
			if err != nil {
				log.Warn().Err(err).Str("sink", "terminal").Msg("terminal unavailable; skipping")
				continue
			}
			c.Term = t
			out = append(out, t)
		}
	}
	if cfg.Preview.Enabled {
		c.Hub = preview.NewHub(w, h, cfg.Display.FPS)
		out = append(out, c.Hub)
	}
	return out
}

func sourceFor(cam config.Camera) ambient.Source {
	switch cam.Kind {
	case "v4l2":
		return capture.NewV4L2(cam.Device)
	case "mock":
		period := time.Duration(cam.MockPeriodS) * time.Second
		if period <= 0 {
			period = 2 * time.Minute
		}
		return &capture.Synthetic{
			Level:      capture.DayNight(cam.MockLow, cam.MockHigh, period),
			FrameDelay: 10 * time.Millisecond,
		}
	}
	return nil
}

func monitorConfig(cam config.Camera) ambient.Config {
	return ambient.Config{
		Preferred:   ambient.Format{FourCC: ambient.FourCCRGB3, Width: cam.Width, Height: cam.Height},
		Backoff:     time.Duration(cam.BackoffMs) * time.Millisecond,
		SampleDelay: time.Duration(cam.SampleMs) * time.Millisecond,
		Percentile:  cam.Percentile,
		SampleWidth: cam.SampleWidth,
	}
}

func directorConfig(d config.Director) director.Config {
	return director.Config{
		NightThreshold:  d.NightThreshold,
		NightBrightness: d.NightBrightness,
		DayBrightness:   d.DayBrightness,
		OverlayDim:      d.OverlayDim,
		HueStep:         d.HueStep,
		NightDarken:     d.NightDarken,
		NightRedOnly:    d.NightRedOnly,
		Overlay:         d.Overlay,
		DayScene:        d.DayScene,
		Playlist:        d.Playlist,
	}
}

// Run starts the monitor and renders until ctx is done or the terminal
// sink is quit.
func (c *Core) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monDone := make(chan struct{})
	if c.Mon != nil {
		go func() {
			defer close(monDone)
			if err := c.Mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", "ambient").Msg("monitor stopped")
			}
		}()
	} else {
		close(monDone)
	}
	if c.Term != nil {
		go func() {
			select {
			case <-c.Term.Done():
				log.Info().Str("component", "app").Msg("terminal closed")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	err := c.Dir.Run(ctx, c.Sched)
	<-monDone
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases sinks and the broker connection.
func (c *Core) Close() error {
	var errs []error
	if c.MQTT != nil {
		errs = append(errs, c.MQTT.Close())
	}
	errs = append(errs, c.Sink.Close())
	return errors.Join(errs...)
}
