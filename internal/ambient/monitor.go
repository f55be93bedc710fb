package ambient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Config tunes the sampling loop. Zero fields fall back to defaults.
type Config struct {
	Preferred   Format        // RGB3 request; size hints only
	Backoff     time.Duration // wait between failed sessions
	SampleDelay time.Duration // wait between samples
	Percentile  int
	SampleWidth int // downscale frames to this width before reducing; 0 keeps full size
	MaxAttempt  int
	KeepStale   bool // skip the extra read that flushes a stale buffer
}

func DefaultConfig() Config {
	return Config{
		Preferred:   Format{FourCC: FourCCRGB3, Width: 640, Height: 480},
		Backoff:     5 * time.Second,
		SampleDelay: 500 * time.Millisecond,
		Percentile:  90,
		MaxAttempt:  DefaultMaxAttempt,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Preferred.Width <= 0 || c.Preferred.Height <= 0 {
		c.Preferred.Width, c.Preferred.Height = d.Preferred.Width, d.Preferred.Height
	}
	c.Preferred.FourCC = FourCCRGB3
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.SampleDelay <= 0 {
		c.SampleDelay = d.SampleDelay
	}
	if c.Percentile <= 0 || c.Percentile > 100 {
		c.Percentile = d.Percentile
	}
	if c.MaxAttempt <= 0 {
		c.MaxAttempt = d.MaxAttempt
	}
	return c
}

// Sample is one published reading.
type Sample struct {
	Level   uint8
	Session string
	Attempt int
	Format  Format
	At      time.Time
}

// Observer is told about every published sample. Calls happen on the
// monitor goroutine and must return quickly.
type Observer interface {
	ObserveSample(Sample)
}

type ObserverFunc func(Sample)

func (f ObserverFunc) ObserveSample(s Sample) { f(s) }

// Monitor samples ambient light from a capture source and publishes the
// reduced value into a Cell. Failed sessions are retried forever.
type Monitor struct {
	src     Source
	cfg     Config
	cell    *Cell
	attempt *Attempt

	mu        sync.RWMutex
	observers []Observer
	session   string
	format    Format
}

func NewMonitor(src Source, cell *Cell, cfg Config) *Monitor {
	if cell == nil {
		cell = NewCell()
	}
	cfg = cfg.withDefaults()
	return &Monitor{
		src:     src,
		cfg:     cfg,
		cell:    cell,
		attempt: NewAttempt(cfg.MaxAttempt),
	}
}

func (m *Monitor) Cell() *Cell { return m.cell }

// Attempt is the current session number; safe from any goroutine.
func (m *Monitor) Attempt() int { return m.attempt.Current() }

func (m *Monitor) Observe(o Observer) {
	if o == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// Session returns the id and negotiated format of the running session.
func (m *Monitor) Session() (string, Format) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.format
}

// Run samples until ctx is cancelled, which is the only way it returns.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		err := m.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, _ := m.Session()
		log.Warn().Err(err).
			Str("component", "ambient").
			Str("session", id).
			Int("attempt", m.attempt.Current()).
			Str("kind", classify(err)).
			Dur("retry_in", m.cfg.Backoff).
			Msg("camera session ended")
		m.attempt.Next()
		if !sleep(ctx, m.cfg.Backoff) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) runSession(ctx context.Context) error {
	id := uuid.New().String()
	m.setSession(id, Format{})
	attempt := m.attempt.Current()
	log.Info().Str("component", "ambient").Str("session", id).Int("attempt", attempt).Msg("opening camera")

	dev, err := m.src.Open(ctx)
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Debug().Err(cerr).Str("session", id).Msg("camera close")
		}
	}()

	format, err := Negotiate(dev, m.cfg.Preferred)
	if err != nil {
		return err
	}
	m.setSession(id, format)
	log.Info().Str("component", "ambient").Str("session", id).
		Str("fourcc", format.FourCC).Int("width", format.Width).Int("height", format.Height).
		Msg("camera streaming")

	for {
		if !m.cfg.KeepStale {
			if _, err := m.next(ctx, dev); err != nil {
				return err
			}
		}
		f, err := m.next(ctx, dev)
		if err != nil {
			return err
		}
		if f.Format.FourCC == "" {
			f.Format = format
		}
		level, err := Reduce(f, m.cfg.SampleWidth, m.cfg.Percentile)
		if err != nil {
			return err
		}
		m.cell.Store(level)
		m.publish(Sample{Level: level, Session: id, Attempt: attempt, Format: format, At: time.Now()})
		log.Debug().Str("session", id).Uint8("level", level).Msg("ambient sample")

		if !sleep(ctx, m.cfg.SampleDelay) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) next(ctx context.Context, dev Device) (RawFrame, error) {
	f, err := dev.NextFrame(ctx)
	if err != nil && !errors.Is(err, ErrStream) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %v", ErrStream, err)
	}
	return f, err
}

func (m *Monitor) setSession(id string, f Format) {
	m.mu.Lock()
	m.session, m.format = id, f
	m.mu.Unlock()
}

func (m *Monitor) publish(s Sample) {
	m.mu.RLock()
	obs := m.observers
	m.mu.RUnlock()
	for _, o := range obs {
		o.ObserveSample(s)
	}
}

// Negotiate asks for RGB3 and falls back to MJPG when the device refuses
// or silently picks something else.
func Negotiate(dev Device, want Format) (Format, error) {
	want.FourCC = FourCCRGB3
	got, err := dev.Configure(want)
	if err == nil && got.FourCC == FourCCRGB3 {
		return got, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("RGB3 rejected, trying MJPG")
	}
	want.FourCC = FourCCMJPG
	got, err = dev.Configure(want)
	if err != nil {
		if errors.Is(err, ErrConfig) {
			return Format{}, err
		}
		return Format{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if got.FourCC != FourCCMJPG && got.FourCC != FourCCRGB3 {
		return Format{}, fmt.Errorf("%w: device settled on %q", ErrConfig, got.FourCC)
	}
	return got, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrStream):
		return "stream"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "unknown"
	}
}

// sleep waits d or until ctx is done; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
