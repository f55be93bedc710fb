package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"sync/atomic"
	"time"

	"github.com/coreman2200/matryx/internal/ambient"
)

// Synthetic is a fake camera. Frames are flat fields whose brightness
// comes from Level, and failures can be scripted per stage.
type Synthetic struct {
	Level      func(time.Time) uint8 // nil means a constant 128
	FailOpens  int                   // first N opens fail
	RejectRGB  bool                  // refuse RGB3 so sessions fall back to MJPG
	FailReads  int                   // each session fails on this read; 0 never
	FrameDelay time.Duration         // simulated exposure time per frame

	opens atomic.Int64
}

// Constant is a Level that never changes.
func Constant(level uint8) func(time.Time) uint8 {
	return func(time.Time) uint8 { return level }
}

// DayNight swings between lo and hi over period, starting at hi.
func DayNight(lo, hi uint8, period time.Duration) func(time.Time) uint8 {
	start := time.Now()
	return func(now time.Time) uint8 {
		if period <= 0 {
			return hi
		}
		phase := float64(now.Sub(start)) / float64(period) * 2 * math.Pi
		mid := (float64(hi) + float64(lo)) / 2
		amp := (float64(hi) - float64(lo)) / 2
		return uint8(math.Round(mid + amp*math.Cos(phase)))
	}
}

// Opens is how many times Open has been called.
func (s *Synthetic) Opens() int { return int(s.opens.Load()) }

func (s *Synthetic) Open(ctx context.Context) (ambient.Device, error) {
	n := s.opens.Add(1)
	if int(n) <= s.FailOpens {
		return nil, fmt.Errorf("%w: synthetic open %d refused", ambient.ErrDeviceUnavailable, n)
	}
	level := s.Level
	if level == nil {
		level = Constant(128)
	}
	return &syntheticDevice{src: s, level: level}, nil
}

type syntheticDevice struct {
	src    *Synthetic
	level  func(time.Time) uint8
	format ambient.Format
	reads  int
	closed bool
}

func (d *syntheticDevice) Configure(want ambient.Format) (ambient.Format, error) {
	if want.FourCC == ambient.FourCCRGB3 && d.src.RejectRGB {
		return ambient.Format{}, fmt.Errorf("%w: RGB3 not offered", ambient.ErrConfig)
	}
	if want.FourCC != ambient.FourCCRGB3 && want.FourCC != ambient.FourCCMJPG {
		return ambient.Format{}, fmt.Errorf("%w: %q not offered", ambient.ErrConfig, want.FourCC)
	}
	if want.Width <= 0 || want.Height <= 0 {
		want.Width, want.Height = 64, 48
	}
	d.format = want
	return want, nil
}

func (d *syntheticDevice) NextFrame(ctx context.Context) (ambient.RawFrame, error) {
	if d.closed {
		return ambient.RawFrame{}, fmt.Errorf("%w: device closed", ambient.ErrStream)
	}
	if d.format.FourCC == "" {
		return ambient.RawFrame{}, errors.New("synthetic: not configured")
	}
	if d.src.FrameDelay > 0 {
		t := time.NewTimer(d.src.FrameDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ambient.RawFrame{}, ctx.Err()
		}
	}
	d.reads++
	if d.src.FailReads > 0 && d.reads >= d.src.FailReads {
		return ambient.RawFrame{}, fmt.Errorf("%w: synthetic read %d failed", ambient.ErrStream, d.reads)
	}

	now := time.Now()
	v := d.level(now)
	w, h := d.format.Width, d.format.Height
	f := ambient.RawFrame{Format: d.format, Captured: now}
	switch d.format.FourCC {
	case ambient.FourCCMJPG:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := range img.Pix {
			img.Pix[i] = v
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return ambient.RawFrame{}, fmt.Errorf("%w: %v", ambient.ErrStream, err)
		}
		f.Data = buf.Bytes()
	default:
		f.Data = bytes.Repeat([]byte{v}, w*h*3)
	}
	return f, nil
}

func (d *syntheticDevice) Close() error {
	d.closed = true
	return nil
}
