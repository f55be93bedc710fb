// Package display holds the outputs a rendered canvas can be sent to.
package display

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// MaxLevel is the brightness at which a sink shows frames unscaled.
const MaxLevel uint8 = 100

// Sink receives finished frames. pix is packed RGB, row-major, top-left
// first; sinks must not keep it after returning. Sends are fire-and-forget
// from the renderer's point of view.
type Sink interface {
	SendFrame(pix []byte) error
	// SendBrightness takes 0..100; larger values are clamped.
	SendBrightness(level uint8) error
	Close() error
}

// ClampLevel caps a brightness at MaxLevel.
func ClampLevel(level uint8) uint8 {
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Multi fans every call out to all of its sinks.
type Multi []Sink

func NewMulti(sinks ...Sink) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) SendFrame(pix []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.SendFrame(pix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendBrightness(level uint8) error {
	var errs []error
	for _, s := range m {
		if err := s.SendBrightness(level); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps what it was sent. With Verbose set it also logs a one-line
// summary per frame, handy when running headless.
type Recorder struct {
	Verbose bool

	mu     sync.Mutex
	count  int
	last   []byte
	levels []uint8
	closed bool
}

func (r *Recorder) SendFrame(pix []byte) error {
	r.mu.Lock()
	r.count++
	r.last = append(r.last[:0], pix...)
	n := r.count
	r.mu.Unlock()

	if r.Verbose {
		var sr, sg, sb float64
		px := len(pix) / 3
		for i := 0; i+2 < len(pix); i += 3 {
			sr += float64(pix[i])
			sg += float64(pix[i+1])
			sb += float64(pix[i+2])
		}
		if px == 0 {
			px = 1
		}
		ev := log.Debug().Int("frame", n).
			Float64("avg_r", sr/float64(px)).Float64("avg_g", sg/float64(px)).Float64("avg_b", sb/float64(px))
		if len(pix) >= 3 {
			ev = ev.Bytes("first", pix[:3])
		}
		ev.Msg("frame")
	}
	return nil
}

func (r *Recorder) SendBrightness(level uint8) error {
	r.mu.Lock()
	r.levels = append(r.levels, ClampLevel(level))
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Frames is the number of frames received.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Last returns a copy of the most recent frame.
func (r *Recorder) Last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.last...)
}

// Levels returns every brightness sent, after clamping.
func (r *Recorder) Levels() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.levels...)
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
