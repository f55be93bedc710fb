package ambient

import "sync/atomic"

// DefaultLevel is what a Cell reports before the first sample lands.
// It reads as "bright" so the display starts in day mode.
const DefaultLevel uint8 = 100

// Cell is the single value shared between the monitor and the render loop.
// Loads never block and may return a stale reading.
type Cell struct {
	v       atomic.Uint32
	updated atomic.Bool
}

func NewCell() *Cell {
	c := &Cell{}
	c.v.Store(uint32(DefaultLevel))
	return c
}

func (c *Cell) Load() uint8 { return uint8(c.v.Load()) }

func (c *Cell) Store(level uint8) {
	c.v.Store(uint32(level))
	c.updated.Store(true)
}

// Updated reports whether any sample has been stored.
func (c *Cell) Updated() bool { return c.updated.Load() }

// DefaultMaxAttempt matches a signed byte counter.
const DefaultMaxAttempt = 127

// Attempt counts monitor sessions from 1 and wraps back to 1 after Max.
type Attempt struct {
	max int32
	v   atomic.Int32
}

func NewAttempt(max int) *Attempt {
	if max < 1 {
		max = DefaultMaxAttempt
	}
	a := &Attempt{max: int32(max)}
	a.v.Store(1)
	return a
}

func (a *Attempt) Current() int { return int(a.v.Load()) }

// Next advances the counter and returns the new value.
func (a *Attempt) Next() int {
	for {
		cur := a.v.Load()
		next := cur + 1
		if cur >= a.max {
			next = 1
		}
		if a.v.CompareAndSwap(cur, next) {
			return int(next)
		}
	}
}
