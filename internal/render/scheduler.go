package render

import "time"

// DefaultPeriod paces the render loop at ~30 frames per second.
const DefaultPeriod = time.Second / 30

// Scheduler hands out FrameTicks and paces the loop to a fixed period.
// It never tries to catch up: a late frame simply starts the next one
// straight away.
type Scheduler struct {
	Period time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	started bool
	start   time.Time
	prev    time.Time
}

func NewScheduler(period time.Duration) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Scheduler{Period: period, now: time.Now, sleep: time.Sleep}
}

// PeriodForFPS converts a frame rate to a period; non-positive rates use DefaultPeriod.
func PeriodForFPS(fps int) time.Duration {
	if fps <= 0 {
		return DefaultPeriod
	}
	return time.Second / time.Duration(fps)
}

// WithClock swaps the time source and sleeper, for tests.
func (s *Scheduler) WithClock(now func() time.Time, sleep func(time.Duration)) *Scheduler {
	if now != nil {
		s.now = now
	}
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// Tick stamps the start of a frame. The first tick has zero delta.
func (s *Scheduler) Tick() FrameTick {
	n := s.now()
	if !s.started {
		s.started = true
		s.start = n
		s.prev = n
		return FrameTick{Start: n, Instant: n}
	}
	d := n.Sub(s.prev)
	if d < 0 {
		d = 0
	}
	// keep T monotonic even if the wall clock steps back
	if n.Before(s.prev) {
		n = s.prev
	}
	s.prev = n
	return FrameTick{
		Start:   s.start,
		Instant: n,
		Delta:   d,
		T:       n.Sub(s.start).Seconds(),
		DT:      d.Seconds(),
	}
}

// WaitForNextFrame sleeps out whatever is left of the current period.
func (s *Scheduler) WaitForNextFrame() {
	if !s.started {
		return
	}
	left := s.Period - s.now().Sub(s.prev)
	if left > 0 {
		s.sleep(left)
	}
}
