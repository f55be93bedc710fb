package sequence

import (
	"errors"
	"fmt"
)

// Player walks a Program and drives Hooks. It is not safe for concurrent
// use; the render loop owns it.
type Player struct {
	State PlayerState

	prog      Program
	idx       int
	clipStart float64 // program time the current clip began
	nowS      float64

	armed     bool
	lastAlpha float64

	hooks Hooks
}

func NewPlayer(h Hooks) *Player {
	return &Player{State: Idle, hooks: h}
}

// Validate rejects programs the player cannot run.
func (p Program) Validate() error {
	if len(p.Clips) == 0 {
		return errors.New("program has no clips")
	}
	for i, c := range p.Clips {
		if c.Scene == "" {
			return fmt.Errorf("clip %d: no scene", i)
		}
		if c.DurationS <= 0 {
			return fmt.Errorf("clip %d (%s): duration must be positive", i, c.Scene)
		}
		if c.XFadeS < 0 || c.XFadeS > c.DurationS {
			return fmt.Errorf("clip %d (%s): xfade %.2fs outside 0..%.2fs", i, c.Scene, c.XFadeS, c.DurationS)
		}
	}
	return nil
}

// Load replaces the program and rewinds to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	p.prog = prog
	p.reset()
	return nil
}

func (p *Player) reset() {
	p.State = Idle
	p.idx = 0
	p.nowS = 0
	p.clipStart = 0
	p.armed = false
	p.lastAlpha = 0
}

// Start begins playback from the current clip.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Clips) == 0 {
		return
	}
	if p.State == Idle {
		p.setScene(p.prog.Clips[p.idx].Scene)
		p.setCrossfade(0)
	}
	p.State = Running
}

func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

func (p *Player) Stop() {
	p.reset()
	p.setCrossfade(0)
}

// Current is the clip on screen (the outgoing one during a fade).
func (p *Player) Current() (Clip, bool) {
	if len(p.prog.Clips) == 0 {
		return Clip{}, false
	}
	return p.prog.Clips[p.idx], true
}

// Tick advances playback by dt seconds.
func (p *Player) Tick(dt float64) {
	if p.State != Running || dt <= 0 {
		return
	}
	p.nowS += dt

	// a long dt may cross several clips
	for p.State == Running {
		clip := p.prog.Clips[p.idx]
		local := p.nowS - p.clipStart
		if local < clip.DurationS {
			p.automate(clip, local)
			p.fade(clip, local)
			return
		}
		p.advance(clip)
	}
}

func (p *Player) automate(c Clip, local float64) {
	if p.hooks.SetParam == nil {
		return
	}
	for name, env := range c.Params {
		p.hooks.SetParam(name, env.Eval(local))
	}
}

func (p *Player) fade(c Clip, local float64) {
	if c.XFadeS <= 0 {
		return
	}
	next := p.nextIndex()
	if next < 0 || next == p.idx {
		return
	}
	remain := c.DurationS - local
	if remain > c.XFadeS {
		return
	}
	if !p.armed {
		if p.hooks.ArmNext != nil {
			p.hooks.ArmNext(p.prog.Clips[next].Scene)
		}
		p.armed = true
	}
	alpha := clamp01(1 - remain/c.XFadeS)
	if alpha != p.lastAlpha {
		p.setCrossfade(alpha)
		p.lastAlpha = alpha
	}
}

func (p *Player) nextIndex() int {
	n := p.idx + 1
	if n < len(p.prog.Clips) {
		return n
	}
	if p.prog.Loop {
		return 0
	}
	return -1
}

func (p *Player) advance(done Clip) {
	next := p.nextIndex()
	if next < 0 {
		p.State = Idle
		p.setCrossfade(0)
		return
	}
	p.clipStart += done.DurationS
	wasArmed := p.armed
	p.armed = false
	p.lastAlpha = 0
	if next == p.idx {
		return
	}
	p.idx = next
	if wasArmed {
		// the armed scene is already on screen at alpha 1; promote it
		p.setCrossfade(1)
	} else {
		p.setScene(p.prog.Clips[next].Scene)
	}
	p.setCrossfade(0)
}

func (p *Player) setScene(name string) {
	if p.hooks.SetScene != nil {
		p.hooks.SetScene(name)
	}
}

func (p *Player) setCrossfade(a float64) {
	if p.hooks.SetCrossfade != nil {
		p.hooks.SetCrossfade(a)
	}
}
