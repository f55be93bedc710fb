package display

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal previews frames in a terminal with half-block cells, two pixel
// rows per character. q, Esc or Ctrl-C close Done.
type Terminal struct {
	screen        tcell.Screen
	width, height int

	mu    sync.Mutex
	level uint8
	done  chan struct{}
	once  sync.Once
	fini  sync.Once
}

func NewTerminal(width, height int) (*Terminal, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	return NewTerminalOn(s, width, height)
}

// NewTerminalOn takes over an uninitialised screen.
func NewTerminalOn(s tcell.Screen, width, height int) (*Terminal, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	s.HideCursor()
	s.Clear()
	t := &Terminal{
		screen: s,
		width:  width,
		height: height,
		level:  MaxLevel,
		done:   make(chan struct{}),
	}
	go t.poll()
	return t, nil
}

// Done is closed once the user asks to quit or the screen is finalised.
func (t *Terminal) Done() <-chan struct{} { return t.done }

func (t *Terminal) poll() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			t.quit()
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				t.quit()
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *Terminal) quit() { t.once.Do(func() { close(t.done) }) }

func (t *Terminal) rgb(pix []byte, x, y int) tcell.Color {
	if y >= t.height {
		return tcell.ColorBlack
	}
	i := (y*t.width + x) * 3
	k := int32(t.level)
	return tcell.NewRGBColor(int32(pix[i])*k/100, int32(pix[i+1])*k/100, int32(pix[i+2])*k/100)
}

func (t *Terminal) SendFrame(pix []byte) error {
	if len(pix) != t.width*t.height*3 {
		return fmt.Errorf("terminal: frame is %d bytes, want %d", len(pix), t.width*t.height*3)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for y := 0; y < t.height; y += 2 {
		for x := 0; x < t.width; x++ {
			style := tcell.StyleDefault.Foreground(t.rgb(pix, x, y)).Background(t.rgb(pix, x, y+1))
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	t.screen.Show()
	return nil
}

func (t *Terminal) SendBrightness(level uint8) error {
	t.mu.Lock()
	t.level = ClampLevel(level)
	t.mu.Unlock()
	return nil
}

func (t *Terminal) Close() error {
	t.fini.Do(func() {
		t.screen.Fini()
		t.quit()
	})
	return nil
}
