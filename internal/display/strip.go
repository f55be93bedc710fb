package display

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	pdisplay "periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"
)

type StripOptions struct {
	Layout Layout
	Port   string // spireg name; empty picks the first port
	// Freq of the NRZ bit stream; 0 means 2.5 MHz.
	Freq     physic.Frequency
	WhiteCap float64 // see WhiteCap
	// BudgetAmps limits the estimated frame current; 0 disables it.
	BudgetAmps float64
}

// Strip drives a WS281x matrix over SPI using nrzled. Without an SPI port it
// prints frames to the console instead.
type Strip struct {
	opts    StripOptions
	console bool

	mu      sync.Mutex
	drawer  pdisplay.Drawer
	port    io.Closer
	level   uint8
	work    []byte
	ordered []byte
	img     *image.NRGBA
	name    string
}

// OpenStrip initialises the host, opens the SPI port and falls back to the
// console screen when that fails.
func OpenStrip(opts StripOptions) (*Strip, error) {
	if opts.Layout.Count() <= 0 {
		return nil, fmt.Errorf("strip: empty layout %dx%d", opts.Layout.Width, opts.Layout.Height)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("strip: host init: %w", err)
	}
	port, err := spireg.Open(opts.Port)
	if err != nil {
		log.Warn().Err(err).Str("component", "strip").Msg("no SPI port, printing at the console")
		return newStrip(screen.New(opts.Layout.Count()), nil, opts, true), nil
	}
	s, err := NewStrip(port, opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	s.port = port
	return s, nil
}

// NewStrip wraps an already opened port. The caller keeps ownership of port.
func NewStrip(port spi.Port, opts StripOptions) (*Strip, error) {
	if opts.Layout.Count() <= 0 {
		return nil, fmt.Errorf("strip: empty layout %dx%d", opts.Layout.Width, opts.Layout.Height)
	}
	freq := opts.Freq
	if freq == 0 {
		freq = 2500 * physic.KiloHertz
	}
	d, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: opts.Layout.Count(),
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("strip: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, fmt.Errorf("strip: halt: %w", err)
	}
	return newStrip(d, nil, opts, false), nil
}

func newStrip(d pdisplay.Drawer, port io.Closer, opts StripOptions, console bool) *Strip {
	n := opts.Layout.Count()
	return &Strip{
		opts:    opts,
		console: console,
		drawer:  d,
		port:    port,
		level:   MaxLevel,
		work:    make([]byte, n*3),
		ordered: make([]byte, n*3),
		img:     image.NewNRGBA(image.Rect(0, 0, n, 1)),
		name:    d.String(),
	}
}

// Console reports whether frames go to the terminal rather than LEDs.
func (s *Strip) Console() bool { return s.console }

func (s *Strip) String() string { return "strip{" + s.name + "}" }

func (s *Strip) SendFrame(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawer == nil {
		return fmt.Errorf("strip: closed")
	}
	if len(pix) != len(s.work) {
		return fmt.Errorf("strip: frame is %d bytes, want %d", len(pix), len(s.work))
	}
	copy(s.work, pix)
	Scale(s.work, s.level)
	WhiteCap(s.work, s.opts.WhiteCap)
	Budget(s.work, s.opts.BudgetAmps, 20)
	s.opts.Layout.Remap(s.ordered, s.work)

	for x := 0; x < s.img.Rect.Max.X; x++ {
		s.img.SetNRGBA(x, 0, color.NRGBA{R: s.ordered[x*3], G: s.ordered[x*3+1], B: s.ordered[x*3+2], A: 255})
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{}); err != nil {
		return fmt.Errorf("strip: draw: %w", err)
	}
	return nil
}

func (s *Strip) SendBrightness(level uint8) error {
	s.mu.Lock()
	s.level = ClampLevel(level)
	s.mu.Unlock()
	return nil
}

// Close blanks the LEDs and releases the port.
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawer == nil {
		return nil
	}
	err := s.drawer.Halt()
	s.drawer = nil
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
		s.port = nil
	}
	return err
}
