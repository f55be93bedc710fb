package display

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	KindFrame      = "frame"
	KindBrightness = "brightness"
)

// Envelope is one binary websocket message to the display server. Frames
// carry the current level too, so a server that reconnects mid-run catches up.
type Envelope struct {
	Kind   string `msgpack:"kind"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Level  uint8  `msgpack:"level"`
	Pixels []byte `msgpack:"pixels,omitempty"`
}

// ErrNotConnected is returned while the sink is dialling or waiting to redial.
var ErrNotConnected = errors.New("websocket sink: not connected")

// WebSocket streams frames to a remote display server. A failed write drops
// the connection; the next send after RedialEvery dials again in the
// background, so sends never wait on a handshake.
type WebSocket struct {
	URL           string
	Width, Height int
	RedialEvery   time.Duration
	WriteTimeout  time.Duration
	Dialer        *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	dialing  bool
	closed   bool
	lastDial time.Time
	level    uint8
	now      func() time.Time
}

func NewWebSocket(url string, width, height int) *WebSocket {
	return &WebSocket{
		URL:          url,
		Width:        width,
		Height:       height,
		RedialEvery:  2 * time.Second,
		WriteTimeout: 200 * time.Millisecond,
		Dialer:       &websocket.Dialer{HandshakeTimeout: 500 * time.Millisecond},
		level:        MaxLevel,
		now:          time.Now,
	}
}

func (s *WebSocket) SendFrame(pix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(Envelope{Kind: KindFrame, Width: s.Width, Height: s.Height, Level: s.level, Pixels: pix})
}

func (s *WebSocket) SendBrightness(level uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	level = ClampLevel(level)
	if level == s.level && s.conn != nil {
		return nil
	}
	s.level = level
	return s.send(Envelope{Kind: KindBrightness, Width: s.Width, Height: s.Height, Level: level})
}

func (s *WebSocket) send(env Envelope) error {
	b, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("websocket sink: encode: %w", err)
	}
	conn, err := s.connect()
	if err != nil {
		return err
	}
	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(s.now().Add(s.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		conn.Close()
		s.conn = nil
		return fmt.Errorf("websocket sink: write: %w", err)
	}
	return nil
}

// connect returns the live connection or starts a dial and reports
// ErrNotConnected. Callers hold s.mu.
func (s *WebSocket) connect() (*websocket.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	if s.dialing || s.closed {
		return nil, ErrNotConnected
	}
	now := s.now()
	if !s.lastDial.IsZero() && now.Sub(s.lastDial) < s.RedialEvery {
		return nil, ErrNotConnected
	}
	s.lastDial = now
	s.dialing = true
	go s.dial()
	return nil, ErrNotConnected
}

func (s *WebSocket) dial() {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.Dial(s.URL, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialing = false
	if err != nil {
		log.Debug().Err(err).Str("component", "ws-sink").Str("url", s.URL).Msg("dial failed")
		return
	}
	if s.closed {
		conn.Close()
		return
	}
	log.Info().Str("component", "ws-sink").Str("url", s.URL).Msg("connected to display")
	s.conn = conn
}

// Connected reports whether a connection is ready for the next send.
func (s *WebSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *WebSocket) isDialing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialing
}

func (s *WebSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteControl(websocket.CloseMessage, msg, s.now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	return err
}
