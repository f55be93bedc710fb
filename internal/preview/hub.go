// Package preview serves rendered frames to browsers over a websocket.
package preview

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matryx/internal/display"
)

// Hub is a display.Sink that broadcasts every frame to its websocket
// clients and reports on /health.
type Hub struct {
	mu      sync.RWMutex
	width   int
	height  int
	fps     int
	level   uint8
	ambient uint8
	mode    string

	frameID   uint64
	startTime time.Time
	clients   map[*websocket.Conn]bool
}

func NewHub(width, height, fps int) *Hub {
	return &Hub{
		width:     width,
		height:    height,
		fps:       fps,
		level:     display.MaxLevel,
		startTime: time.Now(),
		clients:   map[*websocket.Conn]bool{},
	}
}

// Routes mounts the hub on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	log.Debug().Str("component", "preview").Str("remote", r.RemoteAddr).Msg("client connected")

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	resp := map[string]any{
		"frame_id":   h.frameID,
		"uptime_s":   time.Since(h.startTime).Seconds(),
		"w":          h.width,
		"h":          h.height,
		"fps":        h.fps,
		"brightness": h.level,
		"ambient":    h.ambient,
		"mode":       h.mode,
		"clients":    len(h.clients),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Clients is the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetStatus records what the director last saw, for /health.
func (h *Hub) SetStatus(ambient uint8, mode string) {
	h.mu.Lock()
	h.ambient, h.mode = ambient, mode
	h.mu.Unlock()
}

func (h *Hub) SendFrame(pix []byte) error {
	h.mu.Lock()
	h.frameID++
	h.mu.Unlock()
	h.broadcastFrame(pix)
	return nil
}

func (h *Hub) SendBrightness(level uint8) error {
	h.mu.Lock()
	h.level = display.ClampLevel(level)
	h.mu.Unlock()
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	return nil
}

func (h *Hub) broadcastFrame(rgb []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		W       int    `json:"w"`
		H       int    `json:"h"`
		Level   uint8  `json:"level"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: h.frameID, W: h.width, H: h.height, Level: h.level, RGB: rgb})
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}
