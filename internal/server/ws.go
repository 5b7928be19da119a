package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/pinchgrab/internal/metrics"
	"github.com/ayusman/pinchgrab/internal/render"
)

const (
	clientBuffer = 8
	writeWait    = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// sceneMessage is the wire form of a rendered frame.
type sceneMessage struct {
	render.Frame
	Holder string `json:"holder"`
}

type sceneClient struct {
	conn *websocket.Conn
	send chan []byte
}

// SceneHub is a renderer that fans every frame out to WebSocket subscribers
// and remembers the latest one for GET /api/scene. A subscriber that falls
// behind loses frames rather than stalling the pipeline.
type SceneHub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*sceneClient]struct{}
	latest  []byte
}

// NewSceneHub creates an empty hub.
func NewSceneHub(logger *slog.Logger) *SceneHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &SceneHub{
		logger:  logger,
		clients: make(map[*sceneClient]struct{}),
	}
}

// Render encodes f and queues it for every subscriber.
func (h *SceneHub) Render(f render.Frame) {
	msg, err := json.Marshal(sceneMessage{Frame: f, Holder: f.Holder()})
	if err != nil {
		h.logger.Error("encoding scene frame", "error", err)
		return
	}

	h.mu.Lock()
	h.latest = msg
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			metrics.SceneFramesDropped.Inc()
		}
	}
}

// Latest returns the last encoded frame, if any.
func (h *SceneHub) Latest() ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latest != nil
}

// ClientCount returns the number of connected subscribers.
func (h *SceneHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SceneHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	c := &sceneClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if latest, ok := h.Latest(); ok {
		c.send <- latest
	}

	h.register(c)
	defer h.unregister(c)

	go h.writeLoop(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *SceneHub) register(c *sceneClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SceneClients.Inc()
	h.logger.Debug("scene subscriber connected", "clients", n)
}

func (h *SceneHub) unregister(c *sceneClient) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SceneClients.Dec()
	h.logger.Debug("scene subscriber disconnected", "clients", n)
}

func (h *SceneHub) writeLoop(c *sceneClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Unblocks the read loop in ServeHTTP.
			c.conn.Close()
			return
		}
	}
}

// handleScene handles GET /api/scene.
func (h *SceneHub) handleScene(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	latest, ok := h.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No frame rendered yet"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(latest)
}
