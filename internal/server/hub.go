package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/perception"
)

// clientBuffer is the number of queued messages per client before
// further messages are dropped for it.
const clientBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types broadcast by the hub.
const (
	TypeInferenceTime = "inference_time"
	TypeBoxes         = "boxes"
	TypeTotal         = "total"
	TypeDirection     = "direction"
)

// Message is one presenter update sent to websocket clients.
type Message struct {
	Type        string         `json:"type"`
	InferenceMS float64        `json:"inference_ms,omitempty"`
	Boxes       []detector.Box `json:"boxes,omitempty"`
	Total       string         `json:"total,omitempty"`
	Direction   string         `json:"direction,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans presenter updates out to websocket clients. It implements
// feedback.Presenter and never blocks the caller on a slow client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	// last holds the latest total and direction so new clients start current.
	last map[string][]byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		last:    make(map[string][]byte),
	}
}

// ShowInferenceTime broadcasts the latest detector latency.
func (h *Hub) ShowInferenceTime(d time.Duration) {
	h.broadcast(Message{Type: TypeInferenceTime, InferenceMS: float64(d) / float64(time.Millisecond)})
}

// ShowBoxes broadcasts the latest detections.
func (h *Hub) ShowBoxes(boxes []detector.Box) {
	h.broadcast(Message{Type: TypeBoxes, Boxes: boxes})
}

// ShowTotal broadcasts the running total text.
func (h *Hub) ShowTotal(text string) {
	h.broadcast(Message{Type: TypeTotal, Total: text})
}

// ShowDirection broadcasts the current guidance direction.
func (h *Hub) ShowDirection(d perception.Direction) {
	h.broadcast(Message{Type: TypeDirection, Direction: d.String()})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn("failed to encode hub message", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if msg.Type == TypeTotal || msg.Type == TypeDirection {
		h.last[msg.Type] = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("dropping message for slow client", "type", msg.Type)
		}
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	for _, typ := range []string{TypeTotal, TypeDirection} {
		if data, ok := h.last[typ]; ok {
			c.send <- data
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.write(c)

	// Reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) write(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client and ignores later updates.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
