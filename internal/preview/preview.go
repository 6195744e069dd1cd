// Package preview streams presented frames to browsers over WebSocket.
//
// A client first receives a JSON text message with the frame size, then one
// binary message per frame holding packed RGB888 pixels, row-major.
package preview

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 512
)

// Hello is the first message sent to each client
type Hello struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Hub fans frames out to connected clients. Slow clients skip frames.
type Hub struct {
	width    int
	height   int
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub for width x height frames
func NewHub(width, height int) *Hub {
	return &Hub{
		width:  width,
		height: height,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: width * height * 3,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logging.New("preview"),
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade preview connection", "err", err)
		return
	}

	hello, _ := json.Marshal(Hello{Width: h.width, Height: h.height})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		conn.Close()
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	h.log.Debug("preview client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast queues frame for every client, replacing any frame a client has
// not written yet. The hub keeps frame; callers must not modify it.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = frame
	for c := range h.clients {
		select {
		case c.send <- frame:
			continue
		default:
		}
		// drop the stale frame
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- frame:
		default:
		}
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client messages and keeps the read deadline fresh
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("preview client error", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Source is a matrix that can report its presented frame
type Source interface {
	types.Matrix
	Frame() []byte
}

// Mirror is a matrix that broadcasts every presented frame
type Mirror struct {
	Source
	hub *Hub
}

// NewMirror wraps src so that each Show reaches hub
func NewMirror(src Source, hub *Hub) *Mirror {
	return &Mirror{Source: src, hub: hub}
}

// Show presents the frame and broadcasts it
func (m *Mirror) Show() error {
	if err := m.Source.Show(); err != nil {
		return err
	}
	m.hub.Broadcast(m.Source.Frame())
	return nil
}
