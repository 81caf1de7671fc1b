// Package preview streams rendered frames to browsers over websockets.
// A Hub acts as the window surface of the software renderer.
package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

// ErrClosed is returned by Present after Close
var ErrClosed = errors.New("preview closed")

const (
	writeWait  = 5 * time.Second
	sendBuffer = 2
)

// Message is sent by clients to control the window
type Message struct {
	Type   string `json:"type"` // resize, close
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Hub fans out JPEG frames to connected websocket clients
type Hub struct {
	quality  int
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	width    int
	height   int
	clients  map[string]*client
	onResize func(width, height int)
	onClose  func()
	closed   bool
	done     chan struct{}

	frames uint64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with an initial window size
func NewHub(width, height, quality int, logger *slog.Logger) *Hub {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		quality: quality,
		logger:  logger.With("component", "preview"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		width:   width,
		height:  height,
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// Size returns the current window size
func (h *Hub) Size() (int, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.width, h.height
}

// SetHandlers installs resize and close notifications
func (h *Hub) SetHandlers(onResize func(width, height int), onClose func()) {
	h.mu.Lock()
	h.onResize = onResize
	h.onClose = onClose
	h.mu.Unlock()
}

// Resize changes the window size and notifies the resize handler
func (h *Hub) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	h.mu.Lock()
	if h.width == width && h.height == height {
		h.mu.Unlock()
		return
	}
	h.width, h.height = width, height
	cb := h.onResize
	h.mu.Unlock()

	h.logger.Info("window resized", "width", width, "height", height)
	if cb != nil {
		cb(width, height)
	}
}

// Done is closed when the window is closed
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Clients returns the number of connected viewers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Frames returns the number of frames presented
func (h *Hub) Frames() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frames
}

// Present encodes img once and queues it for every client. Slow clients
// miss frames instead of blocking the renderer.
func (h *Hub) Present(img pixel.Image) error {
	h.mu.RLock()
	closed := h.closed
	n := len(h.clients)
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	var payload []byte
	if n > 0 {
		rgba, err := pixel.ToNRGBA(img)
		if err != nil {
			return fmt.Errorf("preview frame: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: h.quality}); err != nil {
			return fmt.Errorf("encode preview frame: %w", err)
		}
		payload = buf.Bytes()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
	if payload == nil {
		return nil
	}
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Debug("preview client lagging, frame skipped", "client", c.id)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams frames until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("preview client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			h.logger.Debug("preview write failed", "client", c.id, "error", err)
			h.drop(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid preview message", "client", c.id, "error", err)
			continue
		}
		switch msg.Type {
		case "resize":
			h.Resize(msg.Width, msg.Height)
		case "close":
			h.Close()
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Info("preview client disconnected", "client", c.id)
	}
}

// Close disconnects every client and marks the window closed
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	cb := h.onClose
	close(h.done)
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}
