// Package overlay bridges the distribution bus to websocket clients such as
// broadcast overlays and scoreboards.
package overlay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
)

// Defaults for client connections.
const (
	DefaultBufferSize   = 256
	defaultWriteTimeout = 5 * time.Second
	pingInterval        = 30 * time.Second
	pongWait            = 2 * pingInterval
)

// Frame types sent to clients.
const (
	FrameEvent  = "event"
	FrameStatus = "status"
)

// Subscriber attaches live consumers. *bus.Bus and the service satisfy it.
type Subscriber interface {
	Subscribe(name string, size int) (*bus.Subscription, error)
}

// Frame is one JSON text message sent to a client.
type Frame struct {
	Type   string                `json:"type"`
	Event  *model.StoredEvent    `json:"event,omitempty"`
	Status *model.StatusSnapshot `json:"status,omitempty"`
}

// clientMessage is what clients may send: {"type":"subscribe","kinds":[...]}
// narrows event frames to those kinds, "unsubscribe" clears the filter.
type clientMessage struct {
	Type  string          `json:"type"`
	Kinds []protocol.Kind `json:"kinds"`
}

// Hub serves /ws. Every client owns a bus subscription, so a slow client
// only drops its own oldest frames.
type Hub struct {
	subs         Subscriber
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
	log          logger.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a hub over subs.
func New(subs Subscriber, opts ...Option) *Hub {
	h := &Hub{
		subs: subs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize:   DefaultBufferSize,
		writeTimeout: defaultWriteTimeout,
		log:          logger.Named("overlay"),
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams bus messages until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.Warn(r.Context(), "websocket upgrade", logger.Error(fmt.Errorf("%w: %w", ErrUpgrade, err)))
		return
	}

	name := fmt.Sprintf("ws-%d", h.seq.Add(1))
	sub, err := h.subs.Subscribe(name, h.bufferSize)
	if err != nil {
		h.log.Error(r.Context(), "overlay subscribe", logger.Error(fmt.Errorf("%w: %w", ErrSubscribe, err)))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "bus unavailable"))
		_ = conn.Close()
		return
	}

	c := &client{hub: h, conn: conn, sub: sub, done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info(r.Context(), "overlay client connected",
		logger.String("client", name),
		logger.String("remote", r.RemoteAddr),
	)

	go c.readPump()
	c.writePump()

	sub.Unsubscribe()
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	h.log.Info(r.Context(), "overlay client disconnected",
		logger.String("client", name),
		logger.Uint64("dropped", sub.Dropped()),
	)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *bus.Subscription
	done chan struct{} // closed by readPump when the peer goes away

	mu    sync.RWMutex
	kinds map[protocol.Kind]bool
}

func (c *client) wants(kind protocol.Kind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kinds) == 0 || c.kinds[kind]
}

func (c *client) readPump() {
	defer close(c.done)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug(context.Background(), "overlay read", logger.Error(err))
			}
			return
		}
		c.apply(msg)
	}
}

func (c *client) apply(msg clientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		c.kinds = make(map[protocol.Kind]bool, len(msg.Kinds))
		for _, k := range msg.Kinds {
			c.kinds[k] = true
		}
	case "unsubscribe":
		c.kinds = nil
	}
}

func (c *client) writePump() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-c.sub.C():
			if !ok {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			frame, send := c.frame(msg)
			if !send {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) frame(msg bus.Message) (Frame, bool) {
	switch {
	case msg.Event != nil:
		if !c.wants(msg.Event.Kind) {
			return Frame{}, false
		}
		return Frame{Type: FrameEvent, Event: msg.Event}, true
	case msg.Status != nil:
		return Frame{Type: FrameStatus, Status: msg.Status}, true
	}
	return Frame{}, false
}

func (c *client) write(messageType int, data []byte) error {
	return c.conn.WriteControl(messageType, data, time.Now().Add(c.hub.writeTimeout))
}
