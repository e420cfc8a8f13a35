package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"

	"backend-booking/internal/logger"
	"backend-booking/internal/models"
)

var errClientGone = errors.New("slots board client gone")

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn     Conn
	writeMux sync.Mutex
	closed   bool
	id       string
}

// SlotsHub fans booking events out to every connected slot board.
type SlotsHub struct {
	mu           sync.RWMutex
	clients      map[Conn]*client
	counter      uint64
	log          logger.Logger
	writeTimeout time.Duration
	maxWorkers   int
}

func NewSlotsHub(log logger.Logger) *SlotsHub {
	return &SlotsHub{
		clients:      make(map[Conn]*client),
		log:          log,
		writeTimeout: 3 * time.Second,
		maxWorkers:   20,
	}
}

// Register adds a connection and returns its client id.
func (h *SlotsHub) Register(c Conn) string {
	id := fmt.Sprintf("client-%d", atomic.AddUint64(&h.counter, 1))

	h.mu.Lock()
	h.clients[c] = &client{conn: c, id: id}
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("slots board connected", "client_id", id, "total", total)
	return id
}

func (h *SlotsHub) Unregister(c Conn) {
	h.mu.Lock()
	cl, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	cl.writeMux.Lock()
	cl.closed = true
	cl.writeMux.Unlock()
	_ = c.Close()
	h.log.Debug("slots board disconnected", "client_id", cl.id, "total", total)
}

func (h *SlotsHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast writes msg to every client with at most maxWorkers concurrent
// writes. Clients whose write fails are dropped.
func (h *SlotsHub) Broadcast(msg []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	sem := make(chan struct{}, h.maxWorkers)
	var wg sync.WaitGroup
	for _, cl := range clients {
		wg.Add(1)
		sem <- struct{}{}
		go func(cl *client) {
			defer wg.Done()
			defer func() { <-sem }()
			h.write(cl, msg)
		}(cl)
	}
	wg.Wait()
}

// Ping sends a ping control frame to a single registered client.
func (h *SlotsHub) Ping(c Conn) error {
	return h.writeTo(c, websocket.PingMessage, nil)
}

// Send writes msg to a single registered client.
func (h *SlotsHub) Send(c Conn, msg []byte) error {
	return h.writeTo(c, websocket.TextMessage, msg)
}

func (h *SlotsHub) writeTo(c Conn, messageType int, msg []byte) error {
	h.mu.RLock()
	cl, ok := h.clients[c]
	h.mu.RUnlock()
	if !ok {
		return errClientGone
	}

	cl.writeMux.Lock()
	defer cl.writeMux.Unlock()
	if cl.closed {
		return errClientGone
	}
	_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return cl.conn.WriteMessage(messageType, msg)
}

func (h *SlotsHub) write(cl *client, msg []byte) {
	cl.writeMux.Lock()
	if cl.closed {
		cl.writeMux.Unlock()
		return
	}
	_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	err := cl.conn.WriteMessage(websocket.TextMessage, msg)
	cl.writeMux.Unlock()

	if err != nil {
		h.log.Warn("slots board write failed", "client_id", cl.id, "error", err)
		h.Unregister(cl.conn)
	}
}

// Message is the envelope sent to slot boards.
type Message struct {
	Type      string              `json:"type"`
	Data      models.BookingEvent `json:"data"`
	Timestamp string              `json:"timestamp"`
}

// Name and Deliver make the hub a notification sink.
func (h *SlotsHub) Name() string { return "websocket" }

func (h *SlotsHub) Deliver(_ context.Context, ev models.BookingEvent) error {
	msg, err := json.Marshal(Message{
		Type:      "booking_event",
		Data:      ev,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}
