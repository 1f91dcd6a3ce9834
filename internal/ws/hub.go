// Package ws fans alert events out to live WebSocket subscribers. The hub
// decouples the evaluating context from the connection-serving context: any
// goroutine may publish, delivery happens on the hub's own dispatch loop.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/observability"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// queueSize is the hub's event hand-off buffer depth.
	queueSize = 64

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// AlertMessage is the JSON envelope broadcast to subscribers.
type AlertMessage struct {
	TicketID  string              `json:"ticket_id"`
	SLAType   domain.SLAType      `json:"sla_type"`
	State     domain.SLAState     `json:"state"`
	Details   domain.AlertDetails `json:"details"`
	Timestamp string              `json:"timestamp"`
}

// Hub manages the subscriber registry and delivery.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	queue   chan []byte

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected subscriber. send is never closed: fan-out
// may race a disconnect, and sending on a closed channel would panic the
// dispatch loop. Leaving the registry closes done instead, which stops the
// write pump.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewHub creates an empty hub. Call Run to start the dispatch loop.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:  logger,
		metrics: metrics,
		queue:   make(chan []byte, queueSize),
		clients: make(map[*client]struct{}),
	}
}

// RegisterHandlers subscribes the hub to alert events.
func (h *Hub) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventSLAAlertRaised, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.AlertRaisedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event.Payload)
		}
		h.Publish(AlertMessage{
			TicketID:  payload.Alert.TicketID,
			SLAType:   payload.Alert.SLAType,
			State:     payload.Alert.State,
			Details:   payload.Alert.Details,
			Timestamp: payload.Alert.CreatedAt.UTC().Format(time.RFC3339),
		})
		return nil
	})
}

// Publish enqueues a message for delivery to all subscribers. It never
// blocks the caller; when the hand-off buffer is full the event is dropped
// and logged.
func (h *Hub) Publish(msg AlertMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast message", zap.Error(err))
		return
	}
	select {
	case h.queue <- data:
	default:
		h.logger.Warn("broadcast queue full; dropping event",
			zap.String("ticket_id", msg.TicketID))
		h.metrics.RecordBroadcastDropped()
	}
}

// Run drains the hand-off queue and fans each event out to subscribers.
// It blocks until ctx is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case data := <-h.queue:
			h.fanOut(data)
		}
	}
}

// Handler returns the fiber handler serving subscriber connections.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

// Count returns the number of currently registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

// serve runs in the connection's goroutine until the client disconnects.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()

	// Drain incoming frames to detect disconnects; subscribers never send
	// meaningful payloads.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister is idempotent: removing a client twice, or one that was never
// registered, is safe. done is closed exactly once, under the same lock that
// guards registry membership.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
	}
	h.mu.Unlock()
}

func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Client's outgoing buffer is full. Treat it as dead so the
			// remaining subscribers are unaffected.
			h.logger.Warn("subscriber send buffer full; dropping client")
			h.unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.done)
	}
}

// writePump drains the client's send channel and forwards messages to the
// connection until the client leaves the registry. Runs in its own goroutine
// per client.
func (c *client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			// Hub shutdown or client removal.
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
