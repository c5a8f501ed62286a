// Package stream fans merged telemetry events out to connected dashboard
// clients. Delivery is best-effort: a subscriber that cannot keep up loses
// events rather than stalling the engine.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/metrics"
)

// Kind tags the payload type of a stream event.
type Kind string

const (
	KindAccessEvent Kind = "access_event"
	KindAuditEvent  Kind = "audit_event"
)

// Event is one fan-out message to dashboard clients.
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Subscriber is a single connected client.
type Subscriber struct {
	ID        string
	Events    chan Event
	CreatedAt time.Time
}

// Hub manages all active subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	bufferSize  int
	log         logger.Logger
	closed      bool
}

// NewHub creates a hub whose subscribers get channels of the given buffer.
func NewHub(bufferSize int, log logger.Logger) *Hub {
	if log == nil {
		log = logger.GetDefault()
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers a new client and returns it.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.New().String(),
		Events:    make(chan Event, h.bufferSize),
		CreatedAt: time.Now(),
	}

	if h.closed {
		// A hub that is shutting down hands out an already-closed channel so
		// the caller's read loop exits immediately.
		close(sub.Events)
		return sub
	}

	h.subscribers[sub.ID] = sub
	metrics.StreamSubscribers.Inc()

	h.log.Debug("Stream subscriber added", logger.String("id", sub.ID))
	return sub
}

// Unsubscribe removes a client and closes its channel. Unknown ids are
// ignored, so it is safe to call on teardown paths that may race.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, exists := h.subscribers[id]
	if !exists {
		return
	}

	close(sub.Events)
	delete(h.subscribers, id)
	metrics.StreamSubscribers.Dec()

	h.log.Debug("Stream subscriber removed", logger.String("id", id))
}

// Publish sends an event to every subscriber without blocking. Full channels
// drop the event for that subscriber only.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for id, sub := range h.subscribers {
		select {
		case sub.Events <- event:
			metrics.StreamEventsTotal.WithLabelValues(string(event.Kind)).Inc()
		default:
			metrics.StreamEventsDropped.WithLabelValues("channel_full").Inc()
			h.log.Warn("Stream subscriber channel full, dropping event",
				logger.String("subscriber_id", id),
				logger.String("kind", string(event.Kind)))
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close shuts down the hub and all subscriber channels. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subscribers {
		close(sub.Events)
		delete(h.subscribers, id)
		metrics.StreamSubscribers.Dec()
	}

	h.log.Info("Stream hub closed")
}
