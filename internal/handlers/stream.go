package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/stream"
)

// StreamHandler pushes realtime telemetry events to dashboard clients over
// WebSocket or Server-Sent Events.
type StreamHandler struct {
	hub *stream.Hub
	log logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *stream.Hub, log logger.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, log: log}
}

// WebSocket handles WebSocket stream connections
func (h *StreamHandler) WebSocket(c *websocket.Conn) {
	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub.ID)

	h.log.Info("WebSocket stream connection established",
		logger.String("subscriber_id", sub.ID),
		logger.String("transport", "websocket"))

	// Setup ping/pong for connection health
	c.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	// Read loop (to detect client disconnect)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				h.log.Debug("WebSocket read error (client disconnected)", logger.Error(err))
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				h.log.Info("Stream closed", logger.String("subscriber_id", sub.ID))
				return
			}

			if err := c.WriteJSON(event); err != nil {
				h.log.Error("Failed to write event", logger.Error(err))
				return
			}

			h.log.Debug("Sent stream event", logger.String("kind", string(event.Kind)))

		case <-pingTicker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				h.log.Debug("Failed to send ping", logger.Error(err))
				return
			}

		case <-done:
			h.log.Info("Client disconnected", logger.String("subscriber_id", sub.ID))
			return
		}
	}
}

// SSE handles Server-Sent Events stream connections
func (h *StreamHandler) SSE(c *fiber.Ctx) error {
	sub := h.hub.Subscribe()

	h.log.Info("SSE stream connection established",
		logger.String("subscriber_id", sub.ID),
		logger.String("transport", "sse"))

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Set("Access-Control-Allow-Origin", "*")

	ctx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(sub.ID)

		keepAliveTicker := time.NewTicker(30 * time.Second)
		defer keepAliveTicker.Stop()

		for {
			select {
			case event, ok := <-sub.Events:
				if !ok {
					h.log.Info("Stream closed", logger.String("subscriber_id", sub.ID))
					return
				}

				if err := sendSSEEvent(w, event); err != nil {
					h.log.Error("Failed to send SSE event", logger.Error(err))
					return
				}

			case <-keepAliveTicker.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					h.log.Debug("Failed to send keep-alive", logger.Error(err))
					return
				}

			case <-ctx.Done():
				h.log.Info("Client disconnected", logger.String("subscriber_id", sub.ID))
				return
			}
		}
	})

	return nil
}

// sendSSEEvent sends a stream event in SSE format
func sendSSEEvent(w *bufio.Writer, event stream.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event.Kind)
	fmt.Fprintf(w, "data: %s\n\n", string(data))
	return w.Flush()
}
