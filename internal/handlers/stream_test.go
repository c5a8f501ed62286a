package handlers

import (
	"net"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/stream"
)

// streamTestServer runs the /ws route on an in-memory listener and returns
// a dialer wired to it.
func streamTestServer(t *testing.T, hub *stream.Hub) *gorillaws.Dialer {
	t.Helper()

	h := NewStreamHandler(hub, logger.Nop())

	app := fiber.New()
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.WebSocket))

	ln := fasthttputil.NewInmemoryListener()
	go func() {
		if err := app.Listener(ln); err != nil {
			t.Logf("listener stopped: %v", err)
		}
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return &gorillaws.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			return ln.Dial()
		},
		HandshakeTimeout: 2 * time.Second,
	}
}

func waitForSubscribers(t *testing.T, hub *stream.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", want, hub.SubscriberCount())
}

func TestStreamHandler_WebSocketDelivery(t *testing.T) {
	hub := stream.NewHub(8, logger.Nop())
	defer hub.Close()

	dialer := streamTestServer(t, hub)
	conn, _, err := dialer.Dial("ws://agentwatch/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, hub, 1)

	hub.Publish(stream.Event{
		Kind:      stream.KindAccessEvent,
		Timestamp: time.Now().Unix(),
		Payload:   map[string]string{"id": "r-2001"},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev stream.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, stream.KindAccessEvent, ev.Kind)

	payload, ok := ev.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "r-2001", payload["id"])
}

func TestStreamHandler_DisconnectRemovesSubscriber(t *testing.T) {
	hub := stream.NewHub(8, logger.Nop())
	defer hub.Close()

	dialer := streamTestServer(t, hub)
	conn, _, err := dialer.Dial("ws://agentwatch/ws", nil)
	require.NoError(t, err)

	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close())

	waitForSubscribers(t, hub, 0)
}
