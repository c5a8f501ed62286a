package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/metrics"
	"github.com/agentidp/agentwatch/internal/model"
)

const (
	tableTokens    = "ephemeral_tokens"
	tableAuditLogs = "audit_logs"
)

// subscribeFrame opens an insert subscription on one table.
type subscribeFrame struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

// insertFrame is one pushed row.
type insertFrame struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// SubscribeTokenInserts opens a realtime feed of token-issuance inserts.
// One websocket connection per feed; the two feeds never share a socket.
func (c *HTTPClient) SubscribeTokenInserts(ctx context.Context, buffer int) (*TokenFeed, error) {
	conn, err := c.dialRealtime(ctx, tableTokens)
	if err != nil {
		return nil, err
	}

	feed := NewTokenFeed(buffer, func() {
		// Closing the connection unblocks the read loop.
		_ = conn.Close()
	})

	go func() {
		defer feed.Close()
		for {
			var frame insertFrame
			if err := conn.ReadJSON(&frame); err != nil {
				c.logReadEnd(tableTokens, feed.Done(), err)
				return
			}
			if frame.Type != "INSERT" {
				continue
			}
			var row model.RawTokenRow
			if err := json.Unmarshal(frame.Record, &row); err != nil {
				// One malformed record must not kill the feed.
				metrics.RealtimeEventsDropped.WithLabelValues("token_events", "malformed").Inc()
				c.log.Warn("Dropping malformed token insert", logger.Error(err))
				continue
			}
			metrics.RealtimeEventsTotal.WithLabelValues("token_events").Inc()
			if !feed.Emit(row) {
				return
			}
		}
	}()

	return feed, nil
}

// SubscribeAuditInserts opens a realtime feed of access-attempt inserts.
func (c *HTTPClient) SubscribeAuditInserts(ctx context.Context, buffer int) (*AuditFeed, error) {
	conn, err := c.dialRealtime(ctx, tableAuditLogs)
	if err != nil {
		return nil, err
	}

	feed := NewAuditFeed(buffer, func() {
		_ = conn.Close()
	})

	go func() {
		defer feed.Close()
		for {
			var frame insertFrame
			if err := conn.ReadJSON(&frame); err != nil {
				c.logReadEnd(tableAuditLogs, feed.Done(), err)
				return
			}
			if frame.Type != "INSERT" {
				continue
			}
			var row model.RawAuditRow
			if err := json.Unmarshal(frame.Record, &row); err != nil {
				metrics.RealtimeEventsDropped.WithLabelValues("audit_events", "malformed").Inc()
				c.log.Warn("Dropping malformed audit insert", logger.Error(err))
				continue
			}
			metrics.RealtimeEventsTotal.WithLabelValues("audit_events").Inc()
			if !feed.Emit(row) {
				return
			}
		}
	}()

	return feed, nil
}

func (c *HTTPClient) dialRealtime(ctx context.Context, table string) (*websocket.Conn, error) {
	wsURL := httpToWS(c.baseURL) + "/v1/realtime"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.credential)
	header.Set("apikey", c.credential)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial for %s: %w (status %d)", table, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("realtime dial for %s: %w", table, err)
	}

	if err := conn.WriteJSON(subscribeFrame{Type: "subscribe", Table: table}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("realtime subscribe for %s: %w", table, err)
	}

	c.log.Info("Realtime subscription opened", logger.String("table", table))
	return conn, nil
}

// logReadEnd keeps deliberate closes quiet and logs everything else.
func (c *HTTPClient) logReadEnd(table string, done <-chan struct{}, err error) {
	select {
	case <-done:
		c.log.Debug("Realtime subscription closed", logger.String("table", table))
	default:
		c.log.Warn("Realtime subscription ended",
			logger.String("table", table),
			logger.Error(err))
	}
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
