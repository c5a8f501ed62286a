package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/model"
)

func TestHTTPClient_ListTokenRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tokens", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.Equal(t, "sk-test", r.Header.Get("apikey"))

		rows := []model.RawTokenRow{
			{ID: "tok-1", CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk-test", logger.Nop())
	rows, err := client.ListTokenRows(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tok-1", rows[0].ID)
}

func TestHTTPClient_MissingRelationDecodesToNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A row whose data_sources join failed simply omits the key.
		_, _ = w.Write([]byte(`[{"id":"tok-2","created_at":"2026-03-01T12:00:00Z","is_revoked":true}]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk-test", logger.Nop())
	rows, err := client.ListTokenRows(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].DataSource)
	assert.Nil(t, rows[0].ExpiresAt)
	assert.True(t, rows[0].IsRevoked)
}

func TestHTTPClient_AggregateUnsupportedOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk-test", logger.Nop())

	_, err := client.AggregateUsage(context.Background(), 100)
	assert.True(t, errors.Is(err, ErrAggregateUnsupported), "usage: got %v", err)

	_, err = client.AggregateTraffic(context.Background(), time.Hour)
	assert.True(t, errors.Is(err, ErrAggregateUnsupported), "traffic: got %v", err)
}

func TestHTTPClient_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Forbidden","message":"credential expired"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk-bad", logger.Nop())
	_, err := client.ListAuditRows(context.Background(), 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential expired")
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk-test", logger.Nop())
	_, err := client.ListAgentRows(context.Background())
	require.Error(t, err)
}

func TestHTTPToWS(t *testing.T) {
	assert.Equal(t, "wss://api.example.com", httpToWS("https://api.example.com"))
	assert.Equal(t, "ws://localhost:3000", httpToWS("http://localhost:3000"))
}
