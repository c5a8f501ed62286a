package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agentidp/agentwatch/internal/aggregate"
	"github.com/agentidp/agentwatch/internal/fixture"
	"github.com/agentidp/agentwatch/internal/middleware"
	"github.com/agentidp/agentwatch/internal/mode"
	"github.com/agentidp/agentwatch/internal/model"
	"github.com/agentidp/agentwatch/internal/snapshot"
)

// fakeSync stubs the sync engine for handler tests.
type fakeSync struct {
	mode         mode.Mode
	refreshCalls int
	trafficSpans []time.Duration
	buckets      []model.TrafficBucket
}

func (f *fakeSync) Mode() mode.Mode { return f.mode }

func (f *fakeSync) Refresh(ctx context.Context) mode.Mode {
	f.refreshCalls++
	return f.mode
}

func (f *fakeSync) TrafficFor(span time.Duration) []model.TrafficBucket {
	f.trafficSpans = append(f.trafficSpans, span)
	return f.buckets
}

func telemetryApp(snap *snapshot.Store, sync *fakeSync) *fiber.App {
	app := fiber.New()
	h := NewTelemetryHandler(snap, sync)
	app.Get("/api/token-requests", h.TokenRequests)
	app.Get("/api/signin-attempts", h.SigninAttempts)
	app.Get("/api/agents", h.Agents)
	app.Get("/api/agents/:name", h.AgentByName)
	app.Get("/api/usage", h.Usage)
	app.Get("/api/traffic", h.Traffic)
	app.Post("/api/refresh", h.Refresh)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestTokenRequests_ReturnsNewestFirst(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/token-requests", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	var events []model.AccessEvent
	if err := json.Unmarshal(body["events"], &events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].IssuedAt.After(events[i-1].IssuedAt) {
			t.Errorf("Events out of order at index %d", i)
		}
	}
}

func TestTokenRequests_AgentFilter(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/token-requests?agent=ordersummarizer", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	body := decodeBody(t, resp)
	var events []model.AccessEvent
	if err := json.Unmarshal(body["events"], &events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("Expected at least one matching event")
	}
	for _, ev := range events {
		if ev.AgentName != "OrderSummarizer" {
			t.Errorf("Filter leaked event for agent %q", ev.AgentName)
		}
	}
}

func TestTokenRequests_Limit(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/token-requests?limit=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	body := decodeBody(t, resp)
	var events []model.AccessEvent
	if err := json.Unmarshal(body["events"], &events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].ID != "r-1101" {
		t.Errorf("Limit must keep the newest events, got %q first", events[0].ID)
	}
}

func TestSigninAttempts(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Live})

	req := httptest.NewRequest("GET", "/api/signin-attempts", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	body := decodeBody(t, resp)
	var events []model.AuditEvent
	if err := json.Unmarshal(body["events"], &events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	var m mode.Mode
	if err := json.Unmarshal(body["mode"], &m); err != nil {
		t.Fatalf("Failed to decode mode: %v", err)
	}
	if m != mode.Live {
		t.Errorf("Expected mode 'live', got %q", m)
	}
}

func TestAgents(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/agents", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	body := decodeBody(t, resp)
	var agents []model.Agent
	if err := json.Unmarshal(body["agents"], &agents); err != nil {
		t.Fatalf("Failed to decode agents: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("Expected 4 agents, got %d", len(agents))
	}
}

func TestAgentByName(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/agents/ordersummarizer", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var agent model.Agent
	if err := json.NewDecoder(resp.Body).Decode(&agent); err != nil {
		t.Fatalf("Failed to decode agent: %v", err)
	}
	if agent.Name != "OrderSummarizer" {
		t.Errorf("Expected agent 'OrderSummarizer', got %q", agent.Name)
	}
}

func TestAgentByName_Unknown(t *testing.T) {
	snap := loadedSnapshot()
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/agents/NoSuchAgent", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", resp.StatusCode)
	}

	var errResp middleware.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "Not Found" {
		t.Errorf("Expected error 'Not Found', got %q", errResp.Error)
	}
}

func TestUsage(t *testing.T) {
	snap := snapshot.New()
	snap.ReplaceUsage(fixture.Usage())
	app := telemetryApp(snap, &fakeSync{mode: mode.Mock})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	body := decodeBody(t, resp)
	var usage []model.UsageEntry
	if err := json.Unmarshal(body["usage"], &usage); err != nil {
		t.Fatalf("Failed to decode usage: %v", err)
	}
	if len(usage) == 0 {
		t.Fatal("Expected usage entries")
	}
}

func TestTraffic_DefaultRange(t *testing.T) {
	sync := &fakeSync{mode: mode.Live}
	app := telemetryApp(snapshot.New(), sync)

	req := httptest.NewRequest("GET", "/api/traffic", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	if len(sync.trafficSpans) != 1 || sync.trafficSpans[0] != aggregate.DefaultSpan {
		t.Errorf("Expected default span %v, got %v", aggregate.DefaultSpan, sync.trafficSpans)
	}
}

func TestTraffic_PresetRange(t *testing.T) {
	sync := &fakeSync{mode: mode.Live}
	app := telemetryApp(snapshot.New(), sync)

	req := httptest.NewRequest("GET", "/api/traffic?range=6h", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	if len(sync.trafficSpans) != 1 || sync.trafficSpans[0] != 6*time.Hour {
		t.Errorf("Expected 6h span, got %v", sync.trafficSpans)
	}
}

func TestTraffic_InvalidRange(t *testing.T) {
	app := telemetryApp(snapshot.New(), &fakeSync{mode: mode.Live})

	req := httptest.NewRequest("GET", "/api/traffic?range=sometime", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestRefresh(t *testing.T) {
	sync := &fakeSync{mode: mode.Live}
	app := telemetryApp(loadedSnapshot(), sync)

	req := httptest.NewRequest("POST", "/api/refresh", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	if sync.refreshCalls != 1 {
		t.Errorf("Expected 1 refresh call, got %d", sync.refreshCalls)
	}
}
