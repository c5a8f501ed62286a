package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agentidp/agentwatch/internal/aggregate"
	"github.com/agentidp/agentwatch/internal/middleware"
	"github.com/agentidp/agentwatch/internal/mode"
	"github.com/agentidp/agentwatch/internal/model"
	"github.com/agentidp/agentwatch/internal/snapshot"
)

// SyncController is the slice of the sync engine the HTTP layer needs.
type SyncController interface {
	Mode() mode.Mode
	Refresh(ctx context.Context) mode.Mode
	TrafficFor(span time.Duration) []model.TrafficBucket
}

// TelemetryHandler serves the dashboard's read API from the in-memory
// snapshot.
type TelemetryHandler struct {
	snap *snapshot.Store
	sync SyncController
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(snap *snapshot.Store, sync SyncController) *TelemetryHandler {
	return &TelemetryHandler{snap: snap, sync: sync}
}

// TokenRequests returns recent access-grant events, newest first. Supports
// ?agent= (case-insensitive name filter) and ?limit=.
func (h *TelemetryHandler) TokenRequests(c *fiber.Ctx) error {
	events := h.snap.AccessEvents()

	if agent := c.Query("agent"); agent != "" {
		filtered := make([]model.AccessEvent, 0, len(events))
		for _, ev := range events {
			if strings.EqualFold(ev.AgentName, agent) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	if limit := c.QueryInt("limit"); limit > 0 && limit < len(events) {
		events = events[:limit]
	}

	return c.JSON(fiber.Map{
		"mode":   h.sync.Mode(),
		"count":  len(events),
		"events": events,
	})
}

// SigninAttempts returns recent access attempts, newest first.
func (h *TelemetryHandler) SigninAttempts(c *fiber.Ctx) error {
	events := h.snap.AuditEvents()

	if limit := c.QueryInt("limit"); limit > 0 && limit < len(events) {
		events = events[:limit]
	}

	return c.JSON(fiber.Map{
		"mode":   h.sync.Mode(),
		"count":  len(events),
		"events": events,
	})
}

// Agents returns the registered agent principals.
func (h *TelemetryHandler) Agents(c *fiber.Ctx) error {
	agents := h.snap.Agents()
	return c.JSON(fiber.Map{
		"mode":   h.sync.Mode(),
		"count":  len(agents),
		"agents": agents,
	})
}

// AgentByName returns one registered agent, matched case-insensitively.
func (h *TelemetryHandler) AgentByName(c *fiber.Ctx) error {
	name := c.Params("name")
	for _, agent := range h.snap.Agents() {
		if strings.EqualFold(agent.Name, name) {
			return c.JSON(agent)
		}
	}
	return middleware.NotFound(c, "agent not found")
}

// Usage returns per-resource call counts.
func (h *TelemetryHandler) Usage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"mode":  h.sync.Mode(),
		"usage": h.snap.Usage(),
	})
}

// Traffic returns granted/denied buckets for the requested lookback. The
// range is a preset name or a Go duration; default is one hour.
func (h *TelemetryHandler) Traffic(c *fiber.Ctx) error {
	span, err := aggregate.ParseRange(c.Query("range"))
	if err != nil {
		return middleware.BadRequest(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"mode":    h.sync.Mode(),
		"range":   span.String(),
		"buckets": h.sync.TrafficFor(span),
	})
}

// Refresh re-runs the bulk load against the backend. Inert once the session
// runs on demonstration data.
func (h *TelemetryHandler) Refresh(c *fiber.Ctx) error {
	m := h.sync.Refresh(c.UserContext())
	accessEvents, auditEvents, agents := h.snap.Counts()
	return c.JSON(fiber.Map{
		"mode": m,
		"counts": fiber.Map{
			"token_requests":  accessEvents,
			"signin_attempts": auditEvents,
			"agents":          agents,
		},
	})
}
