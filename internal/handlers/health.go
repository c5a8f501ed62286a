package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agentidp/agentwatch/internal/mode"
	"github.com/agentidp/agentwatch/internal/snapshot"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	Mode      mode.Mode      `json:"mode"`
	Uptime    string         `json:"uptime"`
	Timestamp time.Time      `json:"timestamp"`
	Snapshot  SnapshotHealth `json:"snapshot"`
	System    SystemHealth   `json:"system"`
}

type SnapshotHealth struct {
	Loaded         bool `json:"loaded"`
	TokenRequests  int  `json:"token_requests"`
	SigninAttempts int  `json:"signin_attempts"`
	Agents         int  `json:"agents"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	MemorySys   uint64 `json:"memory_sys_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// HealthHandler handles health check operations
type HealthHandler struct {
	snap      *snapshot.Store
	tracker   *mode.Tracker
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(snap *snapshot.Store, tracker *mode.Tracker, version string) *HealthHandler {
	return &HealthHandler{
		snap:      snap,
		tracker:   tracker,
		startTime: time.Now(),
		version:   version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	accessEvents, auditEvents, agents := h.snap.Counts()

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Mode:      h.tracker.Current(),
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
		Snapshot: SnapshotHealth{
			Loaded:         h.snap.Loaded(),
			TokenRequests:  accessEvents,
			SigninAttempts: auditEvents,
			Agents:         agents,
		},
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			MemorySys:   m.Sys,
			NumGC:       m.NumGC,
		},
	}

	return c.JSON(status)
}

// Liveness is a simple liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks if the service is ready to accept traffic. The service
// is ready once the initial dataset (live or demonstration) is installed.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if !h.snap.Loaded() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "loading",
			"timestamp": time.Now(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "ready",
		"mode":      h.tracker.Current(),
		"timestamp": time.Now(),
	})
}
