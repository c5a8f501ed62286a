// Package snapshot owns the engine's in-memory view of normalized telemetry.
// Collections are newest-first; bulk loads replace a collection wholesale and
// realtime merges prepend one event at a time. Writers are serialized by the
// engine's run loop, the mutex exists for the HTTP readers.
package snapshot

import (
	"sync"

	"github.com/agentidp/agentwatch/internal/metrics"
	"github.com/agentidp/agentwatch/internal/model"
)

type Store struct {
	mu           sync.RWMutex
	accessEvents []model.AccessEvent
	auditEvents  []model.AuditEvent
	agents       []model.Agent
	usage        []model.UsageEntry
	traffic      []model.TrafficBucket
	loaded       bool
}

func New() *Store {
	return &Store{}
}

// ReplaceAccessEvents swaps the access-event collection for a freshly loaded
// snapshot. The slice is owned by the store after the call.
func (s *Store) ReplaceAccessEvents(events []model.AccessEvent) {
	s.mu.Lock()
	s.accessEvents = events
	s.loaded = true
	s.mu.Unlock()
	metrics.SnapshotSize.WithLabelValues("access_events").Set(float64(len(events)))
}

// ReplaceAuditEvents swaps the audit-event collection.
func (s *Store) ReplaceAuditEvents(events []model.AuditEvent) {
	s.mu.Lock()
	s.auditEvents = events
	s.loaded = true
	s.mu.Unlock()
	metrics.SnapshotSize.WithLabelValues("audit_events").Set(float64(len(events)))
}

// ReplaceAgents swaps the known-agent collection.
func (s *Store) ReplaceAgents(agents []model.Agent) {
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
	metrics.SnapshotSize.WithLabelValues("agents").Set(float64(len(agents)))
}

// ReplaceUsage swaps the scope-usage aggregate.
func (s *Store) ReplaceUsage(usage []model.UsageEntry) {
	s.mu.Lock()
	s.usage = usage
	s.mu.Unlock()
}

// ReplaceTraffic swaps the traffic aggregate.
func (s *Store) ReplaceTraffic(traffic []model.TrafficBucket) {
	s.mu.Lock()
	s.traffic = traffic
	s.mu.Unlock()
}

// PrependAccessEvent merges one realtime token event at the front of the
// collection. Duplicate ids are accepted as-is; the upstream feed delivers
// each insert once.
func (s *Store) PrependAccessEvent(ev model.AccessEvent) {
	s.mu.Lock()
	s.accessEvents = append([]model.AccessEvent{ev}, s.accessEvents...)
	n := len(s.accessEvents)
	s.mu.Unlock()
	metrics.SnapshotSize.WithLabelValues("access_events").Set(float64(n))
}

// PrependAuditEvent merges one realtime audit event.
func (s *Store) PrependAuditEvent(ev model.AuditEvent) {
	s.mu.Lock()
	s.auditEvents = append([]model.AuditEvent{ev}, s.auditEvents...)
	n := len(s.auditEvents)
	s.mu.Unlock()
	metrics.SnapshotSize.WithLabelValues("audit_events").Set(float64(n))
}

// AccessEvents returns a copy of the access-event collection, newest first.
func (s *Store) AccessEvents() []model.AccessEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AccessEvent, len(s.accessEvents))
	copy(out, s.accessEvents)
	return out
}

// AuditEvents returns a copy of the audit-event collection, newest first.
func (s *Store) AuditEvents() []model.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AuditEvent, len(s.auditEvents))
	copy(out, s.auditEvents)
	return out
}

// Agents returns a copy of the known-agent collection.
func (s *Store) Agents() []model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Usage returns a copy of the current scope-usage aggregate.
func (s *Store) Usage() []model.UsageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.UsageEntry, len(s.usage))
	copy(out, s.usage)
	return out
}

// Traffic returns a copy of the current traffic aggregate.
func (s *Store) Traffic() []model.TrafficBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TrafficBucket, len(s.traffic))
	copy(out, s.traffic)
	return out
}

// Loaded reports whether an initial snapshot has been installed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Counts returns collection sizes for health reporting.
func (s *Store) Counts() (accessEvents, auditEvents, agents int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accessEvents), len(s.auditEvents), len(s.agents)
}
