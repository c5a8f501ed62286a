package snapshot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentidp/agentwatch/internal/model"
)

func accessEvent(id string) model.AccessEvent {
	return model.AccessEvent{ID: id, IssuedAt: time.Now()}
}

func auditEvent(id string) model.AuditEvent {
	return model.AuditEvent{ID: id, OccurredAt: time.Now()}
}

func TestStore_ReplaceThenPrepend(t *testing.T) {
	s := New()

	s.ReplaceAccessEvents([]model.AccessEvent{
		accessEvent("e-3"), accessEvent("e-2"), accessEvent("e-1"),
	})
	s.PrependAccessEvent(accessEvent("e-4"))
	s.PrependAccessEvent(accessEvent("e-5"))

	events := s.AccessEvents()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	// Pushed events occupy the front in push order, newest first.
	if events[0].ID != "e-5" || events[1].ID != "e-4" {
		t.Errorf("front of collection = %s, %s; want e-5, e-4", events[0].ID, events[1].ID)
	}
	if events[4].ID != "e-1" {
		t.Errorf("tail of collection = %s, want e-1", events[4].ID)
	}
}

func TestStore_ReplaceDiscardsOld(t *testing.T) {
	s := New()
	s.ReplaceAuditEvents([]model.AuditEvent{auditEvent("a-1"), auditEvent("a-2")})
	s.ReplaceAuditEvents([]model.AuditEvent{auditEvent("a-9")})

	events := s.AuditEvents()
	if len(events) != 1 || events[0].ID != "a-9" {
		t.Errorf("expected collection to be replaced, got %v", events)
	}
}

func TestStore_DuplicateIDTolerated(t *testing.T) {
	s := New()
	s.ReplaceAuditEvents([]model.AuditEvent{auditEvent("a-1")})
	s.PrependAuditEvent(auditEvent("a-1"))

	events := s.AuditEvents()
	if len(events) != 2 {
		t.Fatalf("expected duplicate to be accepted, got %d events", len(events))
	}
	if events[0].ID != "a-1" || events[1].ID != "a-1" {
		t.Errorf("unexpected ordering: %v", events)
	}
}

func TestStore_LoadedFlag(t *testing.T) {
	s := New()
	if s.Loaded() {
		t.Error("new store should not report loaded")
	}
	s.ReplaceAccessEvents(nil)
	if !s.Loaded() {
		t.Error("store should report loaded after a replace")
	}
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := New()
	s.ReplaceAgents([]model.Agent{{ID: "a-1", Name: "OrderSummarizer"}})

	agents := s.Agents()
	agents[0].Name = "mutated"

	if got := s.Agents()[0].Name; got != "OrderSummarizer" {
		t.Errorf("store contents mutated through read copy: %q", got)
	}
}

func TestStore_ConcurrentReadersAndWriter(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.PrependAccessEvent(accessEvent(fmt.Sprintf("e-%d", i)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.AccessEvents()
				_, _, _ = s.Counts()
			}
		}()
	}

	wg.Wait()
	if n := len(s.AccessEvents()); n != 200 {
		t.Errorf("expected 200 events after concurrent writes, got %d", n)
	}
}
