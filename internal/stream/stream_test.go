package stream

import (
	"testing"
	"time"

	"github.com/agentidp/agentwatch/internal/logger"
)

func TestHub_SubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub(4, logger.Nop())

	sub := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	hub.Publish(Event{Kind: KindAccessEvent, Timestamp: time.Now().Unix()})

	select {
	case ev := <-sub.Events:
		if ev.Kind != KindAccessEvent {
			t.Errorf("event kind = %q, want access_event", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}

	hub.Unsubscribe(sub.ID)
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscriber count after unsubscribe = %d", hub.SubscriberCount())
	}

	// Channel is closed after unsubscribe.
	if _, ok := <-sub.Events; ok {
		t.Error("expected subscriber channel to be closed")
	}
}

func TestHub_FullChannelDropsNotBlocks(t *testing.T) {
	hub := NewHub(1, logger.Nop())
	sub := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		// Second publish exceeds the buffer; it must drop, not block.
		hub.Publish(Event{Kind: KindAuditEvent})
		hub.Publish(Event{Kind: KindAuditEvent})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	if got := len(sub.Events); got != 1 {
		t.Errorf("buffered events = %d, want 1", got)
	}
}

func TestHub_CloseIdempotent(t *testing.T) {
	hub := NewHub(4, logger.Nop())
	sub := hub.Subscribe()

	hub.Close()
	hub.Close()

	if _, ok := <-sub.Events; ok {
		t.Error("expected subscriber channel to be closed after hub close")
	}
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscriber count after close = %d", hub.SubscriberCount())
	}

	// Publishing into a closed hub is a no-op, and late subscribers get a
	// closed channel instead of a hang.
	hub.Publish(Event{Kind: KindAccessEvent})
	late := hub.Subscribe()
	if _, ok := <-late.Events; ok {
		t.Error("expected late subscriber channel to be closed")
	}

	hub.Unsubscribe(sub.ID)
}
