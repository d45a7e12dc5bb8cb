package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("rt.", 10)
	defer unsub()

	b.Publish(Event{Kind: "rt.message_received", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "rt.message_received" {
			t.Errorf("got kind %q, want rt.message_received", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("convo.", 10)
	defer unsub()

	b.Publish(Event{Kind: "rt.typing_start"})
	b.Publish(Event{Kind: "convo.changed"})

	select {
	case evt := <-ch:
		if evt.Kind != "convo.changed" {
			t.Errorf("got kind %q, want convo.changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the rt event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("rt.", 10)
	unsub()

	b.Publish(Event{Kind: "rt.message_received"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("rt.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "rt.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "rt.two"})

	evt := <-ch
	if evt.Kind != "rt.one" {
		t.Errorf("got %q, want rt.one", evt.Kind)
	}
}
