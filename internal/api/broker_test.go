package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	planID := "p1"
	ch := b.Subscribe(planID)

	evt := SSEEvent{Type: "plan.saved", Data: map[string]any{"planId": planID}}
	b.Publish(planID, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["planId"].(string) != planID {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	// events for other plans do not leak in
	b.Publish("p2", SSEEvent{Type: "plan.confirmed"})
	select {
	case got := <-ch:
		t.Fatalf("unexpected cross-plan event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	b.Unsubscribe(planID, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("channel not closed")
	}
}

func TestBrokerDropsWhenSubscriberSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p1")
	// fill the buffer past capacity; publish must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Publish("p1", SSEEvent{Type: "plan.saved"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	b.Unsubscribe("p1", ch)
}
