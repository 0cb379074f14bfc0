package events

import (
	"context"
	"testing"
	"time"

	"casaro.io/internal/auth"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx)
	bus.Publish(Event{Type: TypeLogin, UserID: "u1", Role: auth.RoleAgent})

	select {
	case evt := <-ch:
		if evt.Type != TypeLogin || evt.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusClosesChannelOnContextEnd(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch := bus.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context end")
	}

	// Publishing after unsubscribe must not panic or block.
	bus.Publish(Event{Type: TypeLogout})
}

func TestBusDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx)
	for i := 0; i < 64; i++ {
		bus.Publish(Event{Type: TypeRefreshed})
	}
	// Buffer is 16; the rest were dropped without blocking the publisher.
	if n := len(ch); n != 16 {
		t.Fatalf("expected full buffer of 16, got %d", n)
	}
}
