package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishReachesTypedSubscriber(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)
	bus.Subscribe(EventOrderPlaced, func(e Event) { received <- e })

	bus.PublishOrderPlaced("eurusd-main", "42", "EUR_USD", "buy", 1500, 1.0815, 1.0772, 1.0900)

	select {
	case e := <-received:
		if e.Stream != "eurusd-main" {
			t.Errorf("stream = %q, want eurusd-main", e.Stream)
		}
		if e.Data["order_id"] != "42" {
			t.Errorf("order_id = %v, want 42", e.Data["order_id"])
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp should be set on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)
	bus.Subscribe(EventBreakerTripped, func(e Event) { received <- e })

	bus.PublishEquityUpdate("eurusd-main", 9500, 9400)

	select {
	case e := <-received:
		t.Fatalf("breaker subscriber got %v event", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var seen []EventType
	done := make(chan struct{}, 3)
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishSignal("s", "EUR_USD", "buy", "wick", 1.08)
	bus.PublishBreaker("s", true, 12.0, 10000, 8800)
	bus.PublishError("s", "engine", nil)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("all-events subscriber missed an event")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("saw %d events, want 3", len(seen))
	}
}

func TestPublishBreakerTypeSelection(t *testing.T) {
	bus := NewEventBus()
	tripped := make(chan Event, 1)
	released := make(chan Event, 1)
	bus.Subscribe(EventBreakerTripped, func(e Event) { tripped <- e })
	bus.Subscribe(EventBreakerReleased, func(e Event) { released <- e })

	bus.PublishBreaker("s", true, 11, 10000, 8900)
	select {
	case <-tripped:
	case <-time.After(time.Second):
		t.Fatal("expected a tripped event")
	}

	bus.PublishBreaker("s", false, 4, 10000, 9600)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("expected a released event")
	}
}
