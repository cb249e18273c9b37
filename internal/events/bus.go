package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventOrderPlaced     EventType = "ORDER_PLACED"
	EventCycleCompleted  EventType = "CYCLE_COMPLETED"
	EventBreakerTripped  EventType = "BREAKER_TRIPPED"
	EventBreakerReleased EventType = "BREAKER_RELEASED"
	EventEquityUpdate    EventType = "EQUITY_UPDATE"
	EventStreamStarted   EventType = "STREAM_STARTED"
	EventStreamStopped   EventType = "STREAM_STOPPED"
	EventStreamUpdated   EventType = "STREAM_UPDATED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType      `json:"type"`
	Stream    string         `json:"stream,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their own
// goroutines so a slow consumer never blocks the trading loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(stream, instrument, direction, reason string, entry float64) {
	eb.Publish(Event{
		Type:   EventSignalGenerated,
		Stream: stream,
		Data: map[string]any{
			"instrument": instrument,
			"direction":  direction,
			"reason":     reason,
			"entry":      entry,
		},
	})
}

// PublishOrderPlaced publishes an order placed event
func (eb *EventBus) PublishOrderPlaced(stream, orderID, instrument, direction string, units, entry, stop, target float64) {
	eb.Publish(Event{
		Type:   EventOrderPlaced,
		Stream: stream,
		Data: map[string]any{
			"order_id":   orderID,
			"instrument": instrument,
			"direction":  direction,
			"units":      units,
			"entry":      entry,
			"stop":       stop,
			"target":     target,
		},
	})
}

// PublishCycleCompleted publishes the outcome of one engine cycle
func (eb *EventBus) PublishCycleCompleted(stream, action, reason string, cycle int) {
	eb.Publish(Event{
		Type:   EventCycleCompleted,
		Stream: stream,
		Data: map[string]any{
			"action": action,
			"reason": reason,
			"cycle":  cycle,
		},
	})
}

// PublishBreaker publishes a circuit breaker state change
func (eb *EventBus) PublishBreaker(stream string, active bool, drawdownPct, peakEquity, currentEquity float64) {
	eventType := EventBreakerReleased
	if active {
		eventType = EventBreakerTripped
	}
	eb.Publish(Event{
		Type:   eventType,
		Stream: stream,
		Data: map[string]any{
			"drawdown_pct":   drawdownPct,
			"peak_equity":    peakEquity,
			"current_equity": currentEquity,
		},
	})
}

// PublishEquityUpdate publishes a fresh account snapshot
func (eb *EventBus) PublishEquityUpdate(stream string, equity, balance float64) {
	eb.Publish(Event{
		Type:   EventEquityUpdate,
		Stream: stream,
		Data: map[string]any{
			"equity":  equity,
			"balance": balance,
		},
	})
}

// PublishStreamLifecycle publishes stream start/stop transitions
func (eb *EventBus) PublishStreamLifecycle(eventType EventType, stream, instrument, strategy string) {
	eb.Publish(Event{
		Type:   eventType,
		Stream: stream,
		Data: map[string]any{
			"instrument": instrument,
			"strategy":   strategy,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(stream, source string, err error) {
	data := map[string]any{
		"source": source,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type:   EventError,
		Stream: stream,
		Data:   data,
	})
}
