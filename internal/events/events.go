package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingRequested  = "booking_requested"
	EventBookingConfirmed  = "booking_confirmed"
	EventBookingRejected   = "booking_rejected"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingCompleted  = "booking_completed"
	EventBookingReschedule = "booking_reschedule_offered"
)

// BookingEventPayload is the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   int64     `json:"booking_id"`
	UserID      int64     `json:"user_id"`
	VehicleID   int64     `json:"vehicle_id"`
	ServiceName string    `json:"service_name"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Reason      string    `json:"reason,omitempty"`
	ChangedBy   string    `json:"changed_by,omitempty"`
	ChangedByID int64     `json:"changed_by_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for booking lifecycle events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; the caller decides the concurrency model.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
