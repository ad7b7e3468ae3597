package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(EventBookingConfirmed, func(e *Event) error {
		got = append(got, "first:"+e.Type)
		return nil
	})
	bus.Subscribe(EventBookingConfirmed, func(e *Event) error {
		got = append(got, "second:"+e.Type)
		return nil
	})
	bus.Subscribe(EventBookingRejected, func(e *Event) error {
		got = append(got, "rejected")
		return nil
	})

	bus.Publish(&Event{Type: EventBookingConfirmed})

	assert.Equal(t, []string{"first:" + EventBookingConfirmed, "second:" + EventBookingConfirmed}, got)
}

func TestPublishJSONSerializesPayload(t *testing.T) {
	bus := NewEventBus()

	var received BookingEventPayload
	bus.Subscribe(EventBookingRequested, func(e *Event) error {
		return json.Unmarshal(e.Payload, &received)
	})

	payload := BookingEventPayload{BookingID: 7, ServiceName: "Диагностика", Status: "requested", ChangedBy: "owner"}
	require.NoError(t, bus.PublishJSON(EventBookingRequested, payload))

	assert.Equal(t, int64(7), received.BookingID)
	assert.Equal(t, "Диагностика", received.ServiceName)
	assert.Equal(t, "owner", received.ChangedBy)
}

func TestPublishJSONUnmarshalableFails(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON(EventBookingRequested, func() {}))
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	var secondCalled bool
	bus.Subscribe(EventBookingCancelled, func(*Event) error { return errors.New("boom") })
	bus.Subscribe(EventBookingCancelled, func(*Event) error {
		secondCalled = true
		return nil
	})

	bus.Publish(&Event{Type: EventBookingCancelled})
	assert.True(t, secondCalled)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingRequested, struct{}{}))
}

func TestPublishSetsCreatedAt(t *testing.T) {
	bus := NewEventBus()

	var stamped bool
	bus.Subscribe(EventBookingCompleted, func(e *Event) error {
		stamped = !e.CreatedAt.IsZero()
		return nil
	})

	bus.Publish(&Event{Type: EventBookingCompleted})
	assert.True(t, stamped)
}
