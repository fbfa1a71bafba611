package booking

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/hackgods/turf-booking/internal/events"
)

const (
	EventBookingConfirmed     = "BOOKING_CONFIRMED"
	EventBookingPaymentFailed = "BOOKING_PAYMENT_FAILED"
	EventBookingPartialFailed = "BOOKING_PARTIAL_FAILURE"
	EventBookingCancelled     = "BOOKING_CANCELLED"
	EventBookingAmountEdited  = "BOOKING_AMOUNT_EDITED"
	EventSlotBlocked          = "SLOT_BLOCKED"
	EventSlotUnblocked        = "SLOT_UNBLOCKED"
	EventDateBlocked          = "DATE_BLOCKED"
	EventDateUnblocked        = "DATE_UNBLOCKED"
)

// eventLog writes the audit row and forwards the event to the publisher.
// Both steps are best effort.
type eventLog struct {
	store     Store
	publisher events.Publisher
}

func newEventLog(store Store, publisher events.Publisher) *eventLog {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &eventLog{store: store, publisher: publisher}
}

// routingKey maps BOOKING_PAYMENT_FAILED to booking.payment_failed.
func routingKey(eventType string) string {
	head, tail, _ := strings.Cut(strings.ToLower(eventType), "_")
	return head + "." + tail
}

func (l *eventLog) record(ctx context.Context, bookingID string, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if bookingID != "" {
		id := bookingID
		ev.BookingID = &id
	}

	if err := l.store.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for booking %s: %v", eventType, bookingID, err)
	}

	msg := map[string]any{
		"type":       eventType,
		"booking_id": bookingID,
		"payload":    payload,
		"at":         ev.CreatedAt,
	}
	if err := l.publisher.Publish(ctx, routingKey(eventType), msg); err != nil {
		log.Printf("failed to publish event %s for booking %s: %v", eventType, bookingID, err)
	}
}
