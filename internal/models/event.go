package models

import "time"

// EventKind doubles as the AMQP routing key.
type EventKind string

const (
	EventAssigned         EventKind = "booking.assigned"
	EventQueued           EventKind = "booking.queued"
	EventPromoted         EventKind = "booking.promoted"
	EventStarted          EventKind = "booking.started"
	EventCompleted        EventKind = "booking.completed"
	EventCancelled        EventKind = "booking.cancelled"
	EventOverrideAssigned EventKind = "booking.override_assigned"
)

type RecipientKind string

const (
	RecipientCustomer RecipientKind = "customer"
	RecipientAdvisor  RecipientKind = "advisor"
)

type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   string        `json:"id"`
}

type BookingEvent struct {
	Kind          EventKind    `json:"kind"`
	BookingID     string       `json:"booking_id"`
	CustomerID    string       `json:"customer_id"`
	AdvisorID     string       `json:"advisor_id,omitempty"`
	Slot          SlotKey      `json:"slot"`
	State         BookingState `json:"state"`
	QueuePosition int          `json:"queue_position,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

func NewBookingEvent(kind EventKind, b Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Kind:          kind,
		BookingID:     b.ID,
		CustomerID:    b.CustomerID,
		AdvisorID:     b.AdvisorID,
		Slot:          b.Slot,
		State:         b.State,
		QueuePosition: b.QueuePosition,
		OccurredAt:    at,
	}
}

// Recipients lists who gets notified: the customer always, the advisor when one is attached.
func (e BookingEvent) Recipients() []Recipient {
	out := []Recipient{{Kind: RecipientCustomer, ID: e.CustomerID}}
	if e.AdvisorID != "" {
		out = append(out, Recipient{Kind: RecipientAdvisor, ID: e.AdvisorID})
	}
	return out
}
