package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event emitted after a committed mutation.
type EventType string

const (
	EventOfferingCreated     EventType = "offering.created"
	EventOfferingCancelled   EventType = "offering.cancelled"
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventEnrollmentCancelled EventType = "enrollment.cancelled"
	EventEnrollmentPromoted  EventType = "enrollment.promoted"
	EventEnrollmentApproved  EventType = "enrollment.approved"
	EventEnrollmentDeclined  EventType = "enrollment.declined"
	EventEnrollmentExcluded  EventType = "enrollment.excluded"
)

// Event is consumed by notification and analytics sinks.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OfferingID     string    `json:"offering_id"`
	UserID         string    `json:"user_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Status         Status    `json:"status,omitempty"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	// Recipients lists every holder to notify, set on offering cancellation.
	Recipients []string  `json:"recipients,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(typ EventType, offeringID string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OfferingID: offeringID,
		OccurredAt: at,
	}
}
