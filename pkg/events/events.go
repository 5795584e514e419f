// Package events defines the topics, event types and payloads exchanged with
// other services.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicReservationEvents = "reservation.events"
	TopicVenueEvents       = "venue.events"
)

// Event types published on TopicReservationEvents.
const (
	ReservationCreated       = "reservation.created"
	ReservationStatusChanged = "reservation.status_changed"
)

// Event types consumed from TopicVenueEvents.
const (
	VenueUpserted = "venue.upserted"
	VenueRemoved  = "venue.removed"
)

// ReservationCreatedEvent is published when a new Pending reservation commits.
type ReservationCreatedEvent struct {
	ReservationID   uuid.UUID `json:"reservation_id"`
	VenueID         uuid.UUID `json:"venue_id"`
	Date            string    `json:"date"`
	TimeSlot        string    `json:"time_slot"`
	RequesterID     uuid.UUID `json:"requester_id"`
	GuestCount      int       `json:"guest_count"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Currency        string    `json:"currency"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ReservationStatusChangedEvent is published for every accepted lifecycle transition.
type ReservationStatusChangedEvent struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	VenueID       uuid.UUID  `json:"venue_id"`
	RequesterID   uuid.UUID  `json:"requester_id"`
	FromStatus    string     `json:"from_status"`
	ToStatus      string     `json:"to_status"`
	Event         string     `json:"event"`
	ActorID       *uuid.UUID `json:"actor_id,omitempty"`
	Note          string     `json:"note,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// VenueUpsertedEvent carries the catalog fields the reservation service projects.
type VenueUpsertedEvent struct {
	VenueID           uuid.UUID `json:"venue_id"`
	OwnerID           uuid.UUID `json:"owner_id"`
	Name              string    `json:"name"`
	Capacity          int       `json:"capacity"`
	PricePerSlotCents int64     `json:"price_per_slot_cents"`
	Currency          string    `json:"currency"`
	Active            bool      `json:"active"`
	Version           int64     `json:"version"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// VenueRemovedEvent marks a venue as no longer bookable.
type VenueRemovedEvent struct {
	VenueID    uuid.UUID `json:"venue_id"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
