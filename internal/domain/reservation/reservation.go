package reservation

import (
	"fmt"
	"time"

	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
)

// MaxIdempotencyKeyLength bounds caller-supplied idempotency keys.
const MaxIdempotencyKeyLength = 128

// Reservation is the aggregate root for one booking attempt and its outcome.
type Reservation struct {
	id             uuid.UUID
	venueID        uuid.UUID
	requesterID    uuid.UUID
	date           Date
	timeSlot       TimeSlot
	guestCount     int
	idempotencyKey string

	totalPriceCents int64
	currency        string

	status          Status
	note            string
	statusChangedAt time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewReservationParams holds the inputs for creating a Pending reservation.
type NewReservationParams struct {
	VenueID         uuid.UUID
	RequesterID     uuid.UUID
	Date            Date
	TimeSlot        TimeSlot
	GuestCount      int
	IdempotencyKey  string
	TotalPriceCents int64
	Currency        string

	// Today is the current calendar date in the service time zone.
	Today Date
	Now   time.Time
}

// NewReservation creates a new Reservation aggregate with status=pending.
func NewReservation(p NewReservationParams) (*Reservation, error) {
	if p.VenueID == uuid.Nil {
		return nil, domain.NewValidationError("venue ID is required")
	}
	if p.RequesterID == uuid.Nil {
		return nil, domain.NewValidationError("requester ID is required")
	}
	if p.Date.IsZero() {
		return nil, domain.NewValidationError("date is required")
	}
	if p.Date.Before(p.Today) {
		return nil, domain.NewValidationError(fmt.Sprintf("date %s is in the past", p.Date))
	}
	if !p.TimeSlot.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid time slot: %s", p.TimeSlot))
	}
	if p.GuestCount <= 0 {
		return nil, domain.NewValidationError("guest count must be positive")
	}
	if len(p.IdempotencyKey) > MaxIdempotencyKeyLength {
		return nil, domain.NewValidationError(fmt.Sprintf("idempotency key exceeds %d characters", MaxIdempotencyKeyLength))
	}
	if p.TotalPriceCents < 0 {
		return nil, domain.NewValidationError("total price cannot be negative")
	}

	now := p.Now.UTC()
	return &Reservation{
		id:              uuid.New(),
		venueID:         p.VenueID,
		requesterID:     p.RequesterID,
		date:            p.Date,
		timeSlot:        p.TimeSlot,
		guestCount:      p.GuestCount,
		idempotencyKey:  p.IdempotencyKey,
		totalPriceCents: p.TotalPriceCents,
		currency:        p.Currency,
		status:          StatusPending,
		statusChangedAt: now,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructReservation rebuilds a Reservation from persistence data (no validation).
func ReconstructReservation(
	id, venueID, requesterID uuid.UUID,
	date Date,
	timeSlot TimeSlot,
	guestCount int,
	idempotencyKey string,
	totalPriceCents int64,
	currency string,
	status Status,
	note string,
	statusChangedAt time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:              id,
		venueID:         venueID,
		requesterID:     requesterID,
		date:            date,
		timeSlot:        timeSlot,
		guestCount:      guestCount,
		idempotencyKey:  idempotencyKey,
		totalPriceCents: totalPriceCents,
		currency:        currency,
		status:          status,
		note:            note,
		statusChangedAt: statusChangedAt,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

func (r *Reservation) ID() uuid.UUID              { return r.id }
func (r *Reservation) VenueID() uuid.UUID         { return r.venueID }
func (r *Reservation) RequesterID() uuid.UUID     { return r.requesterID }
func (r *Reservation) Date() Date                 { return r.date }
func (r *Reservation) TimeSlot() TimeSlot         { return r.timeSlot }
func (r *Reservation) GuestCount() int            { return r.guestCount }
func (r *Reservation) IdempotencyKey() string     { return r.idempotencyKey }
func (r *Reservation) TotalPriceCents() int64     { return r.totalPriceCents }
func (r *Reservation) Currency() string           { return r.currency }
func (r *Reservation) Note() string               { return r.note }
func (r *Reservation) StatusChangedAt() time.Time { return r.statusChangedAt }
func (r *Reservation) Version() int64             { return r.version }
func (r *Reservation) CreatedAt() time.Time       { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time       { return r.updatedAt }

// Status returns the stored status. Readers should prefer EffectiveStatus.
func (r *Reservation) Status() Status { return r.status }

// SlotKey returns the slot the reservation occupies while active.
func (r *Reservation) SlotKey() SlotKey {
	return SlotKey{VenueID: r.venueID, Date: r.date, TimeSlot: r.timeSlot}
}

// --- Behavior ---

// EffectiveStatus is the status as observed on today: a Confirmed reservation
// whose date has passed reads as Completed, whether or not the sweep has
// persisted it yet.
func (r *Reservation) EffectiveStatus(today Date) Status {
	if r.status == StatusConfirmed && r.date.Before(today) {
		return StatusCompleted
	}
	return r.status
}

// IsDue reports whether the completion sweep should persist Completed.
func (r *Reservation) IsDue(today Date) bool {
	return r.status == StatusConfirmed && r.date.Before(today)
}

// RolesOf returns the relationships actorID has with this reservation.
// venueOwnerID comes from the catalog.
func (r *Reservation) RolesOf(actorID, venueOwnerID uuid.UUID) Role {
	var roles Role
	if actorID == uuid.Nil {
		return roles
	}
	if actorID == venueOwnerID {
		roles |= RoleOwner
	}
	if actorID == r.requesterID {
		roles |= RoleRequester
	}
	return roles
}

// Apply moves the reservation through the lifecycle and returns the status it left.
func (r *Reservation) Apply(ev Event, roles Role, note string, now time.Time) (Status, error) {
	from := r.status
	to, err := from.Next(ev, roles)
	if err != nil {
		return "", err
	}
	now = now.UTC()
	r.status = to
	r.statusChangedAt = now
	r.updatedAt = now
	if note != "" {
		r.note = note
	}
	return from, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Reservation) IncrementVersion() {
	r.version++
}
