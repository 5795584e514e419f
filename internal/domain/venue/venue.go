package venue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Venue is the local read projection of a catalog venue. The catalog service
// owns the record; this service only keeps the fields it books against.
type Venue struct {
	id                uuid.UUID
	ownerID           uuid.UUID
	name              string
	capacity          int
	pricePerSlotCents int64
	currency          string
	active            bool
	version           int64
	updatedAt         time.Time
}

// NewVenue validates a catalog snapshot.
func NewVenue(
	id, ownerID uuid.UUID,
	name string,
	capacity int,
	pricePerSlotCents int64,
	currency string,
	active bool,
	version int64,
	updatedAt time.Time,
) (*Venue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("venue ID is required")
	}
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner ID is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if pricePerSlotCents < 0 {
		return nil, fmt.Errorf("price per slot cannot be negative")
	}
	if version <= 0 {
		return nil, fmt.Errorf("catalog version must be positive")
	}
	return Reconstruct(id, ownerID, name, capacity, pricePerSlotCents, currency, active, version, updatedAt.UTC()), nil
}

// Reconstruct rebuilds a Venue from persistence data (no validation).
func Reconstruct(
	id, ownerID uuid.UUID,
	name string,
	capacity int,
	pricePerSlotCents int64,
	currency string,
	active bool,
	version int64,
	updatedAt time.Time,
) *Venue {
	return &Venue{
		id:                id,
		ownerID:           ownerID,
		name:              name,
		capacity:          capacity,
		pricePerSlotCents: pricePerSlotCents,
		currency:          currency,
		active:            active,
		version:           version,
		updatedAt:         updatedAt,
	}
}

func (v *Venue) ID() uuid.UUID            { return v.id }
func (v *Venue) OwnerID() uuid.UUID       { return v.ownerID }
func (v *Venue) Name() string             { return v.name }
func (v *Venue) Capacity() int            { return v.capacity }
func (v *Venue) PricePerSlotCents() int64 { return v.pricePerSlotCents }
func (v *Venue) Currency() string         { return v.currency }
func (v *Venue) Active() bool             { return v.active }
func (v *Venue) Version() int64           { return v.version }
func (v *Venue) UpdatedAt() time.Time     { return v.updatedAt }

// IsOwnedBy checks if the venue belongs to the given owner.
func (v *Venue) IsOwnedBy(ownerID uuid.UUID) bool {
	return v.ownerID == ownerID
}

// Fits reports whether guestCount is within capacity.
func (v *Venue) Fits(guestCount int) bool {
	return guestCount > 0 && guestCount <= v.capacity
}
