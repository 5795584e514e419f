package reservation

import (
	"time"

	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
)

// Block is an owner-declared override marking a slot unavailable.
type Block struct {
	key       SlotKey
	setBy     uuid.UUID
	reason    string
	createdAt time.Time
}

// NewBlock creates a Block for key. Blocks may not be placed on past dates.
func NewBlock(key SlotKey, setBy uuid.UUID, reason string, today Date, now time.Time) (*Block, error) {
	if key.VenueID == uuid.Nil {
		return nil, domain.NewValidationError("venue ID is required")
	}
	if setBy == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if key.Date.IsZero() {
		return nil, domain.NewValidationError("date is required")
	}
	if key.Date.Before(today) {
		return nil, domain.NewValidationError("cannot block a date in the past")
	}
	if !key.TimeSlot.IsValid() {
		return nil, domain.NewValidationError("invalid time slot: " + string(key.TimeSlot))
	}
	if len(reason) > 500 {
		return nil, domain.NewValidationError("reason exceeds 500 characters")
	}
	return &Block{key: key, setBy: setBy, reason: reason, createdAt: now.UTC()}, nil
}

// ReconstructBlock rebuilds a Block from persistence data.
func ReconstructBlock(key SlotKey, setBy uuid.UUID, reason string, createdAt time.Time) *Block {
	return &Block{key: key, setBy: setBy, reason: reason, createdAt: createdAt}
}

func (b *Block) Key() SlotKey         { return b.key }
func (b *Block) VenueID() uuid.UUID   { return b.key.VenueID }
func (b *Block) Date() Date           { return b.key.Date }
func (b *Block) TimeSlot() TimeSlot   { return b.key.TimeSlot }
func (b *Block) SetBy() uuid.UUID     { return b.setBy }
func (b *Block) Reason() string       { return b.reason }
func (b *Block) CreatedAt() time.Time { return b.createdAt }
