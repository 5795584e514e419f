package reservation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors returned by store implementations alongside the domain taxonomy.
var (
	// ErrContention marks a transient store failure (serialization failure,
	// deadlock, lock timeout). The whole operation may be retried.
	ErrContention = errors.New("reservation store contention")

	// ErrIdempotencyKeyTaken means another reservation already holds the
	// requester's idempotency key.
	ErrIdempotencyKeyTaken = errors.New("idempotency key already used")

	// ErrAlreadyExists means a row with the reservation's ID is already
	// committed, typically by an earlier attempt whose outcome was ambiguous.
	ErrAlreadyExists = errors.New("reservation already exists")
)

// CreateOptions tune the atomic check-and-create.
type CreateOptions struct {
	BlockPolicy BlockPolicy
}

// ReservationRepository defines the persistence contract for reservation aggregates.
type ReservationRepository interface {
	// FindByID retrieves a reservation by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindByIdempotencyKey retrieves the requester's reservation holding key.
	FindByIdempotencyKey(ctx context.Context, requesterID uuid.UUID, key string) (*Reservation, error)

	// FindActiveBySlot retrieves the Pending or Confirmed reservation holding key.
	FindActiveBySlot(ctx context.Context, key SlotKey) (*Reservation, error)

	// FindByRequesterID retrieves a requester's reservations, newest first.
	FindByRequesterID(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]*Reservation, int64, error)

	// FindByVenueID retrieves a venue's reservations, newest first.
	FindByVenueID(ctx context.Context, venueID uuid.UUID, page, limit int) ([]*Reservation, int64, error)

	// FindOccupancyInRange retrieves the Pending and Confirmed reservations and
	// the blocks of a venue with from <= date <= to, read from one snapshot.
	FindOccupancyInRange(ctx context.Context, venueID uuid.UUID, from, to Date) ([]*Reservation, []*Block, error)

	// FindConfirmedBefore retrieves up to limit Confirmed reservations dated before date.
	FindConfirmedBefore(ctx context.Context, date Date, limit int) ([]*Reservation, error)

	// ListAll retrieves all reservations with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Reservation, int64, error)

	// CountByStatus returns reservation counts grouped by stored status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Create atomically checks the slot and inserts a Pending reservation.
	// It fails with a SlotConflict or SlotBlocked domain error, or with
	// ErrIdempotencyKeyTaken, ErrAlreadyExists or ErrContention.
	Create(ctx context.Context, r *Reservation, opts CreateOptions) error

	// Update persists a lifecycle change with optimistic locking: the row is
	// written only if its stored version is r.Version()-1. A lost race fails
	// with a Conflict domain error.
	Update(ctx context.Context, r *Reservation) error
}

// BlockRepository defines the persistence contract for availability blocks.
type BlockRepository interface {
	// FindInRange retrieves a venue's blocks with from <= date <= to.
	FindInRange(ctx context.Context, venueID uuid.UUID, from, to Date) ([]*Block, error)

	// Set atomically stores b unless the slot has an active reservation
	// (SlotNotToggleable). An existing block for the slot is returned as is.
	Set(ctx context.Context, b *Block) (*Block, error)

	// Clear atomically removes the block for key. It fails with
	// SlotNotToggleable when the slot has an active reservation and with
	// NotFound when there is no block.
	Clear(ctx context.Context, key SlotKey) error
}
