// Package memory provides an in-process Store that honours the same atomic
// contract as the PostgreSQL repositories. One mutex stands in for the
// database's serializable transactions. It backs unit tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
)

type idemKey struct {
	requesterID uuid.UUID
	key         string
}

// Store holds reservations, blocks and venues.
type Store struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservationDomain.Reservation
	order        []uuid.UUID
	active       map[reservationDomain.SlotKey]uuid.UUID
	idempotency  map[idemKey]uuid.UUID
	blocks       map[reservationDomain.SlotKey]*reservationDomain.Block
	venues       map[uuid.UUID]*venueDomain.Venue

	createFaults []error
	ambiguous    int
	updateFaults []error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		reservations: make(map[uuid.UUID]*reservationDomain.Reservation),
		active:       make(map[reservationDomain.SlotKey]uuid.UUID),
		idempotency:  make(map[idemKey]uuid.UUID),
		blocks:       make(map[reservationDomain.SlotKey]*reservationDomain.Block),
		venues:       make(map[uuid.UUID]*venueDomain.Venue),
	}
}

// Reservations returns the store as a ReservationRepository.
func (s *Store) Reservations() *ReservationRepository { return &ReservationRepository{s} }

// Blocks returns the store as a BlockRepository.
func (s *Store) Blocks() *BlockRepository { return &BlockRepository{s} }

// Venues returns the store as a VenueRepository.
func (s *Store) Venues() *VenueRepository { return &VenueRepository{s} }

// FailCreates makes the next len(errs) Create calls fail with errs, in order,
// without writing.
func (s *Store) FailCreates(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createFaults = append(s.createFaults, errs...)
}

// FailUpdates makes the next len(errs) Update calls fail with errs, in order,
// without writing.
func (s *Store) FailUpdates(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateFaults = append(s.updateFaults, errs...)
}

// AmbiguousCommits makes the next n successful Create calls report
// ErrContention after committing, like a connection lost during COMMIT.
func (s *Store) AmbiguousCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambiguous += n
}

// Count returns the number of stored reservations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// snapshot copies r so callers never share the stored pointer.
func snapshot(r *reservationDomain.Reservation) *reservationDomain.Reservation {
	c := *r
	return &c
}

// ReservationRepository is the Store viewed as a reservation repository.
type ReservationRepository struct{ s *Store }

// FindByID retrieves a reservation by its unique identifier.
func (r *ReservationRepository) FindByID(_ context.Context, id uuid.UUID) (*reservationDomain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, domain.NewNotFoundError("Reservation", id.String())
	}
	return snapshot(res), nil
}

// FindByIdempotencyKey retrieves the requester's reservation holding key.
func (r *ReservationRepository) FindByIdempotencyKey(_ context.Context, requesterID uuid.UUID, key string) (*reservationDomain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.idempotency[idemKey{requesterID, key}]
	if !ok {
		return nil, domain.NewNotFoundError("Reservation", "idempotency key "+key)
	}
	return snapshot(r.s.reservations[id]), nil
}

// FindActiveBySlot retrieves the Pending or Confirmed reservation holding key.
func (r *ReservationRepository) FindActiveBySlot(_ context.Context, key reservationDomain.SlotKey) (*reservationDomain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.active[key]
	if !ok {
		return nil, domain.NewNotFoundError("Reservation", "for slot "+key.String())
	}
	return snapshot(r.s.reservations[id]), nil
}

// FindByRequesterID retrieves a requester's reservations, newest first.
func (r *ReservationRepository) FindByRequesterID(_ context.Context, requesterID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.page(func(res *reservationDomain.Reservation) bool { return res.RequesterID() == requesterID }, page, limit)
}

// FindByVenueID retrieves a venue's reservations, newest first.
func (r *ReservationRepository) FindByVenueID(_ context.Context, venueID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.page(func(res *reservationDomain.Reservation) bool { return res.VenueID() == venueID }, page, limit)
}

// ListAll retrieves all reservations with pagination.
func (r *ReservationRepository) ListAll(_ context.Context, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.page(func(*reservationDomain.Reservation) bool { return true }, page, limit)
}

func (r *ReservationRepository) page(match func(*reservationDomain.Reservation) bool, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*reservationDomain.Reservation
	for i := len(r.s.order) - 1; i >= 0; i-- {
		res := r.s.reservations[r.s.order[i]]
		if match(res) {
			matched = append(matched, res)
		}
	}
	total := int64(len(matched))

	start := (page - 1) * limit
	if start < 0 || start >= len(matched) {
		return []*reservationDomain.Reservation{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*reservationDomain.Reservation, 0, end-start)
	for _, res := range matched[start:end] {
		out = append(out, snapshot(res))
	}
	return out, total, nil
}

// FindOccupancyInRange retrieves a venue's active reservations and blocks with
// from <= date <= to under one hold of the store lock.
func (r *ReservationRepository) FindOccupancyInRange(_ context.Context, venueID uuid.UUID, from, to reservationDomain.Date) ([]*reservationDomain.Reservation, []*reservationDomain.Block, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var reservations []*reservationDomain.Reservation
	for key, id := range r.s.active {
		if inRange(key, venueID, from, to) {
			reservations = append(reservations, snapshot(r.s.reservations[id]))
		}
	}
	return reservations, r.s.blocksInRange(venueID, from, to), nil
}

func inRange(key reservationDomain.SlotKey, venueID uuid.UUID, from, to reservationDomain.Date) bool {
	return key.VenueID == venueID && !key.Date.Before(from) && !key.Date.After(to)
}

func (s *Store) blocksInRange(venueID uuid.UUID, from, to reservationDomain.Date) []*reservationDomain.Block {
	var out []*reservationDomain.Block
	for key, blk := range s.blocks {
		if inRange(key, venueID, from, to) {
			out = append(out, blk)
		}
	}
	return out
}

// FindConfirmedBefore retrieves up to limit Confirmed reservations dated before date, oldest first.
func (r *ReservationRepository) FindConfirmedBefore(_ context.Context, date reservationDomain.Date, limit int) ([]*reservationDomain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*reservationDomain.Reservation
	for _, res := range r.s.reservations {
		if res.Status() == reservationDomain.StatusConfirmed && res.Date().Before(date) {
			out = append(out, snapshot(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus returns reservation counts grouped by status.
func (r *ReservationRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int64)
	for _, res := range r.s.reservations {
		counts[string(res.Status())]++
	}
	return counts, nil
}

// Create checks and inserts under the store lock.
func (r *ReservationRepository) Create(_ context.Context, res *reservationDomain.Reservation, opts reservationDomain.CreateOptions) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if len(r.s.createFaults) > 0 {
		err := r.s.createFaults[0]
		r.s.createFaults = r.s.createFaults[1:]
		return err
	}

	if _, ok := r.s.reservations[res.ID()]; ok {
		return reservationDomain.ErrAlreadyExists
	}
	key := res.SlotKey()
	if _, blocked := r.s.blocks[key]; blocked {
		if opts.BlockPolicy != reservationDomain.BlockPolicyAdvisory {
			return domain.NewSlotBlockedError(key.String())
		}
	}
	// Same order as the PostgreSQL indexes: primary key, active slot, idempotency key.
	if holder, ok := r.s.active[key]; ok {
		return domain.NewSlotConflictError(key.String(), holder.String())
	}
	if k := res.IdempotencyKey(); k != "" {
		if _, ok := r.s.idempotency[idemKey{res.RequesterID(), k}]; ok {
			return reservationDomain.ErrIdempotencyKeyTaken
		}
	}

	delete(r.s.blocks, key)
	stored := snapshot(res)
	r.s.reservations[res.ID()] = stored
	r.s.order = append(r.s.order, res.ID())
	if stored.Status().IsActive() {
		r.s.active[key] = res.ID()
	}
	if k := res.IdempotencyKey(); k != "" {
		r.s.idempotency[idemKey{res.RequesterID(), k}] = res.ID()
	}

	if r.s.ambiguous > 0 {
		r.s.ambiguous--
		return fmt.Errorf("%w: commit acknowledgement lost", reservationDomain.ErrContention)
	}
	return nil
}

// Update writes res if the stored version is res.Version()-1.
func (r *ReservationRepository) Update(_ context.Context, res *reservationDomain.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if len(r.s.updateFaults) > 0 {
		err := r.s.updateFaults[0]
		r.s.updateFaults = r.s.updateFaults[1:]
		return err
	}

	current, ok := r.s.reservations[res.ID()]
	if !ok || current.Version() != res.Version()-1 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}

	stored := snapshot(res)
	r.s.reservations[res.ID()] = stored
	key := stored.SlotKey()
	if stored.Status().IsActive() {
		r.s.active[key] = stored.ID()
	} else if r.s.active[key] == stored.ID() {
		delete(r.s.active, key)
	}
	return nil
}

// BlockRepository is the Store viewed as a block repository.
type BlockRepository struct{ s *Store }

// FindInRange retrieves a venue's blocks with from <= date <= to.
func (b *BlockRepository) FindInRange(_ context.Context, venueID uuid.UUID, from, to reservationDomain.Date) ([]*reservationDomain.Block, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.blocksInRange(venueID, from, to), nil
}

// Set stores blk unless the slot is booked; an existing block is returned.
func (b *BlockRepository) Set(_ context.Context, blk *reservationDomain.Block) (*reservationDomain.Block, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	key := blk.Key()
	if _, booked := b.s.active[key]; booked {
		return nil, domain.NewSlotNotToggleableError(key.String())
	}
	if existing, ok := b.s.blocks[key]; ok {
		return existing, nil
	}
	b.s.blocks[key] = blk
	return blk, nil
}

// Clear removes the block for key unless the slot is booked.
func (b *BlockRepository) Clear(_ context.Context, key reservationDomain.SlotKey) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, booked := b.s.active[key]; booked {
		return domain.NewSlotNotToggleableError(key.String())
	}
	if _, ok := b.s.blocks[key]; !ok {
		return domain.NewNotFoundError("Block", key.String())
	}
	delete(b.s.blocks, key)
	return nil
}

// VenueRepository is the Store viewed as a venue repository.
type VenueRepository struct{ s *Store }

// FindByID retrieves a venue, active or not.
func (v *VenueRepository) FindByID(_ context.Context, id uuid.UUID) (*venueDomain.Venue, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	venue, ok := v.s.venues[id]
	if !ok {
		return nil, domain.NewNotFoundError("Venue", id.String())
	}
	return venue, nil
}

// Upsert stores venue unless the stored snapshot is as new or newer.
func (v *VenueRepository) Upsert(_ context.Context, venue *venueDomain.Venue) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if current, ok := v.s.venues[venue.ID()]; ok && current.Version() >= venue.Version() {
		return false, nil
	}
	v.s.venues[venue.ID()] = venue
	return true, nil
}

// Deactivate marks the venue inactive if version is newer than the stored one.
func (v *VenueRepository) Deactivate(_ context.Context, id uuid.UUID, version int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	current, ok := v.s.venues[id]
	if !ok || current.Version() >= version {
		return false, nil
	}
	v.s.venues[id] = venueDomain.Reconstruct(current.ID(), current.OwnerID(), current.Name(), current.Capacity(),
		current.PricePerSlotCents(), current.Currency(), false, version, current.UpdatedAt())
	return true, nil
}
