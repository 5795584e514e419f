package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	today = reservationDomain.NewDate(2026, time.February, 10)
	now   = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
)

func newReservation(t *testing.T, venueID uuid.UUID, date reservationDomain.Date, slot reservationDomain.TimeSlot, key string) *reservationDomain.Reservation {
	t.Helper()
	r, err := reservationDomain.NewReservation(reservationDomain.NewReservationParams{
		VenueID:         venueID,
		RequesterID:     uuid.New(),
		Date:            date,
		TimeSlot:        slot,
		GuestCount:      50,
		IdempotencyKey:  key,
		TotalPriceCents: 52500,
		Currency:        "INR",
		Today:           today,
		Now:             now,
	})
	require.NoError(t, err)
	return r
}

func TestCreate_AtomicContract(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Reservations()
	venueID := uuid.New()
	date := today.AddDays(7)
	enforce := reservationDomain.CreateOptions{BlockPolicy: reservationDomain.BlockPolicyEnforce}

	first := newReservation(t, venueID, date, reservationDomain.SlotMorning, "k1")
	require.NoError(t, repo.Create(ctx, first, enforce))

	assert.ErrorIs(t, repo.Create(ctx, first, enforce), reservationDomain.ErrAlreadyExists)

	rival := newReservation(t, venueID, date, reservationDomain.SlotMorning, "")
	err := repo.Create(ctx, rival, enforce)
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeSlotConflict, de.Code)
	assert.Equal(t, first.ID().String(), de.ConflictingID)

	found, err := repo.FindActiveBySlot(ctx, first.SlotKey())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), found.ID())

	byKey, err := repo.FindByIdempotencyKey(ctx, first.RequesterID(), "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byKey.ID())
}

func TestCreate_SlotCheckedBeforeIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Reservations()
	venueID := uuid.New()
	date := today.AddDays(7)
	enforce := reservationDomain.CreateOptions{BlockPolicy: reservationDomain.BlockPolicyEnforce}

	first := newReservation(t, venueID, date, reservationDomain.SlotEvening, "k1")
	require.NoError(t, repo.Create(ctx, first, enforce))

	sameSlot, err := reservationDomain.NewReservation(reservationDomain.NewReservationParams{
		VenueID:         venueID,
		RequesterID:     first.RequesterID(),
		Date:            date,
		TimeSlot:        reservationDomain.SlotEvening,
		GuestCount:      10,
		IdempotencyKey:  "k1",
		TotalPriceCents: 1000,
		Currency:        "INR",
		Today:           today,
		Now:             now,
	})
	require.NoError(t, err)
	err = repo.Create(ctx, sameSlot, enforce)
	assert.Equal(t, domain.CodeSlotConflict, domain.CodeOf(err))

	otherSlot, err := reservationDomain.NewReservation(reservationDomain.NewReservationParams{
		VenueID:         venueID,
		RequesterID:     first.RequesterID(),
		Date:            date,
		TimeSlot:        reservationDomain.SlotMorning,
		GuestCount:      10,
		IdempotencyKey:  "k1",
		TotalPriceCents: 1000,
		Currency:        "INR",
		Today:           today,
		Now:             now,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, otherSlot, enforce), reservationDomain.ErrIdempotencyKeyTaken)
}

func TestCreate_BlockPolicies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	venueID := uuid.New()
	key := reservationDomain.SlotKey{VenueID: venueID, Date: today.AddDays(3), TimeSlot: reservationDomain.SlotNight}

	block, err := reservationDomain.NewBlock(key, uuid.New(), "", today, now)
	require.NoError(t, err)
	_, err = s.Blocks().Set(ctx, block)
	require.NoError(t, err)

	r := newReservation(t, venueID, key.Date, key.TimeSlot, "")
	err = s.Reservations().Create(ctx, r, reservationDomain.CreateOptions{BlockPolicy: reservationDomain.BlockPolicyEnforce})
	assert.Equal(t, domain.CodeSlotBlocked, domain.CodeOf(err))

	require.NoError(t, s.Reservations().Create(ctx, r, reservationDomain.CreateOptions{BlockPolicy: reservationDomain.BlockPolicyAdvisory}))
	blocks, err := s.Blocks().FindInRange(ctx, venueID, key.Date, key.Date)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestFindOccupancyInRange_AdvisoryBookingSeenWhole(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	venueID := uuid.New()
	key := reservationDomain.SlotKey{VenueID: venueID, Date: today.AddDays(4), TimeSlot: reservationDomain.SlotMorning}

	block, err := reservationDomain.NewBlock(key, uuid.New(), "maintenance", today, now)
	require.NoError(t, err)
	_, err = s.Blocks().Set(ctx, block)
	require.NoError(t, err)

	reservations, blocks, err := s.Reservations().FindOccupancyInRange(ctx, venueID, key.Date, key.Date)
	require.NoError(t, err)
	assert.Empty(t, reservations)
	require.Len(t, blocks, 1)

	r := newReservation(t, venueID, key.Date, key.TimeSlot, "")
	require.NoError(t, s.Reservations().Create(ctx, r, reservationDomain.CreateOptions{BlockPolicy: reservationDomain.BlockPolicyAdvisory}))

	reservations, blocks, err = s.Reservations().FindOccupancyInRange(ctx, venueID, key.Date, key.Date)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, r.ID(), reservations[0].ID())
	assert.Empty(t, blocks)

	reservations, blocks, err = s.Reservations().FindOccupancyInRange(ctx, venueID, key.Date.AddDays(1), key.Date.AddDays(5))
	require.NoError(t, err)
	assert.Empty(t, reservations)
	assert.Empty(t, blocks)
}

func TestUpdate_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Reservations()
	r := newReservation(t, uuid.New(), today.AddDays(1), reservationDomain.SlotEvening, "")
	require.NoError(t, repo.Create(ctx, r, reservationDomain.CreateOptions{}))

	a, err := repo.FindByID(ctx, r.ID())
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, r.ID())
	require.NoError(t, err)

	_, err = a.Apply(reservationDomain.EventCancel, reservationDomain.RoleRequester, "", now)
	require.NoError(t, err)
	a.IncrementVersion()
	require.NoError(t, repo.Update(ctx, a))

	_, err = b.Apply(reservationDomain.EventConfirm, reservationDomain.RoleOwner, "", now)
	require.NoError(t, err)
	b.IncrementVersion()
	assert.True(t, domain.IsConflict(repo.Update(ctx, b)))

	_, err = repo.FindActiveBySlot(ctx, r.SlotKey())
	assert.True(t, domain.IsNotFound(err), "a cancelled reservation releases its slot")
}

func TestBlocks_RequireFreeSlot(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := newReservation(t, uuid.New(), today.AddDays(2), reservationDomain.SlotMorning, "")
	require.NoError(t, s.Reservations().Create(ctx, r, reservationDomain.CreateOptions{}))

	block, err := reservationDomain.NewBlock(r.SlotKey(), uuid.New(), "", today, now)
	require.NoError(t, err)
	_, err = s.Blocks().Set(ctx, block)
	assert.Equal(t, domain.CodeSlotNotToggleable, domain.CodeOf(err))

	free := r.SlotKey()
	free.TimeSlot = reservationDomain.SlotEvening
	assert.True(t, domain.IsNotFound(s.Blocks().Clear(ctx, free)))
}

func TestVenues_Versioned(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Venues()
	id, owner := uuid.New(), uuid.New()

	v2, err := venueDomain.NewVenue(id, owner, "Hall", 100, 1000, "INR", true, 2, now)
	require.NoError(t, err)
	applied, err := repo.Upsert(ctx, v2)
	require.NoError(t, err)
	assert.True(t, applied)

	v1, err := venueDomain.NewVenue(id, owner, "Stale", 100, 1000, "INR", true, 1, now)
	require.NoError(t, err)
	applied, err = repo.Upsert(ctx, v1)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.Deactivate(ctx, id, 3)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.Equal(t, "Hall", got.Name())
}
