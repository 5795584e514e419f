package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/internal/repository/memory"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []kafka.CloudEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []kafka.CloudEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// countingCache is an in-process AvailabilityCache that counts invalidations.
type countingCache struct {
	mu          sync.Mutex
	gens        map[uuid.UUID]int64
	stored      map[string]reservationDomain.Calendar
	invalidated map[uuid.UUID]int
}

func newCountingCache() *countingCache {
	return &countingCache{
		gens:        make(map[uuid.UUID]int64),
		stored:      make(map[string]reservationDomain.Calendar),
		invalidated: make(map[uuid.UUID]int),
	}
}

func cacheKey(venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date) string {
	return fmt.Sprintf("%s/%d/%s/%s/%s", venueID, gen, from, to, today)
}

func (c *countingCache) Generation(_ context.Context, venueID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[venueID], nil
}

func (c *countingCache) Get(_ context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date) (reservationDomain.Calendar, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, ok := c.stored[cacheKey(venueID, gen, from, to, today)]
	return cal, ok, nil
}

func (c *countingCache) Put(_ context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date, cal reservationDomain.Calendar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[cacheKey(venueID, gen, from, to, today)] = cal
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, venueID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[venueID]++
	c.invalidated[venueID]++
	return nil
}

type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	publisher    *recordingPublisher
	cache        *countingCache
	reservations *ReservationService
	availability *AvailabilityService
	catalog      *CatalogService

	venueID uuid.UUID
	ownerID uuid.UUID
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()

	policy.RetryBackoff = 0
	f := &fixture{
		store:     memory.NewStore(),
		clock:     &fakeClock{now: testNow},
		publisher: &recordingPublisher{},
		cache:     newCountingCache(),
		venueID:   uuid.New(),
		ownerID:   uuid.New(),
	}
	log := zap.NewNop()
	pricing := reservationDomain.NewStandardPricingStrategy(reservationDomain.DefaultServiceFeeCents)

	f.reservations = NewReservationService(f.store.Reservations(), f.store.Venues(), pricing, f.publisher, f.cache, f.clock, policy, log)
	f.availability = NewAvailabilityService(f.store.Reservations(), f.store.Blocks(), f.store.Venues(), f.cache, f.clock, policy, log)
	f.catalog = NewCatalogService(f.store.Venues(), f.cache, log)

	require.NoError(t, f.catalog.ApplyVenueUpserted(context.Background(), events.VenueUpsertedEvent{
		VenueID:           f.venueID,
		OwnerID:           f.ownerID,
		Name:              "Grand Hall",
		Capacity:          200,
		PricePerSlotCents: 50000,
		Currency:          "INR",
		Active:            true,
		Version:           1,
		OccurredAt:        testNow,
	}))
	return f
}

func (f *fixture) request(date, slot string) SubmitReservationRequest {
	return SubmitReservationRequest{
		VenueID:    f.venueID,
		Date:       date,
		TimeSlot:   slot,
		GuestCount: 120,
	}
}

func (f *fixture) submit(t *testing.T, requesterID uuid.UUID, date, slot string) *ReservationDTO {
	t.Helper()
	dto, err := f.reservations.SubmitReservation(context.Background(), requesterID, f.request(date, slot))
	require.NoError(t, err)
	return dto
}
