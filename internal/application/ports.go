package application

import (
	"context"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/google/uuid"
)

// Clock supplies the current instant. Each operation reads it once.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// EventPublisher is the outbound event sink (Kafka producer or RabbitMQ publisher).
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// AvailabilityCache stores computed calendars per venue. Entries are keyed by
// a per-venue generation: Invalidate moves the venue to a new generation, so a
// calendar computed from reads that began before the bump is never served.
type AvailabilityCache interface {
	Generation(ctx context.Context, venueID uuid.UUID) (int64, error)
	Get(ctx context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date) (reservationDomain.Calendar, bool, error)
	Put(ctx context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date, cal reservationDomain.Calendar) error
	Invalidate(ctx context.Context, venueID uuid.UUID) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Generation(context.Context, uuid.UUID) (int64, error) { return 0, nil }

func (NopCache) Get(context.Context, uuid.UUID, int64, reservationDomain.Date, reservationDomain.Date, reservationDomain.Date) (reservationDomain.Calendar, bool, error) {
	return nil, false, nil
}

func (NopCache) Put(context.Context, uuid.UUID, int64, reservationDomain.Date, reservationDomain.Date, reservationDomain.Date, reservationDomain.Calendar) error {
	return nil
}

func (NopCache) Invalidate(context.Context, uuid.UUID) error { return nil }

// Policy holds the booking rules shared by the reservation and availability services.
type Policy struct {
	BlockPolicy  reservationDomain.BlockPolicy
	MaxAttempts  int
	RetryBackoff time.Duration
	Location     *time.Location
}

// DefaultPolicy enforces blocks, tries three times and uses UTC dates.
func DefaultPolicy() Policy {
	return Policy{
		BlockPolicy:  reservationDomain.BlockPolicyEnforce,
		MaxAttempts:  3,
		RetryBackoff: 20 * time.Millisecond,
		Location:     time.UTC,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.BlockPolicy == "" {
		p.BlockPolicy = d.BlockPolicy
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RetryBackoff < 0 {
		p.RetryBackoff = 0
	}
	if p.Location == nil {
		p.Location = d.Location
	}
	return p
}

// today is the calendar date of now in the policy time zone.
func (p Policy) today(now time.Time) reservationDomain.Date {
	return reservationDomain.DateOf(now, p.Location)
}

// pause waits before retry attempt n (1-based) or returns early on cancellation.
func (p Policy) pause(ctx context.Context, attempt int) error {
	if p.RetryBackoff == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(attempt) * p.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
