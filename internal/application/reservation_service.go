package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/banquethub/service-reservation/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventSource = "service-reservation"

// SubmitReservationRequest holds the data needed to reserve a slot.
type SubmitReservationRequest struct {
	VenueID        uuid.UUID `json:"venue_id" validate:"required"`
	Date           string    `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot       string    `json:"time_slot" validate:"required"`
	GuestCount     int       `json:"guest_count" validate:"required,gt=0"`
	IdempotencyKey string    `json:"idempotency_key" validate:"omitempty,max=128"`
}

// TransitionRequest carries the optional reason for a reject or cancel.
type TransitionRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

// ReservationDTO is the response representation of a reservation. Status is
// the effective status on the day the DTO was built.
type ReservationDTO struct {
	ID              uuid.UUID `json:"id"`
	VenueID         uuid.UUID `json:"venue_id"`
	RequesterID     uuid.UUID `json:"requester_id"`
	Date            string    `json:"date"`
	TimeSlot        string    `json:"time_slot"`
	TimeSlotLabel   string    `json:"time_slot_label"`
	GuestCount      int       `json:"guest_count"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	Note            string    `json:"note,omitempty"`
	Version         int64     `json:"version"`
	StatusChangedAt time.Time `json:"status_changed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReservationStatsDTO holds reservation statistics for the admin dashboard.
type ReservationStatsDTO struct {
	TotalReservations int64            `json:"total_reservations"`
	ByStatus          map[string]int64 `json:"by_status"`
}

// ReservationService is the application service for submitting reservations
// and moving them through their lifecycle.
type ReservationService struct {
	reservations reservationDomain.ReservationRepository
	venues       venueDomain.VenueRepository
	pricing      reservationDomain.PricingStrategy
	publisher    EventPublisher
	cache        AvailabilityCache
	clock        Clock
	policy       Policy
	logger       *zap.Logger
}

// NewReservationService creates a new ReservationService. A nil cache or clock
// falls back to NopCache and SystemClock.
func NewReservationService(
	reservations reservationDomain.ReservationRepository,
	venues venueDomain.VenueRepository,
	pricing reservationDomain.PricingStrategy,
	publisher EventPublisher,
	cache AvailabilityCache,
	clock Clock,
	policy Policy,
	logger *zap.Logger,
) *ReservationService {
	if cache == nil {
		cache = NopCache{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReservationService{
		reservations: reservations,
		venues:       venues,
		pricing:      pricing,
		publisher:    publisher,
		cache:        cache,
		clock:        clock,
		policy:       policy.withDefaults(),
		logger:       logger.Named("reservation_service"),
	}
}

// SubmitReservation reserves a slot for requesterID. A repeated idempotency
// key returns the reservation created by the first call.
func (s *ReservationService) SubmitReservation(ctx context.Context, requesterID uuid.UUID, req SubmitReservationRequest) (*ReservationDTO, error) {
	if requesterID == uuid.Nil {
		return nil, domain.NewUnauthorizedError("requester identity is required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	date, err := reservationDomain.ParseDate(req.Date)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	slot, err := reservationDomain.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	now := s.clock.Now()
	today := s.policy.today(now)

	venue, err := s.activeVenue(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	if !venue.Fits(req.GuestCount) {
		return nil, domain.NewValidationError(fmt.Sprintf("guest count %d exceeds venue capacity %d", req.GuestCount, venue.Capacity()))
	}

	if req.IdempotencyKey != "" {
		existing, err := s.reservations.FindByIdempotencyKey(ctx, requesterID, req.IdempotencyKey)
		if err == nil {
			result := toReservationDTO(existing, today)
			return &result, nil
		}
		if !domain.IsNotFound(err) {
			return nil, err
		}
	}

	priceCents, err := s.pricing.Calculate(reservationDomain.PricingParams{
		PricePerSlotCents: venue.PricePerSlotCents(),
		TimeSlot:          slot,
		GuestCount:        req.GuestCount,
	})
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}

	res, err := reservationDomain.NewReservation(reservationDomain.NewReservationParams{
		VenueID:         venue.ID(),
		RequesterID:     requesterID,
		Date:            date,
		TimeSlot:        slot,
		GuestCount:      req.GuestCount,
		IdempotencyKey:  req.IdempotencyKey,
		TotalPriceCents: priceCents,
		Currency:        venue.Currency(),
		Today:           today,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	stored, created, err := s.create(ctx, res)
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("reservation created",
			zap.String("reservation_id", stored.ID().String()),
			zap.String("slot", stored.SlotKey().String()),
		)
		s.invalidate(ctx, stored.VenueID())
		s.publishEvent(ctx, events.TopicReservationEvents, events.ReservationCreated, stored.ID().String(), events.ReservationCreatedEvent{
			ReservationID:   stored.ID(),
			VenueID:         stored.VenueID(),
			Date:            stored.Date().String(),
			TimeSlot:        string(stored.TimeSlot()),
			RequesterID:     stored.RequesterID(),
			GuestCount:      stored.GuestCount(),
			TotalPriceCents: stored.TotalPriceCents(),
			Currency:        stored.Currency(),
			OccurredAt:      now.UTC(),
		})
	}

	result := toReservationDTO(stored, today)
	return &result, nil
}

// create runs the atomic check-and-create, retrying contention with the same
// reservation ID. It reports whether res itself was stored; false means the
// idempotency key resolved to an earlier reservation.
func (s *ReservationService) create(ctx context.Context, res *reservationDomain.Reservation) (*reservationDomain.Reservation, bool, error) {
	opts := reservationDomain.CreateOptions{BlockPolicy: s.policy.BlockPolicy}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.policy.pause(ctx, attempt-1); err != nil {
				return nil, false, domain.NewTimeoutError("submit reservation", err)
			}
		}

		err := s.reservations.Create(ctx, res, opts)
		switch {
		case err == nil:
			return res, true, nil

		case errors.Is(err, reservationDomain.ErrAlreadyExists):
			// An earlier attempt committed but its acknowledgement was lost.
			return res, true, nil

		case errors.Is(err, reservationDomain.ErrIdempotencyKeyTaken):
			existing, ferr := s.reservations.FindByIdempotencyKey(ctx, res.RequesterID(), res.IdempotencyKey())
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, existing.ID() == res.ID(), nil

		case errors.Is(err, reservationDomain.ErrContention):
			lastErr = err
			s.logger.Warn("reservation create contended",
				zap.String("reservation_id", res.ID().String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		var de *domain.DomainError
		if errors.As(err, &de) && de.Code == domain.CodeSlotConflict {
			if de.ConflictingID == res.ID().String() {
				return res, true, nil
			}
			// The slot index is checked before the idempotency index, so a
			// replay racing its original surfaces as a slot conflict.
			existing, found, ferr := s.findByIdempotencyKey(ctx, res)
			if ferr != nil {
				return nil, false, ferr
			}
			if found {
				return existing, existing.ID() == res.ID(), nil
			}
		}
		return nil, false, err
	}

	return nil, false, domain.NewTimeoutError("submit reservation", lastErr)
}

// findByIdempotencyKey looks up the requester's reservation holding res's key.
// It reports false when res carries no key or nothing holds it.
func (s *ReservationService) findByIdempotencyKey(ctx context.Context, res *reservationDomain.Reservation) (*reservationDomain.Reservation, bool, error) {
	if res.IdempotencyKey() == "" {
		return nil, false, nil
	}
	existing, err := s.reservations.FindByIdempotencyKey(ctx, res.RequesterID(), res.IdempotencyKey())
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return existing, true, nil
}

// ApplyTransition applies a caller-triggered lifecycle event on behalf of actorID.
func (s *ReservationService) ApplyTransition(ctx context.Context, reservationID uuid.UUID, event string, actorID uuid.UUID, note string) (*ReservationDTO, error) {
	ev, err := reservationDomain.ParseEvent(event)
	if err != nil {
		return nil, &domain.DomainError{Code: domain.CodeInvalidTransition, Message: err.Error()}
	}
	if err := validation.Struct(TransitionRequest{Note: note}); err != nil {
		return nil, err
	}
	return s.transition(ctx, reservationID, ev, note, &actorID, func(r *reservationDomain.Reservation, ownerID uuid.UUID) reservationDomain.Role {
		return r.RolesOf(actorID, ownerID)
	})
}

// CompleteDue persists Completed for up to limit Confirmed reservations whose
// date has passed and returns how many it completed.
func (s *ReservationService) CompleteDue(ctx context.Context, limit int) (int, error) {
	today := s.policy.today(s.clock.Now())
	due, err := s.reservations.FindConfirmedBefore(ctx, today, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find due reservations: %w", err)
	}

	completed := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		_, err := s.transition(ctx, r.ID(), reservationDomain.EventComplete, "", nil,
			func(*reservationDomain.Reservation, uuid.UUID) reservationDomain.Role {
				return reservationDomain.RoleSystem
			})
		if err != nil {
			s.logger.Warn("failed to complete reservation",
				zap.String("reservation_id", r.ID().String()),
				zap.Error(err),
			)
			continue
		}
		completed++
	}
	return completed, nil
}

type rolesFunc func(r *reservationDomain.Reservation, venueOwnerID uuid.UUID) reservationDomain.Role

// transition re-reads and re-evaluates on every version conflict until the
// attempt budget runs out.
func (s *ReservationService) transition(ctx context.Context, id uuid.UUID, ev reservationDomain.Event, note string, actorID *uuid.UUID, roles rolesFunc) (*ReservationDTO, error) {
	now := s.clock.Now()
	today := s.policy.today(now)

	var ownerID uuid.UUID
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.policy.pause(ctx, attempt-1); err != nil {
				return nil, domain.NewTimeoutError(string(ev)+" reservation", err)
			}
		}

		r, err := s.reservations.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ownerID == uuid.Nil {
			ownerID, err = s.venueOwner(ctx, r.VenueID())
			if err != nil {
				return nil, err
			}
		}

		if err := checkDue(r, ev, today); err != nil {
			return nil, err
		}
		from, err := r.Apply(ev, roles(r, ownerID), note, now)
		if err != nil {
			return nil, err
		}

		r.IncrementVersion()
		err = s.reservations.Update(ctx, r)
		if err == nil {
			s.logger.Info("reservation status changed",
				zap.String("reservation_id", r.ID().String()),
				zap.String("from", string(from)),
				zap.String("to", string(r.Status())),
			)
			s.invalidate(ctx, r.VenueID())
			s.publishEvent(ctx, events.TopicReservationEvents, events.ReservationStatusChanged, r.ID().String(), events.ReservationStatusChangedEvent{
				ReservationID: r.ID(),
				VenueID:       r.VenueID(),
				RequesterID:   r.RequesterID(),
				FromStatus:    string(from),
				ToStatus:      string(r.Status()),
				Event:         string(ev),
				ActorID:       actorID,
				Note:          note,
				OccurredAt:    now.UTC(),
			})
			result := toReservationDTO(r, today)
			return &result, nil
		}
		if !domain.IsConflict(err) && !errors.Is(err, reservationDomain.ErrContention) {
			return nil, err
		}
		lastErr = err
	}

	return nil, domain.NewTimeoutError(string(ev)+" reservation", lastErr)
}

// checkDue applies lazy completion: a Confirmed reservation whose date has
// passed already reads as Completed, and only such a reservation can complete.
func checkDue(r *reservationDomain.Reservation, ev reservationDomain.Event, today reservationDomain.Date) error {
	due := r.IsDue(today)
	if ev == reservationDomain.EventComplete && r.Status() == reservationDomain.StatusConfirmed && !due {
		return domain.NewInvalidTransitionError(string(r.Status()), string(ev), "reservation date has not passed")
	}
	if ev != reservationDomain.EventComplete && due {
		return domain.NewInvalidTransitionError(string(reservationDomain.StatusCompleted), string(ev), "")
	}
	return nil
}

// GetReservation retrieves a reservation visible to its requester or the venue owner.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, actorID uuid.UUID) (*ReservationDTO, error) {
	today := s.policy.today(s.clock.Now())
	r, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID() != actorID {
		ownerID, err := s.venueOwner(ctx, r.VenueID())
		if err != nil {
			return nil, err
		}
		if ownerID != actorID {
			return nil, domain.NewForbiddenError("reservation does not belong to this user")
		}
	}
	result := toReservationDTO(r, today)
	return &result, nil
}

// ListRequesterReservations retrieves a requester's reservations, newest first.
func (s *ReservationService) ListRequesterReservations(ctx context.Context, requesterID uuid.UUID, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	today := s.policy.today(s.clock.Now())
	list, total, err := s.reservations.FindByRequesterID(ctx, requesterID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toReservationDTOs(list, today), total, page, limit)
	return &result, nil
}

// ListVenueReservations retrieves a venue's reservations for its owner.
func (s *ReservationService) ListVenueReservations(ctx context.Context, venueID, ownerID uuid.UUID, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	today := s.policy.today(s.clock.Now())
	venue, err := s.venues.FindByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !venue.IsOwnedBy(ownerID) {
		return nil, domain.NewForbiddenError("venue does not belong to this user")
	}
	list, total, err := s.reservations.FindByVenueID(ctx, venueID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toReservationDTOs(list, today), total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// ListAllReservations returns a paginated list of all reservations (admin).
func (s *ReservationService) ListAllReservations(ctx context.Context, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	today := s.policy.today(s.clock.Now())
	list, total, err := s.reservations.ListAll(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	result := domain.NewPaginatedResult(toReservationDTOs(list, today), total, page, limit)
	return &result, nil
}

// GetReservationStats returns reservation counts by stored status (admin).
func (s *ReservationService) GetReservationStats(ctx context.Context) (*ReservationStatsDTO, error) {
	counts, err := s.reservations.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &ReservationStatsDTO{
		TotalReservations: total,
		ByStatus:          counts,
	}, nil
}

// --- Helpers ---

// activeVenue returns the venue if the catalog lists it as bookable.
func (s *ReservationService) activeVenue(ctx context.Context, venueID uuid.UUID) (*venueDomain.Venue, error) {
	venue, err := s.venues.FindByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !venue.Active() {
		return nil, domain.NewNotFoundError("Venue", venueID.String())
	}
	return venue, nil
}

// venueOwner returns the owner of venueID, or uuid.Nil if the catalog no
// longer knows the venue.
func (s *ReservationService) venueOwner(ctx context.Context, venueID uuid.UUID) (uuid.UUID, error) {
	venue, err := s.venues.FindByID(ctx, venueID)
	if err != nil {
		if domain.IsNotFound(err) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return venue.OwnerID(), nil
}

func (s *ReservationService) invalidate(ctx context.Context, venueID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, venueID); err != nil {
		s.logger.Warn("failed to invalidate availability cache",
			zap.String("venue_id", venueID.String()),
			zap.Error(err),
		)
	}
}

func (s *ReservationService) publishEvent(ctx context.Context, topic, eventType, key string, data interface{}) {
	if s.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.publisher.PublishEvent(ctx, topic, cloudEvent.WithSubject(key)); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toReservationDTO(r *reservationDomain.Reservation, today reservationDomain.Date) ReservationDTO {
	return ReservationDTO{
		ID:              r.ID(),
		VenueID:         r.VenueID(),
		RequesterID:     r.RequesterID(),
		Date:            r.Date().String(),
		TimeSlot:        string(r.TimeSlot()),
		TimeSlotLabel:   r.TimeSlot().Label(),
		GuestCount:      r.GuestCount(),
		TotalPriceCents: r.TotalPriceCents(),
		Currency:        r.Currency(),
		Status:          string(r.EffectiveStatus(today)),
		IdempotencyKey:  r.IdempotencyKey(),
		Note:            r.Note(),
		Version:         r.Version(),
		StatusChangedAt: r.StatusChangedAt(),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
}

func toReservationDTOs(list []*reservationDomain.Reservation, today reservationDomain.Date) []ReservationDTO {
	dtos := make([]ReservationDTO, len(list))
	for i, r := range list {
		dtos[i] = toReservationDTO(r, today)
	}
	return dtos
}
