package application

import (
	"context"
	"errors"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityDTO is the calendar for a venue over an inclusive date range.
type AvailabilityDTO struct {
	VenueID uuid.UUID                             `json:"venue_id"`
	From    string                                `json:"from"`
	To      string                                `json:"to"`
	Slots   reservationDomain.Calendar            `json:"slots"`
	Labels  map[reservationDomain.TimeSlot]string `json:"labels"`
}

// BlockDTO is the response representation of an availability block.
type BlockDTO struct {
	VenueID   uuid.UUID `json:"venue_id"`
	Date      string    `json:"date"`
	TimeSlot  string    `json:"time_slot"`
	SetBy     uuid.UUID `json:"set_by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AvailabilityService projects venue calendars and lets owners block slots.
type AvailabilityService struct {
	reservations reservationDomain.ReservationRepository
	blocks       reservationDomain.BlockRepository
	venues       venueDomain.VenueRepository
	cache        AvailabilityCache
	clock        Clock
	policy       Policy
	logger       *zap.Logger
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(
	reservations reservationDomain.ReservationRepository,
	blocks reservationDomain.BlockRepository,
	venues venueDomain.VenueRepository,
	cache AvailabilityCache,
	clock Clock,
	policy Policy,
	logger *zap.Logger,
) *AvailabilityService {
	if cache == nil {
		cache = NopCache{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &AvailabilityService{
		reservations: reservations,
		blocks:       blocks,
		venues:       venues,
		cache:        cache,
		clock:        clock,
		policy:       policy.withDefaults(),
		logger:       logger.Named("availability_service"),
	}
}

// GetAvailability returns the state of every slot of venueID with from <= date <= to.
func (s *AvailabilityService) GetAvailability(ctx context.Context, venueID uuid.UUID, fromStr, toStr string) (*AvailabilityDTO, error) {
	from, err := reservationDomain.ParseDate(fromStr)
	if err != nil {
		return nil, domain.NewValidationError("from: " + err.Error())
	}
	to, err := reservationDomain.ParseDate(toStr)
	if err != nil {
		return nil, domain.NewValidationError("to: " + err.Error())
	}
	if err := reservationDomain.ValidateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.venues.FindByID(ctx, venueID); err != nil {
		return nil, err
	}

	today := s.policy.today(s.clock.Now())

	cal, err := s.cachedCalendar(ctx, venueID, from, to, today)
	if err != nil {
		return nil, err
	}

	return &AvailabilityDTO{
		VenueID: venueID,
		From:    from.String(),
		To:      to.String(),
		Slots:   cal,
		Labels:  slotLabels(),
	}, nil
}

// cachedCalendar serves the calendar from the cache when possible. Cache
// failures degrade to a direct projection.
func (s *AvailabilityService) cachedCalendar(ctx context.Context, venueID uuid.UUID, from, to, today reservationDomain.Date) (reservationDomain.Calendar, error) {
	gen, err := s.cache.Generation(ctx, venueID)
	useCache := err == nil
	if err != nil {
		s.logger.Warn("availability cache unavailable", zap.String("venue_id", venueID.String()), zap.Error(err))
	}

	if useCache {
		cal, hit, err := s.cache.Get(ctx, venueID, gen, from, to, today)
		if err != nil {
			s.logger.Warn("availability cache read failed", zap.String("venue_id", venueID.String()), zap.Error(err))
		}
		if hit {
			return cal, nil
		}
	}

	var (
		reservations []*reservationDomain.Reservation
		blocks       []*reservationDomain.Block
	)
	err = s.retry(ctx, "read availability", func() error {
		var err error
		reservations, blocks, err = s.reservations.FindOccupancyInRange(ctx, venueID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	cal := reservationDomain.Project(from, to, reservations, blocks, today)

	if useCache {
		if err := s.cache.Put(ctx, venueID, gen, from, to, today, cal); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("venue_id", venueID.String()), zap.Error(err))
		}
	}
	return cal, nil
}

// SetBlock blocks a free slot on behalf of the venue owner. Blocking an
// already blocked slot returns the existing block.
func (s *AvailabilityService) SetBlock(ctx context.Context, venueID uuid.UUID, dateStr, slotStr string, ownerID uuid.UUID, reason string) (*BlockDTO, error) {
	key, err := s.ownedSlot(ctx, venueID, dateStr, slotStr, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	block, err := reservationDomain.NewBlock(key, ownerID, reason, s.policy.today(now), now)
	if err != nil {
		return nil, err
	}

	var stored *reservationDomain.Block
	err = s.retry(ctx, "block slot", func() error {
		var err error
		stored, err = s.blocks.Set(ctx, block)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("slot blocked", zap.String("slot", key.String()), zap.String("owner_id", ownerID.String()))
	s.invalidate(ctx, venueID)
	result := toBlockDTO(stored)
	return &result, nil
}

// ClearBlock removes the block on a slot on behalf of the venue owner.
func (s *AvailabilityService) ClearBlock(ctx context.Context, venueID uuid.UUID, dateStr, slotStr string, ownerID uuid.UUID) error {
	key, err := s.ownedSlot(ctx, venueID, dateStr, slotStr, ownerID)
	if err != nil {
		return err
	}

	if err := s.retry(ctx, "unblock slot", func() error {
		return s.blocks.Clear(ctx, key)
	}); err != nil {
		return err
	}

	s.logger.Info("slot unblocked", zap.String("slot", key.String()), zap.String("owner_id", ownerID.String()))
	s.invalidate(ctx, venueID)
	return nil
}

func (s *AvailabilityService) ownedSlot(ctx context.Context, venueID uuid.UUID, dateStr, slotStr string, ownerID uuid.UUID) (reservationDomain.SlotKey, error) {
	date, err := reservationDomain.ParseDate(dateStr)
	if err != nil {
		return reservationDomain.SlotKey{}, domain.NewValidationError(err.Error())
	}
	slot, err := reservationDomain.ParseTimeSlot(slotStr)
	if err != nil {
		return reservationDomain.SlotKey{}, domain.NewValidationError(err.Error())
	}
	venue, err := s.venues.FindByID(ctx, venueID)
	if err != nil {
		return reservationDomain.SlotKey{}, err
	}
	if !venue.IsOwnedBy(ownerID) {
		return reservationDomain.SlotKey{}, domain.NewForbiddenError("only the venue owner can change availability")
	}
	return reservationDomain.SlotKey{VenueID: venueID, Date: date, TimeSlot: slot}, nil
}

// retry reruns fn while the store reports contention.
func (s *AvailabilityService) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.policy.pause(ctx, attempt-1); err != nil {
				return domain.NewTimeoutError(operation, err)
			}
		}
		err := fn()
		if err == nil || !errors.Is(err, reservationDomain.ErrContention) {
			return err
		}
		lastErr = err
	}
	return domain.NewTimeoutError(operation, lastErr)
}

func (s *AvailabilityService) invalidate(ctx context.Context, venueID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, venueID); err != nil {
		s.logger.Warn("failed to invalidate availability cache",
			zap.String("venue_id", venueID.String()),
			zap.Error(err),
		)
	}
}

func slotLabels() map[reservationDomain.TimeSlot]string {
	labels := make(map[reservationDomain.TimeSlot]string, len(reservationDomain.AllTimeSlots))
	for _, slot := range reservationDomain.AllTimeSlots {
		labels[slot] = slot.Label()
	}
	return labels
}

func toBlockDTO(b *reservationDomain.Block) BlockDTO {
	return BlockDTO{
		VenueID:   b.VenueID(),
		Date:      b.Date().String(),
		TimeSlot:  string(b.TimeSlot()),
		SetBy:     b.SetBy(),
		Reason:    b.Reason(),
		CreatedAt: b.CreatedAt(),
	}
}
