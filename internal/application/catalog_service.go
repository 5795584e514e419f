package application

import (
	"context"
	"fmt"
	"time"

	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VenueDTO is the API response representation of a catalog venue.
type VenueDTO struct {
	ID                uuid.UUID `json:"id"`
	OwnerID           uuid.UUID `json:"owner_id"`
	Name              string    `json:"name"`
	Capacity          int       `json:"capacity"`
	PricePerSlotCents int64     `json:"price_per_slot_cents"`
	Currency          string    `json:"currency"`
	Active            bool      `json:"active"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CatalogService maintains the local projection of the venue catalog.
type CatalogService struct {
	repo   venueDomain.VenueRepository
	cache  AvailabilityCache
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo venueDomain.VenueRepository, cache AvailabilityCache, logger *zap.Logger) *CatalogService {
	if cache == nil {
		cache = NopCache{}
	}
	return &CatalogService{repo: repo, cache: cache, logger: logger.Named("catalog_service")}
}

// ApplyVenueUpserted stores the snapshot unless a newer one is already projected.
func (s *CatalogService) ApplyVenueUpserted(ctx context.Context, evt events.VenueUpsertedEvent) error {
	currency := evt.Currency
	if currency == "" {
		currency = domain.CurrencyINR
	}
	v, err := venueDomain.NewVenue(
		evt.VenueID, evt.OwnerID,
		evt.Name,
		evt.Capacity,
		evt.PricePerSlotCents,
		currency,
		evt.Active,
		evt.Version,
		evt.OccurredAt,
	)
	if err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid venue snapshot: %v", err))
	}

	applied, err := s.repo.Upsert(ctx, v)
	if err != nil {
		return fmt.Errorf("failed to project venue: %w", err)
	}
	if !applied {
		s.logger.Debug("stale venue snapshot ignored",
			zap.String("venue_id", evt.VenueID.String()),
			zap.Int64("version", evt.Version),
		)
		return nil
	}

	s.logger.Info("venue projected",
		zap.String("venue_id", evt.VenueID.String()),
		zap.Int64("version", evt.Version),
		zap.Bool("active", evt.Active),
	)
	return nil
}

// ApplyVenueRemoved marks the venue inactive. Its reservations are kept.
func (s *CatalogService) ApplyVenueRemoved(ctx context.Context, evt events.VenueRemovedEvent) error {
	applied, err := s.repo.Deactivate(ctx, evt.VenueID, evt.Version)
	if err != nil {
		return fmt.Errorf("failed to deactivate venue: %w", err)
	}
	if applied {
		s.logger.Info("venue deactivated", zap.String("venue_id", evt.VenueID.String()))
		if err := s.cache.Invalidate(ctx, evt.VenueID); err != nil {
			s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
		}
	}
	return nil
}

// GetVenue returns a projected venue, active or not.
func (s *CatalogService) GetVenue(ctx context.Context, venueID uuid.UUID) (*VenueDTO, error) {
	v, err := s.repo.FindByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	result := toVenueDTO(v)
	return &result, nil
}

func toVenueDTO(v *venueDomain.Venue) VenueDTO {
	return VenueDTO{
		ID:                v.ID(),
		OwnerID:           v.OwnerID(),
		Name:              v.Name(),
		Capacity:          v.Capacity(),
		PricePerSlotCents: v.PricePerSlotCents(),
		Currency:          v.Currency(),
		Active:            v.Active(),
		UpdatedAt:         v.UpdatedAt(),
	}
}
