package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	venueDomain "github.com/banquethub/service-reservation/internal/domain/venue"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VenueModel is the GORM model for the venues projection table.
type VenueModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID           uuid.UUID `gorm:"type:uuid;not null;index"`
	Name              string    `gorm:"type:varchar(200);not null"`
	Capacity          int       `gorm:"not null"`
	PricePerSlotCents int64     `gorm:"not null"`
	Currency          string    `gorm:"size:3;not null;default:'INR'"`
	Active            bool      `gorm:"not null"`
	Version           int64     `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for the GORM model.
func (VenueModel) TableName() string { return "venues" }

// GormVenueRepository implements VenueRepository using GORM.
type GormVenueRepository struct {
	db *gorm.DB
}

// NewGormVenueRepository creates a new GormVenueRepository.
func NewGormVenueRepository(db *gorm.DB) *GormVenueRepository {
	return &GormVenueRepository{db: db}
}

// FindByID retrieves a venue, active or not.
func (r *GormVenueRepository) FindByID(ctx context.Context, id uuid.UUID) (*venueDomain.Venue, error) {
	var model VenueModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Venue", id.String())
		}
		return nil, fmt.Errorf("failed to find venue: %w", err)
	}
	return toVenueDomain(&model), nil
}

// Upsert stores v unless the stored snapshot is as new or newer.
func (r *GormVenueRepository) Upsert(ctx context.Context, v *venueDomain.Venue) (bool, error) {
	model := toVenueModel(v)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_id", "name", "capacity", "price_per_slot_cents", "currency", "active", "version", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "venues.version < excluded.version"},
		}},
	}).Create(model)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert venue: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Deactivate marks the venue inactive if version is newer than the stored one.
func (r *GormVenueRepository) Deactivate(ctx context.Context, id uuid.UUID, version int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&VenueModel{}).
		Where("id = ? AND version < ?", id, version).
		Updates(map[string]interface{}{
			"active":     false,
			"version":    version,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to deactivate venue: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func toVenueModel(v *venueDomain.Venue) *VenueModel {
	return &VenueModel{
		ID:                v.ID(),
		OwnerID:           v.OwnerID(),
		Name:              v.Name(),
		Capacity:          v.Capacity(),
		PricePerSlotCents: v.PricePerSlotCents(),
		Currency:          v.Currency(),
		Active:            v.Active(),
		Version:           v.Version(),
		UpdatedAt:         v.UpdatedAt(),
	}
}

func toVenueDomain(m *VenueModel) *venueDomain.Venue {
	return venueDomain.Reconstruct(
		m.ID, m.OwnerID,
		m.Name,
		m.Capacity,
		m.PricePerSlotCents,
		m.Currency,
		m.Active,
		m.Version,
		m.UpdatedAt,
	)
}
