package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockModel is the GORM model for the availability_blocks table. The slot is the primary key.
type BlockModel struct {
	VenueID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Date      time.Time `gorm:"type:date;primaryKey"`
	TimeSlot  string    `gorm:"size:10;primaryKey"`
	SetBy     uuid.UUID `gorm:"type:uuid;not null"`
	Reason    string    `gorm:"size:500"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BlockModel) TableName() string {
	return "availability_blocks"
}

// GormBlockRepository is the PostgreSQL implementation of BlockRepository.
type GormBlockRepository struct {
	db *gorm.DB
}

// NewGormBlockRepository creates a new GormBlockRepository.
func NewGormBlockRepository(db *gorm.DB) *GormBlockRepository {
	return &GormBlockRepository{db: db}
}

// FindInRange retrieves a venue's blocks with from <= date <= to.
func (r *GormBlockRepository) FindInRange(ctx context.Context, venueID uuid.UUID, from, to reservationDomain.Date) ([]*reservationDomain.Block, error) {
	var models []BlockModel
	if err := findBlocksInRange(r.db.WithContext(ctx), venueID, from, to, &models); err != nil {
		return nil, err
	}
	return toDomainBlocks(models)
}

func findBlocksInRange(tx *gorm.DB, venueID uuid.UUID, from, to reservationDomain.Date, models *[]BlockModel) error {
	if err := tx.
		Where("venue_id = ? AND date BETWEEN ? AND ?", venueID, from.Time(), to.Time()).
		Find(models).Error; err != nil {
		return fmt.Errorf("failed to find blocks in range: %w", err)
	}
	return nil
}

// Set stores b unless the slot is booked. An existing block is returned unchanged.
func (r *GormBlockRepository) Set(ctx context.Context, b *reservationDomain.Block) (*reservationDomain.Block, error) {
	key := b.Key()
	var stored *reservationDomain.Block

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSlotNotBooked(tx, key); err != nil {
			return err
		}

		var existing BlockModel
		err := slotScope(tx, key).Take(&existing).Error
		if err == nil {
			stored, err = toDomainBlock(&existing)
			return err
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(toBlockModel(b)).Error; err != nil {
			return err
		}
		stored = b
		return nil
	}, serializable)
	if err == nil {
		return stored, nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return nil, err
	}
	if constraint, ok := database.UniqueViolation(err); ok && constraint == constraintAvailabilityBlockPK {
		// A concurrent Set won; retrying returns its block.
		return nil, fmt.Errorf("%w: concurrent block on %s", reservationDomain.ErrContention, key)
	}
	if database.IsTransient(err) {
		return nil, fmt.Errorf("%w: %v", reservationDomain.ErrContention, err)
	}
	return nil, fmt.Errorf("failed to set block: %w", err)
}

// Clear removes the block for key unless the slot is booked.
func (r *GormBlockRepository) Clear(ctx context.Context, key reservationDomain.SlotKey) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSlotNotBooked(tx, key); err != nil {
			return err
		}
		result := slotScope(tx, key).Delete(&BlockModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("Block", key.String())
		}
		return nil
	}, serializable)
	if err == nil {
		return nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	if database.IsTransient(err) {
		return fmt.Errorf("%w: %v", reservationDomain.ErrContention, err)
	}
	return fmt.Errorf("failed to clear block: %w", err)
}

func ensureSlotNotBooked(tx *gorm.DB, key reservationDomain.SlotKey) error {
	var active int64
	if err := slotScope(tx.Model(&ReservationModel{}), key).
		Where("status IN ?", activeStatuses).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return domain.NewSlotNotToggleableError(key.String())
	}
	return nil
}

func toBlockModel(b *reservationDomain.Block) *BlockModel {
	return &BlockModel{
		VenueID:   b.VenueID(),
		Date:      b.Date().Time(),
		TimeSlot:  string(b.TimeSlot()),
		SetBy:     b.SetBy(),
		Reason:    b.Reason(),
		CreatedAt: b.CreatedAt(),
	}
}

func toDomainBlock(m *BlockModel) (*reservationDomain.Block, error) {
	slot, err := reservationDomain.ParseTimeSlot(m.TimeSlot)
	if err != nil {
		return nil, err
	}
	key := reservationDomain.SlotKey{
		VenueID:  m.VenueID,
		Date:     reservationDomain.DateOf(m.Date, time.UTC),
		TimeSlot: slot,
	}
	return reservationDomain.ReconstructBlock(key, m.SetBy, m.Reason, m.CreatedAt), nil
}

func toDomainBlocks(models []BlockModel) ([]*reservationDomain.Block, error) {
	blocks := make([]*reservationDomain.Block, 0, len(models))
	for i := range models {
		b, err := toDomainBlock(&models[i])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
