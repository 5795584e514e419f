package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Constraint names declared by the migrations.
const (
	constraintReservationsPK      = "reservations_pkey"
	constraintActiveSlot          = "ux_reservations_active_slot"
	constraintIdempotencyKey      = "ux_reservations_idempotency"
	constraintAvailabilityBlockPK = "availability_blocks_pkey"
)

var activeStatuses = []string{
	string(reservationDomain.StatusPending),
	string(reservationDomain.StatusConfirmed),
}

var (
	serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}
	snapshotRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
)

// ReservationModel is the GORM model for the reservations table.
type ReservationModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	VenueID         uuid.UUID `gorm:"type:uuid;not null"`
	RequesterID     uuid.UUID `gorm:"type:uuid;not null"`
	Date            time.Time `gorm:"type:date;not null"`
	TimeSlot        string    `gorm:"size:10;not null"`
	GuestCount      int       `gorm:"not null"`
	IdempotencyKey  *string   `gorm:"size:128"`
	TotalPriceCents int64     `gorm:"not null"`
	Currency        string    `gorm:"size:3;not null;default:'INR'"`
	Status          string    `gorm:"size:20;not null"`
	Note            string    `gorm:"size:500"`
	StatusChangedAt time.Time `gorm:"not null"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ReservationModel) TableName() string {
	return "reservations"
}

// GormReservationRepository is the PostgreSQL implementation of ReservationRepository.
// Slot exclusivity is enforced by the partial unique index on active rows.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository.
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID retrieves a reservation by its unique identifier.
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservationDomain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", id.String())
		}
		return nil, fmt.Errorf("failed to find reservation by ID: %w", err)
	}
	return toDomainReservation(&model)
}

// FindByIdempotencyKey retrieves the requester's reservation holding key.
func (r *GormReservationRepository) FindByIdempotencyKey(ctx context.Context, requesterID uuid.UUID, key string) (*reservationDomain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND idempotency_key = ?", requesterID, key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", "idempotency key "+key)
		}
		return nil, fmt.Errorf("failed to find reservation by idempotency key: %w", err)
	}
	return toDomainReservation(&model)
}

// FindActiveBySlot retrieves the Pending or Confirmed reservation holding key.
func (r *GormReservationRepository) FindActiveBySlot(ctx context.Context, key reservationDomain.SlotKey) (*reservationDomain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).
		Where("venue_id = ? AND date = ? AND time_slot = ? AND status IN ?",
			key.VenueID, key.Date.Time(), string(key.TimeSlot), activeStatuses).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", "for slot "+key.String())
		}
		return nil, fmt.Errorf("failed to find active reservation by slot: %w", err)
	}
	return toDomainReservation(&model)
}

// FindByRequesterID retrieves a requester's reservations, newest first.
func (r *GormReservationRepository) FindByRequesterID(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.paginate(ctx, r.db.Where("requester_id = ?", requesterID), page, limit)
}

// FindByVenueID retrieves a venue's reservations, newest first.
func (r *GormReservationRepository) FindByVenueID(ctx context.Context, venueID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.paginate(ctx, r.db.Where("venue_id = ?", venueID), page, limit)
}

// ListAll retrieves all reservations with pagination (admin).
func (r *GormReservationRepository) ListAll(ctx context.Context, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.paginate(ctx, r.db, page, limit)
}

func (r *GormReservationRepository) paginate(ctx context.Context, scope *gorm.DB, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).WithContext(ctx).Model(&ReservationModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	var models []ReservationModel
	offset := (page - 1) * limit
	if err := scope.Session(&gorm.Session{}).WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}

	reservations, err := toDomainReservations(models)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// FindOccupancyInRange reads a venue's active reservations and blocks with
// from <= date <= to inside one read-only REPEATABLE READ transaction.
func (r *GormReservationRepository) FindOccupancyInRange(ctx context.Context, venueID uuid.UUID, from, to reservationDomain.Date) ([]*reservationDomain.Reservation, []*reservationDomain.Block, error) {
	var (
		reservationModels []ReservationModel
		blockModels       []BlockModel
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("venue_id = ? AND date BETWEEN ? AND ? AND status IN ?", venueID, from.Time(), to.Time(), activeStatuses).
			Find(&reservationModels).Error; err != nil {
			return fmt.Errorf("failed to find reservations in range: %w", err)
		}
		return findBlocksInRange(tx, venueID, from, to, &blockModels)
	}, snapshotRead)
	if err != nil {
		if database.IsTransient(err) {
			return nil, nil, fmt.Errorf("%w: %v", reservationDomain.ErrContention, err)
		}
		return nil, nil, err
	}

	reservations, err := toDomainReservations(reservationModels)
	if err != nil {
		return nil, nil, err
	}
	blocks, err := toDomainBlocks(blockModels)
	if err != nil {
		return nil, nil, err
	}
	return reservations, blocks, nil
}

// FindConfirmedBefore retrieves up to limit Confirmed reservations dated before date, oldest first.
func (r *GormReservationRepository) FindConfirmedBefore(ctx context.Context, date reservationDomain.Date, limit int) ([]*reservationDomain.Reservation, error) {
	var models []ReservationModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND date < ?", string(reservationDomain.StatusConfirmed), date.Time()).
		Order("date ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find due reservations: %w", err)
	}
	return toDomainReservations(models)
}

// CountByStatus returns reservation counts grouped by status (admin).
func (r *GormReservationRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Create checks the slot's block and inserts the reservation in one
// SERIALIZABLE transaction. The partial unique index decides concurrent races.
func (r *GormReservationRepository) Create(ctx context.Context, res *reservationDomain.Reservation, opts reservationDomain.CreateOptions) error {
	model := toReservationModel(res)
	key := res.SlotKey()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var block BlockModel
		err := slotScope(tx, key).Take(&block).Error
		switch {
		case err == nil:
			if opts.BlockPolicy != reservationDomain.BlockPolicyAdvisory {
				return domain.NewSlotBlockedError(key.String())
			}
			if err := slotScope(tx, key).Delete(&BlockModel{}).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(model).Error
	}, serializable)
	if err == nil {
		return nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case constraintActiveSlot:
			winner, findErr := r.FindActiveBySlot(ctx, key)
			if findErr != nil {
				if domain.IsNotFound(findErr) {
					// The holder left the slot between our insert and this read.
					return fmt.Errorf("slot %s released during insert: %w", key, reservationDomain.ErrContention)
				}
				return findErr
			}
			return domain.NewSlotConflictError(key.String(), winner.ID().String())
		case constraintIdempotencyKey:
			return reservationDomain.ErrIdempotencyKeyTaken
		case constraintReservationsPK:
			return reservationDomain.ErrAlreadyExists
		}
	}
	if database.IsTransient(err) {
		return fmt.Errorf("%w: %v", reservationDomain.ErrContention, err)
	}
	return fmt.Errorf("failed to create reservation: %w", err)
}

// Update persists a lifecycle change with optimistic locking.
func (r *GormReservationRepository) Update(ctx context.Context, res *reservationDomain.Reservation) error {
	model := toReservationModel(res)

	// IncrementVersion has already been called, so the stored row must be one behind.
	expectedVersion := res.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"note":              model.Note,
			"status_changed_at": model.StatusChangedAt,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		if database.IsTransient(result.Error) {
			return fmt.Errorf("%w: %v", reservationDomain.ErrContention, result.Error)
		}
		return fmt.Errorf("failed to update reservation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}
	return nil
}

func slotScope(tx *gorm.DB, key reservationDomain.SlotKey) *gorm.DB {
	return tx.Where("venue_id = ? AND date = ? AND time_slot = ?", key.VenueID, key.Date.Time(), string(key.TimeSlot))
}

// --- Conversion Helpers ---

func toReservationModel(res *reservationDomain.Reservation) *ReservationModel {
	var idemKey *string
	if k := res.IdempotencyKey(); k != "" {
		idemKey = &k
	}
	return &ReservationModel{
		ID:              res.ID(),
		VenueID:         res.VenueID(),
		RequesterID:     res.RequesterID(),
		Date:            res.Date().Time(),
		TimeSlot:        string(res.TimeSlot()),
		GuestCount:      res.GuestCount(),
		IdempotencyKey:  idemKey,
		TotalPriceCents: res.TotalPriceCents(),
		Currency:        res.Currency(),
		Status:          string(res.Status()),
		Note:            res.Note(),
		StatusChangedAt: res.StatusChangedAt(),
		Version:         res.Version(),
		CreatedAt:       res.CreatedAt(),
		UpdatedAt:       res.UpdatedAt(),
	}
}

func toDomainReservation(m *ReservationModel) (*reservationDomain.Reservation, error) {
	status, err := reservationDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	slot, err := reservationDomain.ParseTimeSlot(m.TimeSlot)
	if err != nil {
		return nil, err
	}
	var idemKey string
	if m.IdempotencyKey != nil {
		idemKey = *m.IdempotencyKey
	}

	return reservationDomain.ReconstructReservation(
		m.ID,
		m.VenueID,
		m.RequesterID,
		reservationDomain.DateOf(m.Date, time.UTC),
		slot,
		m.GuestCount,
		idemKey,
		m.TotalPriceCents,
		m.Currency,
		status,
		m.Note,
		m.StatusChangedAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainReservations(models []ReservationModel) ([]*reservationDomain.Reservation, error) {
	out := make([]*reservationDomain.Reservation, len(models))
	for i := range models {
		res, err := toDomainReservation(&models[i])
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}
