package venue

import (
	"context"

	"github.com/google/uuid"
)

// VenueRepository defines the persistence contract for the venue projection.
type VenueRepository interface {
	// FindByID retrieves a venue, active or not.
	FindByID(ctx context.Context, id uuid.UUID) (*Venue, error)

	// Upsert stores v unless a snapshot with an equal or newer version is
	// already present. It reports whether the write was applied.
	Upsert(ctx context.Context, v *Venue) (bool, error)

	// Deactivate marks the venue inactive if version is newer than the stored one.
	Deactivate(ctx context.Context, id uuid.UUID, version int64) (bool, error)
}
