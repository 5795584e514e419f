package venue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVenue(t *testing.T) {
	ownerID := uuid.New()
	v, err := NewVenue(uuid.New(), ownerID, "Grand Hall", 200, 50000, "INR", true, 3, time.Now())
	require.NoError(t, err)

	assert.True(t, v.IsOwnedBy(ownerID))
	assert.True(t, v.Fits(200))
	assert.False(t, v.Fits(201))
	assert.False(t, v.Fits(0))

	_, err = NewVenue(uuid.New(), ownerID, "Tiny", 0, 100, "INR", true, 1, time.Now())
	assert.Error(t, err)
	_, err = NewVenue(uuid.New(), uuid.Nil, "Nobody's", 10, 100, "INR", true, 1, time.Now())
	assert.Error(t, err)
	_, err = NewVenue(uuid.New(), ownerID, "Unversioned", 10, 100, "INR", true, 0, time.Now())
	assert.Error(t, err)
}
