package reservation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reservationAt(t *testing.T, venueID uuid.UUID, date Date, slot TimeSlot, status Status) *Reservation {
	t.Helper()
	return ReconstructReservation(uuid.New(), venueID, uuid.New(), date, slot, 10, "", 0, "INR",
		status, "", testNow, 1, testNow, testNow)
}

func TestProject_Priority(t *testing.T) {
	venueID := uuid.New()
	from := NewDate(2026, time.February, 14)
	to := NewDate(2026, time.February, 16)
	d15 := NewDate(2026, time.February, 15)

	reservations := []*Reservation{
		reservationAt(t, venueID, d15, SlotEvening, StatusPending),
		reservationAt(t, venueID, d15, SlotMorning, StatusCancelled),
		reservationAt(t, venueID, to, SlotNight, StatusConfirmed),
		reservationAt(t, venueID, to.AddDays(1), SlotNight, StatusConfirmed),
	}
	blocks := []*Block{
		ReconstructBlock(SlotKey{venueID, d15, SlotMorning}, uuid.New(), "", testNow),
		ReconstructBlock(SlotKey{venueID, from, SlotEvening}, uuid.New(), "maintenance", testNow),
		ReconstructBlock(SlotKey{venueID, d15, SlotEvening}, uuid.New(), "", testNow),
	}

	cal := Project(from, to, reservations, blocks, testToday)

	require.Len(t, cal, 3)
	assert.Equal(t, SlotBlocked, cal[from][SlotEvening])
	assert.Equal(t, SlotFree, cal[from][SlotMorning])
	assert.Equal(t, SlotBlocked, cal[d15][SlotMorning], "cancelled reservation does not occupy the slot")
	assert.Equal(t, SlotBooked, cal[d15][SlotEvening], "booked overrides blocked")
	assert.Equal(t, SlotBooked, cal[to][SlotNight])
	assert.Equal(t, SlotFree, cal[to][SlotMorning])
}

func TestProject_PastConfirmedReadsAsCompleted(t *testing.T) {
	venueID := uuid.New()
	past := testToday.AddDays(-2)
	cal := Project(past, past, []*Reservation{reservationAt(t, venueID, past, SlotMorning, StatusConfirmed)}, nil, testToday)
	assert.Equal(t, SlotFree, cal[past][SlotMorning])
}

func TestCalendar_JSON(t *testing.T) {
	d := NewDate(2026, time.February, 15)
	raw, err := json.Marshal(Project(d, d, nil, nil, testToday))
	require.NoError(t, err)
	assert.JSONEq(t, `{"2026-02-15":{"morning":"free","evening":"free","night":"free"}}`, string(raw))
}

func TestValidateRange(t *testing.T) {
	from := NewDate(2026, time.January, 1)

	assert.NoError(t, ValidateRange(from, from))
	assert.NoError(t, ValidateRange(from, from.AddDays(MaxRangeDays-1)))

	for name, to := range map[string]Date{
		"too wide":  from.AddDays(MaxRangeDays),
		"reversed":  from.AddDays(-1),
		"zero date": {},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, domain.HasCode(ValidateRange(from, to), domain.CodeValidation))
		})
	}
}
