package reservation

import (
	"fmt"

	"github.com/banquethub/service-reservation/pkg/domain"
)

// MaxRangeDays is the widest calendar window GetAvailability serves.
const MaxRangeDays = 92

// SlotState is the projected availability of one slot.
type SlotState string

const (
	SlotFree    SlotState = "free"
	SlotBooked  SlotState = "booked"
	SlotBlocked SlotState = "blocked"
)

// Calendar maps each date of a range to the state of every slot on that date.
type Calendar map[Date]map[TimeSlot]SlotState

// ValidateRange checks from <= to and the range length (inclusive) against MaxRangeDays.
func ValidateRange(from, to Date) error {
	if from.IsZero() || to.IsZero() {
		return domain.NewValidationError("from and to dates are required")
	}
	if from.After(to) {
		return domain.NewValidationError(fmt.Sprintf("from %s is after to %s", from, to))
	}
	if days := from.DaysUntil(to) + 1; days > MaxRangeDays {
		return domain.NewValidationError(fmt.Sprintf("range of %d days exceeds the %d day maximum", days, MaxRangeDays))
	}
	return nil
}

// Project builds the calendar for [from, to]. A slot is Booked when a
// reservation there is active as of today, otherwise Blocked when a block
// exists, otherwise Free. Entries outside the range are ignored.
func Project(from, to Date, reservations []*Reservation, blocks []*Block, today Date) Calendar {
	cal := make(Calendar, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		day := make(map[TimeSlot]SlotState, len(AllTimeSlots))
		for _, slot := range AllTimeSlots {
			day[slot] = SlotFree
		}
		cal[d] = day
	}

	for _, b := range blocks {
		if day, ok := cal[b.Date()]; ok && day[b.TimeSlot()] == SlotFree {
			day[b.TimeSlot()] = SlotBlocked
		}
	}
	for _, r := range reservations {
		if !r.EffectiveStatus(today).IsActive() {
			continue
		}
		if day, ok := cal[r.Date()]; ok {
			day[r.TimeSlot()] = SlotBooked
		}
	}
	return cal
}
