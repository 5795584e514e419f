package reservation

import (
	"fmt"
	"strings"
	"time"
)

// TimeSlot is one of the fixed bookable windows of a day.
type TimeSlot string

const (
	SlotMorning TimeSlot = "morning"
	SlotEvening TimeSlot = "evening"
	SlotNight   TimeSlot = "night"
)

// AllTimeSlots lists the slots in the order they occur during a day.
var AllTimeSlots = []TimeSlot{SlotMorning, SlotEvening, SlotNight}

// slotWindows holds each slot's local start and end as offsets from midnight.
// Night runs past midnight into the following day.
var slotWindows = map[TimeSlot][2]time.Duration{
	SlotMorning: {9 * time.Hour, 14 * time.Hour},
	SlotEvening: {15 * time.Hour, 20 * time.Hour},
	SlotNight:   {21 * time.Hour, 26 * time.Hour},
}

// IsValid returns true if the slot is one of the enumerated values.
func (t TimeSlot) IsValid() bool {
	_, ok := slotWindows[t]
	return ok
}

// String returns the wire representation of the slot.
func (t TimeSlot) String() string {
	return string(t)
}

// Window returns the slot's start and end instants on date in loc.
func (t TimeSlot) Window(date Date, loc *time.Location) (start, end time.Time) {
	w := slotWindows[t]
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(w[0]), midnight.Add(w[1])
}

// Label returns the human-readable window, e.g. "9AM-2PM".
func (t TimeSlot) Label() string {
	w, ok := slotWindows[t]
	if !ok {
		return ""
	}
	return clock(w[0]) + "-" + clock(w[1])
}

func clock(d time.Duration) string {
	h := int(d/time.Hour) % 24
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	if h%12 == 0 {
		return fmt.Sprintf("12%s", suffix)
	}
	return fmt.Sprintf("%d%s", h%12, suffix)
}

// ParseTimeSlot converts a string to a TimeSlot, ignoring case and surrounding space.
func ParseTimeSlot(s string) (TimeSlot, error) {
	slot := TimeSlot(strings.ToLower(strings.TrimSpace(s)))
	if !slot.IsValid() {
		return "", fmt.Errorf("invalid time slot: %q", s)
	}
	return slot, nil
}
