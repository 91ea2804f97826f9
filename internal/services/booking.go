package services

import (
	"fmt"
	"time"
)

// slotInterval is the booking grid cadence.
const slotInterval = 30 * time.Minute

// slotHorizonSteps bounds the forward scan (~36 hours of half-hour steps).
const slotHorizonSteps = 72

// BookingPolicy computes bookable half-hour slots inside the business-hours
// window of one fixed civil time zone. It carries no mutable state, so the
// same inputs always produce the same slots.
type BookingPolicy struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

// NewBookingPolicy resolves the business time zone once. openHour and
// closeHour are local civil hours; a slot qualifies when its local hour is
// in [openHour, closeHour).
func NewBookingPolicy(timezone string, openHour, closeHour int) (*BookingPolicy, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load booking timezone %q: %w", timezone, err)
	}
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		return nil, fmt.Errorf("invalid booking window [%d, %d)", openHour, closeHour)
	}
	return &BookingPolicy{loc: loc, openHour: openHour, closeHour: closeHour}, nil
}

// NextSlots returns up to n slots on the half-hour grid, strictly after now,
// each inside the booking window, scanning at most ~36 hours ahead. Fewer
// than n slots is not an error; it means the horizon ran out.
func (p *BookingPolicy) NextSlots(now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}

	local := now.In(p.loc)
	// Floor to the grid so every candidate lands on :00 or :30.
	cursor := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), (local.Minute()/30)*30, 0, 0, p.loc)

	slots := make([]time.Time, 0, n)
	for i := 0; i < slotHorizonSteps && len(slots) < n; i++ {
		cursor = cursor.Add(slotInterval)
		if p.InsideWindow(cursor) {
			slots = append(slots, cursor)
		}
	}
	return slots
}

// InsideWindow reports whether t falls inside the local booking window.
func (p *BookingPolicy) InsideWindow(t time.Time) bool {
	h := t.In(p.loc).Hour()
	return h >= p.openHour && h < p.closeHour
}
