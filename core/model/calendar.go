package model

import "fmt"

// Calendar fixes the planning horizon as a dense grid of shift slots. Slots
// are numbered 0..Slots()-1 in chronological order; slot s falls on day
// s/ShiftsPerDay, shift s%ShiftsPerDay.
type Calendar struct {
	Days         int `json:"days"`
	ShiftsPerDay int `json:"shifts_per_day"`
}

// Slots returns the total number of shift slots in the horizon.
func (c Calendar) Slots() int { return c.Days * c.ShiftsPerDay }

// Day returns the zero-based day a slot falls on.
func (c Calendar) Day(slot int) int { return slot / c.ShiftsPerDay }

// Shift returns the zero-based shift within its day a slot falls on.
func (c Calendar) Shift(slot int) int { return slot % c.ShiftsPerDay }

// Week returns the zero-based week a slot falls on. Weeks group seven
// consecutive days and only matter for reporting.
func (c Calendar) Week(slot int) int { return c.Day(slot) / 7 }

func (c Calendar) Validate() error {
	if c.Days <= 0 {
		return fmt.Errorf("calendar: days must be positive, got %d", c.Days)
	}
	if c.ShiftsPerDay <= 0 {
		return fmt.Errorf("calendar: shifts_per_day must be positive, got %d", c.ShiftsPerDay)
	}
	return nil
}
