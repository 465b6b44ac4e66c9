package models

import "time"

// Weekday names the seven calendar days the Calendar Planner reasons
// about; kept as a distinct string type (rather than reusing
// time.Weekday) so working-hours configuration round-trips cleanly
// through JSON.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// WeekdayFromTime maps a time.Time's weekday to our Weekday tag.
func WeekdayFromTime(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// TimeOfDay is a time-of-day value with minute precision, independent of
// any calendar date, used for TimeSlot and WorkingHours boundaries.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes-since-midnight for ordering/containment checks.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// OnDate anchors this time-of-day onto a specific calendar date.
func (t TimeOfDay) OnDate(date time.Time) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, t.Hour, t.Minute, 0, 0, date.Location())
}

// TimeSlot is a named recurring daily window, e.g. "morning" 09:00-12:00.
type TimeSlot struct {
	Name  string    `json:"name"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Contains reports whether the given time-of-day falls within [Start, End).
func (s TimeSlot) Contains(tod TimeOfDay) bool {
	return tod.Minutes() >= s.Start.Minutes() && tod.Minutes() < s.End.Minutes()
}

// WorkingHours is the per-weekday envelope within which scheduling is
// permitted, plus which named slots are allowed that day.
type WorkingHours struct {
	Day          Weekday   `json:"day"`
	Start        TimeOfDay `json:"start"`
	End          TimeOfDay `json:"end"`
	AllowedSlots []string  `json:"allowed_slots"`
}

// Contains reports whether the given time-of-day falls within the
// working window. A zero-length window (Start == End) never contains
// anything.
func (w WorkingHours) Contains(tod TimeOfDay) bool {
	return tod.Minutes() >= w.Start.Minutes() && tod.Minutes() < w.End.Minutes()
}

// AllowsSlot reports whether the named slot is permitted on this day.
func (w WorkingHours) AllowsSlot(slotName string) bool {
	for _, name := range w.AllowedSlots {
		if name == slotName {
			return true
		}
	}
	return false
}
