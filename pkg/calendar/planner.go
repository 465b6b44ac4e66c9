// Package calendar implements the Calendar Planner: a pure availability
// oracle over slots, working hours and per-day caps. No I/O, no clock
// access — every function takes its "now" and its candidate set as
// arguments, grounded on the free-block search in the daylit and orbita
// reference schedulers.
package calendar

import (
	"sort"
	"time"

	"github.com/adil-adysh/plan-flow/pkg/models"
)

// searchWindowDays bounds next_available_slot to a total algorithm: past
// this many days out, the system admits "no slot" rather than looping.
const searchWindowDays = 14

// Planner answers slot/pinned-time availability questions against a
// fixed working-hours configuration. It holds no mutable state.
type Planner struct{}

// New constructs a Planner. The type carries no state today, but is kept
// as a value rather than free functions so future configuration (e.g. a
// locale-specific week start) has somewhere to live without changing
// every call site.
func New() *Planner {
	return &Planner{}
}

func workingHoursFor(day models.Weekday, hours []models.WorkingHours) (models.WorkingHours, bool) {
	for _, wh := range hours {
		if wh.Day == day {
			return wh, true
		}
	}
	return models.WorkingHours{}, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func countOnDate(date time.Time, occurrences []models.TaskOccurrence) int {
	n := 0
	for _, occ := range occurrences {
		if sameDate(occ.ScheduledFor, date) {
			n++
		}
	}
	return n
}

func collides(proposed time.Time, occurrences []models.TaskOccurrence) bool {
	for _, occ := range occurrences {
		if occ.ScheduledFor.Equal(proposed) {
			return true
		}
	}
	return false
}

func toTimeOfDay(t time.Time) models.TimeOfDay {
	return models.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// IsSlotAvailable reports whether proposedTime may host a new occurrence
// given the already-scheduled occurrences, the working-hours calendar,
// the per-day cap, and an optional slot pool constraint.
func (p *Planner) IsSlotAvailable(
	proposedTime time.Time,
	scheduledOccurrences []models.TaskOccurrence,
	workingHours []models.WorkingHours,
	maxPerDay int,
	slotPool []models.TimeSlot,
) bool {
	wh, ok := workingHoursFor(models.WeekdayFromTime(proposedTime), workingHours)
	if !ok {
		return false
	}
	tod := toTimeOfDay(proposedTime)
	if !wh.Contains(tod) {
		return false
	}
	if maxPerDay <= 0 {
		return false
	}
	if countOnDate(proposedTime, scheduledOccurrences) >= maxPerDay {
		return false
	}
	if collides(proposedTime, scheduledOccurrences) {
		return false
	}
	if slotPool != nil {
		if !anySlotContains(tod, slotPool, wh) {
			return false
		}
	}
	return true
}

func anySlotContains(tod models.TimeOfDay, slotPool []models.TimeSlot, wh models.WorkingHours) bool {
	for _, slot := range slotPool {
		if !wh.AllowsSlot(slot.Name) {
			continue
		}
		if slot.Contains(tod) {
			return true
		}
	}
	return false
}

// IsPinnedTimeValid is IsSlotAvailable without the slot-pool constraint:
// pinned times bypass slot preferences but still must fall inside
// working hours, respect the per-day cap, and not collide.
func (p *Planner) IsPinnedTimeValid(
	pinnedTime time.Time,
	scheduledOccurrences []models.TaskOccurrence,
	workingHours []models.WorkingHours,
	maxPerDay int,
) bool {
	return p.IsSlotAvailable(pinnedTime, scheduledOccurrences, workingHours, maxPerDay, nil)
}

type candidate struct {
	when time.Time
	slot models.TimeSlot
}

// NextAvailableSlot searches forward up to 14 days from after.Date() for
// the first candidate slot-start datetime, strictly after `after`, that
// satisfies IsSlotAvailable. priority only affects tie-breaking ordering
// hints among candidates sharing a start time across different callers;
// within a single call it has no effect on the result since candidates
// are already unique by time.
func (p *Planner) NextAvailableSlot(
	after time.Time,
	slotPool []models.TimeSlot,
	scheduledOccurrences []models.TaskOccurrence,
	workingHours []models.WorkingHours,
	maxPerDay int,
	priority int,
) *time.Time {
	_ = priority // stable ordering hint only; candidates are already time-ordered per day
	startDate := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())

	for dayOffset := 0; dayOffset < searchWindowDays; dayOffset++ {
		date := startDate.AddDate(0, 0, dayOffset)
		wh, ok := workingHoursFor(models.WeekdayFromTime(date), workingHours)
		if !ok {
			continue
		}

		var candidates []candidate
		for _, slot := range slotPool {
			if !wh.AllowsSlot(slot.Name) {
				continue
			}
			candidates = append(candidates, candidate{when: slot.Start.OnDate(date), slot: slot})
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].when.Before(candidates[j].when)
		})

		for _, c := range candidates {
			if !c.when.After(after) {
				continue
			}
			if p.IsSlotAvailable(c.when, scheduledOccurrences, workingHours, maxPerDay, slotPool) {
				found := c.when
				return &found
			}
		}
	}
	return nil
}
