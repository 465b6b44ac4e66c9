// Package scheduler implements the Task Scheduler: pure decisions about
// a task's due/missed/retry/recurrence lifecycle. Every function is
// reentrant and produces new occurrences without mutating its inputs,
// grounded on the decision-function shape of the teacher's scheduling
// core, generalized here to consult the Calendar Planner instead of a
// cron expression.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/calendar"
	"github.com/adil-adysh/plan-flow/pkg/models"
)

// epsilon nudges a computed recurrence target backward so the calendar
// search still considers a slot landing exactly on the target time.
const epsilon = time.Second

// Decider is the pure Task Scheduler. It holds only a reference to the
// Calendar Planner it consults; it keeps no state of its own.
type Decider struct {
	Calendar *calendar.Planner
}

// New constructs a Decider over the given Calendar Planner.
func New(planner *calendar.Planner) *Decider {
	return &Decider{Calendar: planner}
}

// IsDue reports whether an occurrence's scheduled time has arrived.
func IsDue(occ models.TaskOccurrence, now time.Time) bool {
	return !occ.ScheduledFor.After(now)
}

// IsMissed reports whether an occurrence's time has passed without a
// "done" execution recorded against it.
func IsMissed(occ models.TaskOccurrence, now time.Time, executions []models.TaskExecution) bool {
	if !occ.ScheduledFor.Before(now) {
		return false
	}
	for _, e := range executions {
		if e.OccurrenceID == occ.ID && e.State == models.ExecutionDone {
			return false
		}
	}
	return true
}

// ShouldRetry reports whether an execution still has retry budget left.
func ShouldRetry(execution models.TaskExecution) bool {
	return execution.RetriesRemaining > 0
}

// SearchParams bundles the calendar inputs threaded through every slot
// search, to keep the decision function signatures readable.
type SearchParams struct {
	ScheduledOccurrences []models.TaskOccurrence
	WorkingHours         []models.WorkingHours
	SlotPool             []models.TimeSlot
	MaxPerDay            int
}

// GetNextOccurrence computes the next occurrence for a task, preferring
// a valid pinned time, falling back to the task's recurrence, or
// returning nil if the task is one-shot or no slot exists in the search
// window.
func (d *Decider) GetNextOccurrence(task models.TaskDefinition, fromTime time.Time, params SearchParams) *models.TaskOccurrence {
	if task.PinnedTime != nil && d.Calendar.IsPinnedTimeValid(*task.PinnedTime, params.ScheduledOccurrences, params.WorkingHours, params.MaxPerDay) {
		pinned := *task.PinnedTime
		return &models.TaskOccurrence{
			ID:           uuid.New(),
			TaskID:       task.ID,
			ScheduledFor: pinned,
			PinnedTime:   &pinned,
		}
	}

	if task.Recurrence == nil {
		return nil
	}

	target := fromTime.Add(*task.Recurrence)
	searchAfter := target.Add(-epsilon)
	if searchAfter.Before(fromTime) {
		searchAfter = fromTime
	}

	when := d.Calendar.NextAvailableSlot(searchAfter, params.SlotPool, params.ScheduledOccurrences, params.WorkingHours, params.MaxPerDay, task.Priority.Rank())
	if when == nil {
		return nil
	}
	return &models.TaskOccurrence{
		ID:           uuid.New(),
		TaskID:       task.ID,
		ScheduledFor: *when,
		SlotName:     slotNameAt(*when, params.SlotPool),
	}
}

// RescheduleRetry produces a fresh occurrence for the same task at the
// next available slot strictly after now, or nil if the policy forbids
// retries or no slot exists. It never mutates the input occurrence; the
// caller tracks remaining retries in the execution record.
func (d *Decider) RescheduleRetry(occurrence models.TaskOccurrence, policy models.RetryPolicy, now time.Time, params SearchParams) *models.TaskOccurrence {
	if policy.MaxRetries <= 0 {
		return nil
	}
	when := d.Calendar.NextAvailableSlot(now, params.SlotPool, params.ScheduledOccurrences, params.WorkingHours, params.MaxPerDay, 0)
	if when == nil {
		return nil
	}
	return &models.TaskOccurrence{
		ID:           uuid.New(),
		TaskID:       occurrence.TaskID,
		ScheduledFor: *when,
		SlotName:     slotNameAt(*when, params.SlotPool),
	}
}

func slotNameAt(when time.Time, slotPool []models.TimeSlot) string {
	tod := models.TimeOfDay{Hour: when.Hour(), Minute: when.Minute()}
	for _, slot := range slotPool {
		if slot.Start.Minutes() == tod.Minutes() {
			return slot.Name
		}
	}
	return ""
}
