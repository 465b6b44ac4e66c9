package scheduler_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/calendar"
	"github.com/adil-adysh/plan-flow/pkg/models"
	. "github.com/adil-adysh/plan-flow/pkg/scheduler"
)

var monday = time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

func weekdayHours() []models.WorkingHours {
	var out []models.WorkingHours
	for _, day := range []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday} {
		out = append(out, models.WorkingHours{
			Day:          day,
			Start:        models.TimeOfDay{Hour: 9, Minute: 0},
			End:          models.TimeOfDay{Hour: 17, Minute: 0},
			AllowedSlots: []string{"morning", "afternoon"},
		})
	}
	return out
}

func slotPool() []models.TimeSlot {
	return []models.TimeSlot{
		{Name: "morning", Start: models.TimeOfDay{Hour: 9, Minute: 0}, End: models.TimeOfDay{Hour: 12, Minute: 0}},
		{Name: "afternoon", Start: models.TimeOfDay{Hour: 13, Minute: 0}, End: models.TimeOfDay{Hour: 17, Minute: 0}},
	}
}

func params() SearchParams {
	return SearchParams{WorkingHours: weekdayHours(), SlotPool: slotPool(), MaxPerDay: 5}
}

func TestIsDue(t *testing.T) {
	occ := models.TaskOccurrence{ScheduledFor: monday.Add(9 * time.Hour)}
	if !IsDue(occ, monday.Add(9*time.Hour)) {
		t.Error("expected occurrence scheduled exactly now to be due")
	}
	if !IsDue(occ, monday.Add(10*time.Hour)) {
		t.Error("expected occurrence scheduled in the past to be due")
	}
	if IsDue(occ, monday.Add(8*time.Hour)) {
		t.Error("expected occurrence scheduled in the future not to be due")
	}
}

func TestIsMissed_TrueWhenPastDueWithNoExecution(t *testing.T) {
	occ := models.TaskOccurrence{ID: uuid.New(), ScheduledFor: monday.Add(9 * time.Hour)}
	if !IsMissed(occ, monday.Add(10*time.Hour), nil) {
		t.Error("expected a past-due occurrence with no execution to be missed")
	}
}

func TestIsMissed_FalseWhenDoneExecutionExists(t *testing.T) {
	occ := models.TaskOccurrence{ID: uuid.New(), ScheduledFor: monday.Add(9 * time.Hour)}
	execs := []models.TaskExecution{{OccurrenceID: occ.ID, State: models.ExecutionDone}}
	if IsMissed(occ, monday.Add(10*time.Hour), execs) {
		t.Error("expected a completed occurrence not to be missed")
	}
}

func TestIsMissed_FalseWhenNotYetDue(t *testing.T) {
	occ := models.TaskOccurrence{ID: uuid.New(), ScheduledFor: monday.Add(9 * time.Hour)}
	if IsMissed(occ, monday.Add(8*time.Hour), nil) {
		t.Error("expected a future occurrence not to be missed")
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(models.TaskExecution{RetriesRemaining: 1}) {
		t.Error("expected a positive retry budget to permit retry")
	}
	if ShouldRetry(models.TaskExecution{RetriesRemaining: 0}) {
		t.Error("expected an exhausted retry budget to forbid retry")
	}
}

func TestGetNextOccurrence_PrefersValidPinnedTime(t *testing.T) {
	d := New(calendar.New())
	pinned := monday.Add(10 * time.Hour)
	task := models.TaskDefinition{ID: uuid.New(), PinnedTime: &pinned}

	next := d.GetNextOccurrence(task, monday, params())
	if next == nil {
		t.Fatal("expected a pinned occurrence")
	}
	if !next.ScheduledFor.Equal(pinned) {
		t.Errorf("expected scheduled time %v, got %v", pinned, next.ScheduledFor)
	}
	if next.PinnedTime == nil || !next.PinnedTime.Equal(pinned) {
		t.Error("expected PinnedTime to mirror ScheduledFor")
	}
}

func TestGetNextOccurrence_FallsBackToRecurrenceWhenPinnedTimeInvalid(t *testing.T) {
	d := New(calendar.New())
	pinned := monday.Add(20 * time.Hour) // outside working hours
	daily := 24 * time.Hour
	task := models.TaskDefinition{ID: uuid.New(), PinnedTime: &pinned, Recurrence: &daily}

	next := d.GetNextOccurrence(task, monday.Add(8*time.Hour), params())
	if next == nil {
		t.Fatal("expected a recurrence-based occurrence")
	}
	if next.PinnedTime != nil {
		t.Error("expected the fallback occurrence not to carry the invalid pinned time")
	}
}

func TestGetNextOccurrence_NilForOneShotTask(t *testing.T) {
	d := New(calendar.New())
	task := models.TaskDefinition{ID: uuid.New()}
	if next := d.GetNextOccurrence(task, monday, params()); next != nil {
		t.Error("expected a one-shot task with no pinned time to produce no next occurrence")
	}
}

func TestGetNextOccurrence_SearchesForwardFromRecurrenceTarget(t *testing.T) {
	d := New(calendar.New())
	hourly := time.Hour
	task := models.TaskDefinition{ID: uuid.New(), Recurrence: &hourly}

	from := monday.Add(9*time.Hour + 30*time.Minute)
	next := d.GetNextOccurrence(task, from, params())
	if next == nil {
		t.Fatal("expected a recurrence-based occurrence")
	}
	if next.ScheduledFor.Before(from) {
		t.Errorf("expected the next occurrence to be after %v, got %v", from, next.ScheduledFor)
	}
}

func TestRescheduleRetry_NilWhenPolicyForbidsRetries(t *testing.T) {
	d := New(calendar.New())
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: uuid.New()}
	if retry := d.RescheduleRetry(occ, models.RetryPolicy{MaxRetries: 0}, monday, params()); retry != nil {
		t.Error("expected no retry occurrence when MaxRetries is 0")
	}
}

func TestRescheduleRetry_ProducesOccurrenceForSameTask(t *testing.T) {
	d := New(calendar.New())
	taskID := uuid.New()
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(9 * time.Hour)}

	retry := d.RescheduleRetry(occ, models.RetryPolicy{MaxRetries: 1}, monday.Add(9*time.Hour), params())
	if retry == nil {
		t.Fatal("expected a retry occurrence")
	}
	if retry.TaskID != taskID {
		t.Errorf("expected retry to reference task %v, got %v", taskID, retry.TaskID)
	}
	if retry.ID == occ.ID {
		t.Error("expected the retry occurrence to have a fresh id")
	}
}
