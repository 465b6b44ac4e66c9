package recovery_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/calendar"
	"github.com/adil-adysh/plan-flow/pkg/models"
	. "github.com/adil-adysh/plan-flow/pkg/recovery"
	"github.com/adil-adysh/plan-flow/pkg/scheduler"
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

func params() scheduler.SearchParams {
	return scheduler.SearchParams{WorkingHours: weekdayHours(), SlotPool: slotPool(), MaxPerDay: 5}
}

func newService() *Service {
	return New(scheduler.New(calendar.New()))
}

func TestRecoverMissedOccurrences_SkipsPinnedOccurrences(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	task := models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 1}}
	pinned := monday.Add(9 * time.Hour)
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: pinned, PinnedTime: &pinned}

	out := s.RecoverMissedOccurrences(
		nil,
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{taskID.String(): task},
		monday.Add(10*time.Hour),
		params(),
	)
	if len(out) != 0 {
		t.Errorf("expected pinned occurrences never to be auto-recovered, got %d", len(out))
	}
}

func TestRecoverMissedOccurrences_SkipsOccurrencesNotYetDue(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	task := models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 1}}
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(13 * time.Hour)}

	out := s.RecoverMissedOccurrences(
		nil,
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{taskID.String(): task},
		monday.Add(9*time.Hour),
		params(),
	)
	if len(out) != 0 {
		t.Errorf("expected a not-yet-due occurrence to be skipped, got %d", len(out))
	}
}

func TestRecoverMissedOccurrences_SkipsOccurrencesAlreadyDone(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	task := models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 1}}
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(9 * time.Hour)}
	exec := models.TaskExecution{ID: uuid.New(), OccurrenceID: occ.ID, State: models.ExecutionDone}

	out := s.RecoverMissedOccurrences(
		[]models.TaskExecution{exec},
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{taskID.String(): task},
		monday.Add(10*time.Hour),
		params(),
	)
	if len(out) != 0 {
		t.Errorf("expected a completed occurrence to be skipped, got %d", len(out))
	}
}

func TestRecoverMissedOccurrences_ProducesAtMostOneCatchUpViaRetry(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	task := models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 2}}
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(9 * time.Hour)}

	out := s.RecoverMissedOccurrences(
		nil,
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{taskID.String(): task},
		monday.Add(10*time.Hour),
		params(),
	)
	if len(out) != 1 {
		t.Fatalf("expected exactly one catch-up occurrence, got %d", len(out))
	}
	if out[0].TaskID != taskID {
		t.Errorf("expected catch-up occurrence to reference task %v, got %v", taskID, out[0].TaskID)
	}
}

func TestRecoverMissedOccurrences_FallsBackToRecurrenceWhenRetriesExhausted(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	daily := 24 * time.Hour
	task := models.TaskDefinition{ID: taskID, Recurrence: &daily, RetryPolicy: models.RetryPolicy{MaxRetries: 0}}
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(9 * time.Hour)}
	exec := models.TaskExecution{ID: uuid.New(), OccurrenceID: occ.ID, State: models.ExecutionMissed, RetriesRemaining: 0, CreatedAt: monday.Add(9 * time.Hour)}

	out := s.RecoverMissedOccurrences(
		[]models.TaskExecution{exec},
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{taskID.String(): task},
		monday.Add(10*time.Hour),
		params(),
	)
	if len(out) != 1 {
		t.Fatalf("expected exactly one catch-up occurrence via recurrence, got %d", len(out))
	}
}

func TestRecoverMissedOccurrences_SkipsWhenTaskIsUnknown(t *testing.T) {
	s := newService()
	taskID := uuid.New()
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(9 * time.Hour)}

	out := s.RecoverMissedOccurrences(
		nil,
		map[string]models.TaskOccurrence{occ.ID.String(): occ},
		map[string]models.TaskDefinition{},
		monday.Add(10*time.Hour),
		params(),
	)
	if len(out) != 0 {
		t.Errorf("expected a dangling task reference to be skipped, got %d", len(out))
	}
}
