package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/models"
	. "github.com/adil-adysh/plan-flow/pkg/orchestrator"
	"github.com/adil-adysh/plan-flow/pkg/storage/memory"
)

func weekdayHours() []models.WorkingHours {
	var out []models.WorkingHours
	for _, day := range []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday} {
		out = append(out, models.WorkingHours{
			Day:          day,
			Start:        models.TimeOfDay{Hour: 0, Minute: 0},
			End:          models.TimeOfDay{Hour: 23, Minute: 59},
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

func testConfig() Config {
	return Config{WorkingHours: weekdayHours(), SlotPool: slotPool(), MaxPerDay: 10}
}

// fakeClock lets tests pin "now" without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

type spyNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *spyNotifier) NotifyTriggered(ctx context.Context, occ models.TaskOccurrence, exec models.TaskExecution) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type spyArchiver struct {
	mu    sync.Mutex
	calls int
}

func (a *spyArchiver) Archive(ctx context.Context, exec models.TaskExecution) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return exec.ID.String(), nil
}

func (a *spyArchiver) Retrieve(ctx context.Context, reference string) (models.TaskExecution, error) {
	return models.TaskExecution{}, nil
}

var monday = time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

func TestMarkDone_WritesExecutionAndFiresSideEffects(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	notifier := &spyNotifier{}
	archiver := &spyArchiver{}

	sched := New(store, testConfig(), clock.now, notifier, archiver)

	taskID := uuid.New()
	task := &models.TaskDefinition{ID: taskID, Title: "water plants", RetryPolicy: models.RetryPolicy{MaxRetries: 0}}
	if err := store.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	occ := &models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	if err := store.AddOccurrence(ctx, occ); err != nil {
		t.Fatalf("AddOccurrence: %v", err)
	}

	if err := sched.MarkDone(ctx, occ.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected exactly one execution, got %d", len(execs))
	}
	if execs[0].State != models.ExecutionDone {
		t.Errorf("expected state done, got %v", execs[0].State)
	}
	if notifier.count() != 1 {
		t.Errorf("expected notifier to be called once, got %d", notifier.count())
	}
	if archiver.calls != 1 {
		t.Errorf("expected archiver to be called once, got %d", archiver.calls)
	}
}

func TestMarkDone_UnknownOccurrenceReturnsError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	if err := sched.MarkDone(ctx, uuid.New()); err == nil {
		t.Error("expected an error for an unknown occurrence id")
	}
}

func TestMarkDone_IsIdempotentOnAlreadyDoneOccurrence(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	notifier := &spyNotifier{}
	sched := New(store, testConfig(), clock.now, notifier, nil)

	taskID := uuid.New()
	daily := 24 * time.Hour
	task := &models.TaskDefinition{ID: taskID, Recurrence: &daily, RetryPolicy: models.RetryPolicy{MaxRetries: 2}}
	store.AddTask(ctx, task)
	occ := &models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	store.AddOccurrence(ctx, occ)

	if err := sched.MarkDone(ctx, occ.ID); err != nil {
		t.Fatalf("first MarkDone: %v", err)
	}
	if err := sched.MarkDone(ctx, occ.ID); err != nil {
		t.Fatalf("second MarkDone: %v", err)
	}

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected exactly one execution despite two MarkDone calls, got %d", len(execs))
	}

	occs, err := store.ListOccurrences(ctx)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected the original occurrence plus exactly one follow-up (retry) occurrence, got %d", len(occs))
	}

	if notifier.count() != 1 {
		t.Errorf("expected the second, no-op MarkDone not to re-fire notifications, got %d calls", notifier.count())
	}
}

func TestMarkDone_IsIdempotentOnCancelledOccurrence(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(time.Hour)}
	store.AddOccurrence(ctx, &occ)

	if err := sched.CancelOccurrence(ctx, occ.ID); err != nil {
		t.Fatalf("CancelOccurrence: %v", err)
	}
	if err := sched.MarkDone(ctx, occ.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 || execs[0].State != models.ExecutionCancelled {
		t.Fatalf("expected MarkDone to leave the cancelled execution alone, got %v", execs)
	}
}

func TestMarkDone_RecurringTaskSchedulesNextOccurrence(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	daily := 24 * time.Hour
	task := &models.TaskDefinition{ID: taskID, Recurrence: &daily}
	store.AddTask(ctx, task)
	occ := &models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	store.AddOccurrence(ctx, occ)

	if err := sched.MarkDone(ctx, occ.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	occs, err := store.ListOccurrences(ctx)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected the original occurrence plus one recurrence, got %d", len(occs))
	}
}

func TestRetryOccurrence_NilWhenPolicyForbidsRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	task := &models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 0}}
	store.AddTask(ctx, task)
	occ := &models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	store.AddOccurrence(ctx, occ)

	retry, err := sched.RetryOccurrence(ctx, occ.ID)
	if err != nil {
		t.Fatalf("RetryOccurrence: %v", err)
	}
	if retry != nil {
		t.Errorf("expected no retry occurrence, got %v", retry)
	}
}

func TestRetryOccurrence_ProducesNewOccurrenceWhenBudgetRemains(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	task := &models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 2}}
	store.AddTask(ctx, task)
	occ := &models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	store.AddOccurrence(ctx, occ)

	retry, err := sched.RetryOccurrence(ctx, occ.ID)
	if err != nil {
		t.Fatalf("RetryOccurrence: %v", err)
	}
	if retry == nil {
		t.Fatal("expected a retry occurrence")
	}
	if retry.TaskID != taskID {
		t.Errorf("expected retry to reference the same task, got %v", retry.TaskID)
	}
}

func TestPause_CancelsArmedTimers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(time.Hour)}
	store.AddOccurrence(ctx, &occ)

	sched.ScheduleOccurrence(ctx, occ)
	if len(sched.GetScheduledOccurrences()) != 1 {
		t.Fatalf("expected one armed timer before pause")
	}

	sched.Pause()
	if len(sched.GetScheduledOccurrences()) != 0 {
		t.Errorf("expected pause to cancel all timers")
	}
}

func TestCancelOccurrence_StopsTimerWithoutRetryOrRecurrence(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	daily := 24 * time.Hour
	task := &models.TaskDefinition{ID: taskID, Recurrence: &daily, RetryPolicy: models.RetryPolicy{MaxRetries: 2}}
	store.AddTask(ctx, task)
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(time.Hour)}
	store.AddOccurrence(ctx, &occ)

	sched.ScheduleOccurrence(ctx, occ)
	if len(sched.GetScheduledOccurrences()) != 1 {
		t.Fatalf("expected the occurrence's timer to be armed")
	}

	if err := sched.CancelOccurrence(ctx, occ.ID); err != nil {
		t.Fatalf("CancelOccurrence: %v", err)
	}

	if len(sched.GetScheduledOccurrences()) != 0 {
		t.Error("expected the timer to be cancelled")
	}

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 || execs[0].State != models.ExecutionCancelled {
		t.Fatalf("expected one cancelled execution, got %v", execs)
	}

	occs, err := store.ListOccurrences(ctx)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Errorf("expected no retry or recurrence occurrence to be scheduled, got %d occurrences", len(occs))
	}
}

func TestCancelOccurrence_UnknownIDReturnsError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	if err := sched.CancelOccurrence(ctx, uuid.New()); err == nil {
		t.Error("expected an error for an unknown occurrence id")
	}
}

func TestStart_ArmsFutureOccurrenceWithoutFiring(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 0}})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(2 * time.Hour)}
	store.AddOccurrence(ctx, &occ)

	sched.Start(ctx)

	armed := sched.GetScheduledOccurrences()
	found := false
	for _, id := range armed {
		if id == occ.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected the future occurrence's timer to be armed")
	}

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 0 {
		t.Errorf("expected no execution yet for a future occurrence, got %d", len(execs))
	}
}

func TestStart_FiresOccurrenceMissedWithinGraceInline(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 0}})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(-15 * time.Second)}
	store.AddOccurrence(ctx, &occ)

	sched.Start(ctx)

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected the within-grace occurrence to fire inline, got %d executions", len(execs))
	}
	if execs[0].OccurrenceID != occ.ID || execs[0].State != models.ExecutionDone {
		t.Errorf("expected a done execution for the missed occurrence, got %+v", execs[0])
	}

	for _, id := range sched.GetScheduledOccurrences() {
		if id == occ.ID {
			t.Error("expected the fired occurrence's timer to be gone")
		}
	}

	occs, err := store.ListOccurrences(ctx)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Errorf("expected no retry or recurrence occurrence, got %d occurrences", len(occs))
	}
}

func TestStart_RoutesOccurrenceMissedBeyondGraceToRecoveryAndRearms(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday)
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID, RetryPolicy: models.RetryPolicy{MaxRetries: 2}})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday.Add(-time.Minute)}
	store.AddOccurrence(ctx, &occ)

	sched.Start(ctx)

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 0 {
		t.Errorf("expected recovery not to write a completion execution for the missed occurrence, got %d", len(execs))
	}

	occs, err := store.ListOccurrences(ctx)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected the original occurrence plus one catch-up occurrence, got %d", len(occs))
	}

	var catchUp *models.TaskOccurrence
	for i := range occs {
		if occs[i].ID != occ.ID {
			catchUp = &occs[i]
		}
	}
	if catchUp == nil {
		t.Fatal("expected a catch-up occurrence distinct from the original")
	}
	if catchUp.TaskID != taskID {
		t.Errorf("expected the catch-up occurrence to reference the same task, got %v", catchUp.TaskID)
	}
	if !catchUp.ScheduledFor.After(monday) {
		t.Errorf("expected the catch-up occurrence to be rescheduled into the future, got %v", catchUp.ScheduledFor)
	}

	rearmed := false
	for _, id := range sched.GetScheduledOccurrences() {
		if id == catchUp.ID {
			rearmed = true
		}
	}
	if !rearmed {
		t.Error("expected the catch-up occurrence's timer to be armed")
	}
}

func TestScheduleOccurrence_PastDueFiresImmediately(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(monday.Add(time.Hour))
	sched := New(store, testConfig(), clock.now, nil, nil)

	taskID := uuid.New()
	store.AddTask(ctx, &models.TaskDefinition{ID: taskID})
	occ := models.TaskOccurrence{ID: uuid.New(), TaskID: taskID, ScheduledFor: monday}
	store.AddOccurrence(ctx, &occ)

	sched.ScheduleOccurrence(ctx, occ)

	execs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected a past-due occurrence to fire immediately, got %d executions", len(execs))
	}
}
