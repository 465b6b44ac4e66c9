// Package orchestrator implements the Smart Scheduler: the sole
// stateful, clock-coupled component. It owns real-time timers, the
// paused flag, and the trigger pipeline, grounded on the teacher's
// pkg/scheduler/core.go Core struct (injected-dependency orchestrator)
// but restructured from a ticker-poll loop into one-shot per-occurrence
// timers with a re-entrant locking discipline, per spec §4.4/§5.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adil-adysh/plan-flow/pkg/archive"
	"github.com/adil-adysh/plan-flow/pkg/calendar"
	"github.com/adil-adysh/plan-flow/pkg/metrics"
	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/notify"
	"github.com/adil-adysh/plan-flow/pkg/recovery"
	"github.com/adil-adysh/plan-flow/pkg/resilience"
	"github.com/adil-adysh/plan-flow/pkg/scheduler"
	"github.com/adil-adysh/plan-flow/pkg/storage"
)

// RecoveryGraceSeconds is the cutoff between "fire immediately" and
// "delegate to recovery" when a missed task is discovered on startup.
const RecoveryGraceSeconds = 30

// Config holds the scheduling envelope, supplied at construction time
// and treated as immutable for the Scheduler's lifetime.
type Config struct {
	WorkingHours []models.WorkingHours
	SlotPool     []models.TimeSlot
	MaxPerDay    int
}

// Clock is the injected-time seam: the single point every component
// reads "now" through, making the whole orchestrator deterministically
// testable.
type Clock func() time.Time

// Scheduler is the Smart Scheduler. All mutations of timers and paused
// are serialized by mu; timer callbacks re-enter the lock to run the
// trigger pipeline, which in turn calls back into the locked scheduling
// path — hence the locked/unlocked method split below instead of a
// single public API guarded uniformly, since Go's sync.Mutex is not
// reentrant.
type Scheduler struct {
	store    storage.Store
	calendar *calendar.Planner
	decider  *scheduler.Decider
	recovery *recovery.Service
	config   Config
	now      Clock

	notifier Notifier
	archiver archive.Archiver
	breaker  *resilience.CircuitBreaker
	tracer   trace.Tracer

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	paused bool
}

// Notifier is the subset of notify.Notifier the orchestrator calls.
type Notifier = notify.Notifier

// New constructs a Scheduler. notifier/archiver may be nil to disable
// those best-effort side effects.
func New(store storage.Store, cfg Config, now Clock, notifier Notifier, archiver archive.Archiver) *Scheduler {
	if now == nil {
		now = time.Now
	}
	planner := calendar.New()
	return &Scheduler{
		store:    store,
		calendar: planner,
		decider:  scheduler.New(planner),
		recovery: recovery.New(scheduler.New(planner)),
		config:   cfg,
		now:      now,
		notifier: notifier,
		archiver: archiver,
		breaker:  resilience.NewCircuitBreaker("orchestrator-side-effects", resilience.DefaultCircuitBreakerConfig()),
		tracer:   otel.Tracer("orchestrator"),
		timers:   make(map[uuid.UUID]*time.Timer),
		paused:   false,
	}
}

func (s *Scheduler) searchParams(occurrences []models.TaskOccurrence) scheduler.SearchParams {
	return scheduler.SearchParams{
		ScheduledOccurrences: occurrences,
		WorkingHours:         s.config.WorkingHours,
		SlotPool:             s.config.SlotPool,
		MaxPerDay:            s.config.MaxPerDay,
	}
}

// Start resumes the scheduler: clears any armed timers, re-arms
// everything still pending, then sweeps for tasks missed while stopped.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.paused = false
	s.cancelAllTimersLocked()
	s.mu.Unlock()

	s.ScheduleAll(ctx)
	s.CheckForMissedTasks(ctx)
}

// Pause cancels all armed timers and freezes scheduling until Start is
// called again.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.cancelAllTimersLocked()
}

func (s *Scheduler) cancelAllTimersLocked() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	metrics.TimersArmed.Set(0)
}

// ScheduleAll arms a timer for every occurrence that is still pending
// (scheduled in the future and not yet executed to completion).
func (s *Scheduler) ScheduleAll(ctx context.Context) {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return
	}

	occurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to list occurrences: %v", err)
		return
	}
	executed, err := s.executedOccurrenceIDs(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to list executions: %v", err)
		return
	}

	now := s.now()
	for _, occ := range occurrences {
		if !occ.ScheduledFor.After(now) {
			continue
		}
		if executed[occ.ID] {
			continue
		}
		s.ScheduleOccurrence(ctx, occ)
	}
}

func (s *Scheduler) executedOccurrenceIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	executions, err := s.store.ListExecutions(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[uuid.UUID]bool)
	for _, e := range executions {
		if e.State == models.ExecutionDone {
			done[e.OccurrenceID] = true
		}
	}
	return done, nil
}

// ScheduleOccurrence arms a one-shot timer for occ, or no-ops if the
// scheduler is paused, the occurrence already has a completed execution,
// or the occurrence is no longer slot-valid (stale).
func (s *Scheduler) ScheduleOccurrence(ctx context.Context, occ models.TaskOccurrence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleOccurrenceLocked(ctx, occ)
}

func (s *Scheduler) scheduleOccurrenceLocked(ctx context.Context, occ models.TaskOccurrence) {
	if s.paused {
		return
	}

	executed, err := s.executedOccurrenceIDs(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to check execution state: %v", err)
		return
	}
	if executed[occ.ID] {
		return
	}

	allOccurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to list occurrences: %v", err)
		return
	}
	excluding := excludeOccurrence(allOccurrences, occ.ID)
	if !s.calendar.IsSlotAvailable(occ.ScheduledFor, excluding, s.config.WorkingHours, s.config.MaxPerDay, s.config.SlotPool) {
		return // stale-occurrence: dropped silently, no timer armed
	}

	if existing, ok := s.timers[occ.ID]; ok {
		existing.Stop()
		delete(s.timers, occ.ID)
	}

	delay := occ.ScheduledFor.Sub(s.now())
	if delay <= 0 {
		s.onTriggerLocked(ctx, occ)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timers[occ.ID] != timer {
			return // cancelled-or-replaced-but-fired race: treat as no-op
		}
		delete(s.timers, occ.ID)
		s.onTriggerLocked(context.Background(), occ)
	})
	s.timers[occ.ID] = timer
	metrics.TimersArmed.Set(float64(len(s.timers)))
}

func excludeOccurrence(occurrences []models.TaskOccurrence, id uuid.UUID) []models.TaskOccurrence {
	out := make([]models.TaskOccurrence, 0, len(occurrences))
	for _, o := range occurrences {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

// CheckForMissedTasks sweeps occurrences not yet executed: those missed
// within the grace window fire immediately; those missed beyond it are
// routed to recovery.
func (s *Scheduler) CheckForMissedTasks(ctx context.Context) {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return
	}

	occurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to list occurrences: %v", err)
		return
	}
	executed, err := s.executedOccurrenceIDs(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to list executions: %v", err)
		return
	}

	now := s.now()
	for _, occ := range occurrences {
		if executed[occ.ID] {
			continue
		}
		delta := now.Sub(occ.ScheduledFor)
		if delta <= 0 {
			continue
		}
		if delta <= RecoveryGraceSeconds*time.Second {
			s.mu.Lock()
			s.onTriggerLocked(ctx, occ)
			s.mu.Unlock()
		} else {
			s.triggerRecovery(ctx, occ)
		}
	}
}

// onTriggerLocked runs the trigger pipeline: cancel timer, write
// execution, attempt retry, else attempt recurrence. Must be called
// with mu held.
func (s *Scheduler) onTriggerLocked(ctx context.Context, occ models.TaskOccurrence) {
	traceCtx, span := s.tracer.Start(ctx, "orchestrator.trigger",
		trace.WithAttributes(attribute.String("occurrence.id", occ.ID.String())))
	defer span.End()

	if t, ok := s.timers[occ.ID]; ok {
		t.Stop()
		delete(s.timers, occ.ID)
		metrics.TimersArmed.Set(float64(len(s.timers)))
	}

	task, err := s.store.GetTask(traceCtx, occ.TaskID)
	if err != nil {
		// Dangling reference: the occurrence's task no longer exists.
		// Universal invariant #1 — no-op, no crash.
		return
	}

	retriesRemaining := clampNonNegative(task.RetryPolicy.MaxRetries - 1)
	exec := models.TaskExecution{
		OccurrenceID:     occ.ID,
		State:            models.ExecutionDone,
		RetriesRemaining: retriesRemaining,
		History:          models.TaskEventHistory{{Event: models.EventCompleted, Timestamp: s.now()}},
		CreatedAt:        s.now(),
	}
	if err := s.store.AddExecution(traceCtx, &exec); err != nil {
		log.Printf("[orchestrator] failed to write execution for occurrence %s: %v", occ.ID, err)
		return
	}
	metrics.TriggersTotal.Inc()
	metrics.TriggerLagSeconds.Observe(s.now().Sub(occ.ScheduledFor).Seconds())

	s.sideEffectsLocked(traceCtx, occ, exec)

	allOccurrences, _ := s.store.ListOccurrences(traceCtx)
	params := s.searchParams(allOccurrences)

	if retry := s.decider.RescheduleRetry(occ, models.RetryPolicy{MaxRetries: retriesRemaining}, s.now(), params); retry != nil {
		metrics.RetriesTotal.Inc()
		_ = s.store.AddOccurrence(traceCtx, retry)
		s.scheduleOccurrenceLocked(traceCtx, *retry)
		return
	}

	if task.Recurrence != nil {
		if next := s.decider.GetNextOccurrence(*task, s.now(), params); next != nil {
			_ = s.store.AddOccurrence(traceCtx, next)
			s.scheduleOccurrenceLocked(traceCtx, *next)
		}
	}
}

func (s *Scheduler) sideEffectsLocked(ctx context.Context, occ models.TaskOccurrence, exec models.TaskExecution) {
	if s.notifier != nil {
		_ = s.breaker.Execute(ctx, func() error {
			return s.notifier.NotifyTriggered(ctx, occ, exec)
		})
	}
	if s.archiver != nil {
		_ = s.breaker.Execute(ctx, func() error {
			_, err := s.archiver.Archive(ctx, exec)
			return err
		})
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// triggerRecovery runs the recovery sweep over every occurrence in the
// store and arms timers for whatever it produces; occ only names the
// missed occurrence that prompted the sweep.
func (s *Scheduler) triggerRecovery(ctx context.Context, occ models.TaskOccurrence) {
	occurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		return
	}
	executions, err := s.store.ListExecutions(ctx)
	if err != nil {
		return
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return
	}

	occByID := make(map[string]models.TaskOccurrence, len(occurrences))
	for _, o := range occurrences {
		occByID[o.ID.String()] = o
	}
	tasksByID := make(map[string]models.TaskDefinition, len(tasks))
	for _, t := range tasks {
		tasksByID[t.ID.String()] = t
	}

	produced := s.recovery.RecoverMissedOccurrences(executions, occByID, tasksByID, s.now(), s.searchParams(occurrences))
	metrics.RecoveredTotal.Add(float64(len(produced)))
	for _, next := range produced {
		_ = s.store.AddOccurrence(ctx, &next)
		s.ScheduleOccurrence(ctx, next)
	}
}

// RecoverMissedTasks runs the recovery sweep on demand, over every
// occurrence currently known to the store (not just ones discovered
// during a startup check).
func (s *Scheduler) RecoverMissedTasks(ctx context.Context) {
	occurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		return
	}
	now := s.now()
	for _, occ := range occurrences {
		if occ.ScheduledFor.Before(now) {
			// One sweep covers every stored occurrence.
			s.triggerRecovery(ctx, occ)
			return
		}
	}
}

// MarkDone treats occ as completed right now, running the full trigger
// pipeline; returns storage.ErrNotFound if the id is unknown.
func (s *Scheduler) MarkDone(ctx context.Context, occurrenceID uuid.UUID) error {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settled, err := s.hasSettledExecutionLocked(ctx, occ.ID)
	if err != nil {
		log.Printf("[orchestrator] failed to check execution state for occurrence %s: %v", occ.ID, err)
		return nil
	}
	if settled {
		// Already done or cancelled: never double-fire a settled occurrence.
		return nil
	}

	s.onTriggerLocked(ctx, *occ)
	return nil
}

// hasSettledExecutionLocked reports whether occurrenceID already has a
// terminal (done or cancelled) execution recorded against it.
func (s *Scheduler) hasSettledExecutionLocked(ctx context.Context, occurrenceID uuid.UUID) (bool, error) {
	executions, err := s.store.ListExecutions(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range executions {
		if e.OccurrenceID == occurrenceID && (e.State == models.ExecutionDone || e.State == models.ExecutionCancelled) {
			return true, nil
		}
	}
	return false, nil
}

// CancelOccurrence stops an armed timer (if any) and writes a cancelled
// execution for occ, without attempting a retry or recurrence. Returns
// storage.ErrNotFound if the id is unknown.
func (s *Scheduler) CancelOccurrence(ctx context.Context, occurrenceID uuid.UUID) error {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[occ.ID]; ok {
		t.Stop()
		delete(s.timers, occ.ID)
		metrics.TimersArmed.Set(float64(len(s.timers)))
	}

	exec := models.TaskExecution{
		OccurrenceID: occ.ID,
		State:        models.ExecutionCancelled,
		CreatedAt:    s.now(),
	}
	return s.store.AddExecution(ctx, &exec)
}

// RetryOccurrence forces a retry attempt for occ, returning the new
// occurrence or nil if retries are exhausted or no slot is available.
func (s *Scheduler) RetryOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*models.TaskOccurrence, error) {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, occ.TaskID)
	if err != nil {
		return nil, err
	}

	allOccurrences, err := s.store.ListOccurrences(ctx)
	if err != nil {
		return nil, err
	}

	retry := s.decider.RescheduleRetry(*occ, task.RetryPolicy, s.now(), s.searchParams(allOccurrences))
	if retry == nil {
		return nil, nil
	}
	if err := s.store.AddOccurrence(ctx, retry); err != nil {
		return nil, err
	}
	s.ScheduleOccurrence(ctx, *retry)
	return retry, nil
}

// GetScheduledOccurrences returns a snapshot of currently armed
// occurrence ids.
func (s *Scheduler) GetScheduledOccurrences() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.timers))
	for id := range s.timers {
		out = append(out, id)
	}
	return out
}
