// Package controller exposes the flat command surface over the Smart
// Scheduler: start/pause/resume/mark_done/retry/list/recover, plus task
// CRUD. It is the only layer permitted to raise — every pure and
// orchestrator-level component below it returns null/empty instead of
// erroring on "not found" or "not schedulable," per the error taxonomy
// this system draws the line at. Grounded on the thin-handler shape of
// the teacher's pkg/api/handlers_jobs.go, with the gin-specific pieces
// stripped out so the same Controller backs both the HTTP API and
// cmd/taskctl.
package controller

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/orchestrator"
	"github.com/adil-adysh/plan-flow/pkg/storage"
)

// ErrUnknownTask is raised when a command references a task id with no
// matching record.
var ErrUnknownTask = errors.New("unknown-task")

// ErrUnknownOccurrence is raised when a command references an
// occurrence id with no matching record.
var ErrUnknownOccurrence = errors.New("unknown-occurrence")

// Controller is the flat command surface over the Smart Scheduler and
// the repository. It performs validation only — all scheduling
// decisions live in pkg/scheduler, pkg/calendar and pkg/recovery.
type Controller struct {
	scheduler *orchestrator.Scheduler
	store     storage.Store
}

// New constructs a Controller over an already-wired Scheduler and Store.
func New(scheduler *orchestrator.Scheduler, store storage.Store) *Controller {
	return &Controller{scheduler: scheduler, store: store}
}

// Start resumes and schedules everything, then runs recovery.
func (c *Controller) Start(ctx context.Context) {
	c.scheduler.Start(ctx)
}

// Pause cancels all timers and freezes scheduling.
func (c *Controller) Pause() {
	c.scheduler.Pause()
}

// Resume is equivalent to Start.
func (c *Controller) Resume(ctx context.Context) {
	c.scheduler.Start(ctx)
}

// MarkDone treats an occurrence as completed right now, triggering its
// retry/recurrence chain. Returns ErrUnknownOccurrence if id is absent.
func (c *Controller) MarkDone(ctx context.Context, occurrenceID uuid.UUID) error {
	if err := c.scheduler.MarkDone(ctx, occurrenceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownOccurrence
		}
		return err
	}
	return nil
}

// RetryOccurrence forces a retry attempt. Returns (nil, nil) if retries
// are exhausted or no slot is available; ErrUnknownOccurrence if id is
// absent.
func (c *Controller) RetryOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*models.TaskOccurrence, error) {
	next, err := c.scheduler.RetryOccurrence(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownOccurrence
		}
		return nil, err
	}
	return next, nil
}

// CancelOccurrence withdraws an occurrence from scheduling without
// attempting a retry or recurrence. Returns ErrUnknownOccurrence if id
// is absent.
func (c *Controller) CancelOccurrence(ctx context.Context, occurrenceID uuid.UUID) error {
	if err := c.scheduler.CancelOccurrence(ctx, occurrenceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownOccurrence
		}
		return err
	}
	return nil
}

// GetScheduledOccurrences returns a snapshot of currently armed
// occurrence ids.
func (c *Controller) GetScheduledOccurrences() []uuid.UUID {
	return c.scheduler.GetScheduledOccurrences()
}

// RecoverMissedTasks runs the recovery sweep on demand.
func (c *Controller) RecoverMissedTasks(ctx context.Context) {
	c.scheduler.RecoverMissedTasks(ctx)
}

// CreateTask registers a new task definition. Idempotent on id.
func (c *Controller) CreateTask(ctx context.Context, task *models.TaskDefinition) error {
	return c.store.AddTask(ctx, task)
}

// GetTask looks up a task by id, returning ErrUnknownTask if absent.
func (c *Controller) GetTask(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error) {
	task, err := c.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownTask
		}
		return nil, err
	}
	return task, nil
}

// ListTasks returns every known task definition.
func (c *Controller) ListTasks(ctx context.Context) ([]models.TaskDefinition, error) {
	return c.store.ListTasks(ctx)
}

// DeleteTask cascades: removes the task, its occurrences, and the
// executions referring to those occurrences.
func (c *Controller) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if _, err := c.store.GetTask(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownTask
		}
		return err
	}
	return c.store.DeleteTaskAndRelated(ctx, id)
}

// ListOccurrences returns every known occurrence.
func (c *Controller) ListOccurrences(ctx context.Context) ([]models.TaskOccurrence, error) {
	return c.store.ListOccurrences(ctx)
}

// GetOccurrence looks up an occurrence by id, returning
// ErrUnknownOccurrence if absent.
func (c *Controller) GetOccurrence(ctx context.Context, id uuid.UUID) (*models.TaskOccurrence, error) {
	occ, err := c.store.GetOccurrence(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownOccurrence
		}
		return nil, err
	}
	return occ, nil
}

// ListExecutions returns every known execution record.
func (c *Controller) ListExecutions(ctx context.Context) ([]models.TaskExecution, error) {
	return c.store.ListExecutions(ctx)
}
