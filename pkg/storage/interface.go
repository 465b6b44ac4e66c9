// Package storage defines the repository boundary the scheduling core
// consumes: CRUD over three logical tables (tasks, occurrences,
// executions), grounded on the teacher's JobStore/ExecutionStore
// contract (pkg/storage/interface.go) and its ErrNotFound/ErrConflict
// sentinels.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// TaskStore is the data access layer for TaskDefinition records.
type TaskStore interface {
	// AddTask upserts a task by id (idempotent: existing id overwrites).
	AddTask(ctx context.Context, task *models.TaskDefinition) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error)
	ListTasks(ctx context.Context) ([]models.TaskDefinition, error)
	// DeleteTaskAndRelated cascades: deletes the task, its occurrences,
	// and all executions referring to those occurrences.
	DeleteTaskAndRelated(ctx context.Context, taskID uuid.UUID) error
}

// OccurrenceStore is the data access layer for TaskOccurrence records.
type OccurrenceStore interface {
	AddOccurrence(ctx context.Context, occ *models.TaskOccurrence) error
	ListOccurrences(ctx context.Context) ([]models.TaskOccurrence, error)
	GetOccurrence(ctx context.Context, id uuid.UUID) (*models.TaskOccurrence, error)
}

// ExecutionStore is the data access layer for TaskExecution records.
type ExecutionStore interface {
	AddExecution(ctx context.Context, exec *models.TaskExecution) error
	ListExecutions(ctx context.Context) ([]models.TaskExecution, error)
}

// Store composes the three repository facets the orchestrator needs.
type Store interface {
	TaskStore
	OccurrenceStore
	ExecutionStore
}
