// Package memory is an in-process, map-backed implementation of
// storage.Store. It backs unit tests and is the store cmd/taskschedulerd
// falls back to when no Postgres store is available, mirroring the teacher's dev-friendly
// LocalLogStore fallback pattern (pkg/storage/log_store.go).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/storage"
)

// Store is a goroutine-safe in-memory implementation of storage.Store.
type Store struct {
	mu          sync.RWMutex
	tasks       map[uuid.UUID]models.TaskDefinition
	occurrences map[uuid.UUID]models.TaskOccurrence
	executions  map[uuid.UUID]models.TaskExecution
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		tasks:       make(map[uuid.UUID]models.TaskDefinition),
		occurrences: make(map[uuid.UUID]models.TaskOccurrence),
		executions:  make(map[uuid.UUID]models.TaskExecution),
	}
}

func (s *Store) AddTask(ctx context.Context, task *models.TaskDefinition) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]models.TaskDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TaskDefinition, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteTaskAndRelated(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)

	var doomedOccurrences []uuid.UUID
	for id, occ := range s.occurrences {
		if occ.TaskID == taskID {
			doomedOccurrences = append(doomedOccurrences, id)
			delete(s.occurrences, id)
		}
	}
	for id, exec := range s.executions {
		for _, occID := range doomedOccurrences {
			if exec.OccurrenceID == occID {
				delete(s.executions, id)
				break
			}
		}
	}
	return nil
}

func (s *Store) AddOccurrence(ctx context.Context, occ *models.TaskOccurrence) error {
	if occ.ID == uuid.Nil {
		occ.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occurrences[occ.ID] = *occ
	return nil
}

func (s *Store) ListOccurrences(ctx context.Context) ([]models.TaskOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TaskOccurrence, 0, len(s.occurrences))
	for _, o := range s.occurrences {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (*models.TaskOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	occ, ok := s.occurrences[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &occ, nil
}

func (s *Store) AddExecution(ctx context.Context, exec *models.TaskExecution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = *exec
	return nil
}

func (s *Store) ListExecutions(ctx context.Context) ([]models.TaskExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TaskExecution, 0, len(s.executions))
	for _, e := range s.executions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
