// Package recovery implements the Recovery Service: it analyses
// occurrences missed while the host process was not running (or was
// paused) and produces catch-up occurrences, grounded on the teacher's
// reconcile/retry-sweep shape (pkg/scheduler/core.go's Reconcile and
// RetryFailures) repurposed from orphan-reaping to catch-up scheduling.
package recovery

import (
	"sort"
	"time"

	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/scheduler"
)

// Service computes catch-up occurrences. It is pure: it never mutates
// its inputs and never touches the clock or the repository directly.
type Service struct {
	Decider *scheduler.Decider
}

// New constructs a recovery Service over the given Task Scheduler.
func New(decider *scheduler.Decider) *Service {
	return &Service{Decider: decider}
}

// RecoverMissedOccurrences computes, for each missed occurrence, at most
// one catch-up occurrence: a retry if the task still has retry budget,
// else the task's next recurrence, else nothing. Pinned-time occurrences
// are always skipped (they represent explicit user intent and are never
// auto-rescheduled).
func (s *Service) RecoverMissedOccurrences(
	executions []models.TaskExecution,
	occurrencesByID map[string]models.TaskOccurrence,
	tasksByID map[string]models.TaskDefinition,
	now time.Time,
	params scheduler.SearchParams,
) []models.TaskOccurrence {
	var out []models.TaskOccurrence

	executionsByOccurrence := make(map[string][]models.TaskExecution)
	for _, e := range executions {
		key := e.OccurrenceID.String()
		executionsByOccurrence[key] = append(executionsByOccurrence[key], e)
	}

	for _, occ := range occurrencesByID {
		if occ.IsPinned() {
			continue
		}
		if !occ.ScheduledFor.Before(now) {
			continue
		}
		if hasDoneExecution(executionsByOccurrence[occ.ID.String()]) {
			continue
		}

		task, ok := tasksByID[occ.TaskID.String()]
		if !ok {
			continue
		}

		retriesRemaining := task.RetryPolicy.MaxRetries
		if exec := mostRecentExecution(executionsByOccurrence[occ.ID.String()]); exec != nil {
			retriesRemaining = exec.RetriesRemaining
		}

		if retriesRemaining > 0 {
			if retry := s.Decider.RescheduleRetry(occ, models.RetryPolicy{MaxRetries: retriesRemaining}, now, params); retry != nil {
				out = append(out, *retry)
				continue
			}
		}

		if task.Recurrence != nil {
			if next := s.Decider.GetNextOccurrence(task, now, params); next != nil {
				out = append(out, *next)
			}
		}
	}

	// occurrencesByID is a map, so iteration order above is randomized;
	// sort the result so repeated calls over the same input agree.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return out
}

func hasDoneExecution(executions []models.TaskExecution) bool {
	for _, e := range executions {
		if e.State == models.ExecutionDone {
			return true
		}
	}
	return false
}

func mostRecentExecution(executions []models.TaskExecution) *models.TaskExecution {
	if len(executions) == 0 {
		return nil
	}
	latest := executions[0]
	for _, e := range executions[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return &latest
}
