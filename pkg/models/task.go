// Package models holds the immutable domain records shared by every
// scheduling component. Records are constructed once and never mutated;
// state transitions are represented by new records, not in-place writes.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority is a tie-break for same-day scheduling conflicts.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the priority's tie-break rank; lower schedules earlier.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// RetryPolicy bounds how many times a missed occurrence may be retried.
type RetryPolicy struct {
	MaxRetries int `json:"max_retries"`
}

func (r *RetryPolicy) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, r)
}

func (r RetryPolicy) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// SlotNames is an ordered list of preferred slot names, stored as jsonb.
type SlotNames []string

func (s *SlotNames) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

func (s SlotNames) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// TaskDefinition is the user template a task is scheduled from. Never
// mutated after creation; deletion cascades to its occurrences and
// executions (see storage.TaskStore.DeleteTaskAndRelated).
type TaskDefinition struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title          string         `json:"title" gorm:"not null"`
	Description    string         `json:"description,omitempty"`
	Link           string         `json:"link,omitempty"`
	OwnerID        string         `json:"owner_id"`
	Recurrence     *time.Duration `json:"recurrence,omitempty" gorm:"type:bigint"` // nanoseconds; nil = one-shot
	Priority       Priority       `json:"priority" gorm:"type:varchar(10);default:'medium'"`
	PreferredSlots SlotNames      `json:"preferred_slots" gorm:"type:jsonb"`
	RetryPolicy    RetryPolicy    `json:"retry_policy" gorm:"type:jsonb"`
	PinnedTime     *time.Time     `json:"pinned_time,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (t *TaskDefinition) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsOneShot reports whether the task has no recurrence configured.
func (t *TaskDefinition) IsOneShot() bool {
	return t.Recurrence == nil
}

// TaskOccurrence is a concrete scheduled firing of a task.
//
// Invariant: if PinnedTime is set, ScheduledFor == *PinnedTime.
type TaskOccurrence struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID       uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index:idx_task_scheduled,unique"`
	ScheduledFor time.Time `json:"scheduled_for" gorm:"not null;index:idx_task_scheduled,unique"`
	SlotName     string    `json:"slot_name,omitempty"`
	PinnedTime   *time.Time `json:"pinned_time,omitempty"`
}

func (o *TaskOccurrence) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsPinned reports whether this occurrence is an explicit user intent,
// excluded from automatic recovery.
func (o *TaskOccurrence) IsPinned() bool {
	return o.PinnedTime != nil
}

// ExecutionState is the tagged state of a TaskExecution's lifecycle.
type ExecutionState string

const (
	ExecutionPending   ExecutionState = "pending"
	ExecutionDone      ExecutionState = "done"
	ExecutionMissed    ExecutionState = "missed"
	ExecutionCancelled ExecutionState = "cancelled"
)

// EventKind tags an entry in a TaskExecution's append-only history.
type EventKind string

const (
	EventTriggered   EventKind = "triggered"
	EventMissed      EventKind = "missed"
	EventRescheduled EventKind = "rescheduled"
	EventCompleted   EventKind = "completed"
)

// TaskEvent is a single append-only history entry on a TaskExecution.
type TaskEvent struct {
	Event     EventKind `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskEventHistory is the jsonb-backed append-only event list.
type TaskEventHistory []TaskEvent

func (h *TaskEventHistory) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, h)
}

func (h TaskEventHistory) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// TaskExecution is the runtime record of one occurrence's lifecycle.
// Append-only: a new row is written on each trigger, never mutated.
type TaskExecution struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	OccurrenceID     uuid.UUID        `json:"occurrence_id" gorm:"type:uuid;not null;index"`
	State            ExecutionState   `json:"state" gorm:"type:varchar(20);not null"`
	RetriesRemaining int              `json:"retries_remaining"`
	History          TaskEventHistory `json:"history" gorm:"type:jsonb"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (e *TaskExecution) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsReschedulable reports whether this execution still permits a retry.
func (e *TaskExecution) IsReschedulable() bool {
	return e.RetriesRemaining > 0 && e.State != ExecutionDone && e.State != ExecutionCancelled
}

// RetryCount derives how many retries have been consumed so far, given
// the task's original retry budget.
func (e *TaskExecution) RetryCount(initialMax int) int {
	return initialMax - e.RetriesRemaining
}

// LastEventTime returns the timestamp of the most recent history entry,
// or the zero value with ok=false if history is empty.
func (e *TaskExecution) LastEventTime() (time.Time, bool) {
	if len(e.History) == 0 {
		return time.Time{}, false
	}
	latest := e.History[0].Timestamp
	for _, ev := range e.History[1:] {
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}
	return latest, true
}
