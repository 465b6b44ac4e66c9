package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/controller"
	"github.com/adil-adysh/plan-flow/pkg/models"
)

// OccurrenceResponse is the outbound DTO for a scheduled occurrence.
type OccurrenceResponse struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	SlotName     string     `json:"slot_name,omitempty"`
	PinnedTime   *time.Time `json:"pinned_time,omitempty"`
}

func occurrenceToResponse(o models.TaskOccurrence) OccurrenceResponse {
	return OccurrenceResponse{
		ID:           o.ID.String(),
		TaskID:       o.TaskID.String(),
		ScheduledFor: o.ScheduledFor,
		SlotName:     o.SlotName,
		PinnedTime:   o.PinnedTime,
	}
}

// ExecutionResponse is the outbound DTO for a recorded execution.
type ExecutionResponse struct {
	ID               string                  `json:"id"`
	OccurrenceID     string                  `json:"occurrence_id"`
	State            models.ExecutionState   `json:"state"`
	RetriesRemaining int                     `json:"retries_remaining"`
	History          models.TaskEventHistory `json:"history"`
	CreatedAt        time.Time               `json:"created_at"`
}

func executionToResponse(e models.TaskExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:               e.ID.String(),
		OccurrenceID:     e.OccurrenceID.String(),
		State:            e.State,
		RetriesRemaining: e.RetriesRemaining,
		History:          e.History,
		CreatedAt:        e.CreatedAt,
	}
}

func (s *Server) listOccurrences(c *gin.Context) {
	occs, err := s.controller.ListOccurrences(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]OccurrenceResponse, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceToResponse(o))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getOccurrence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occurrence id"})
		return
	}

	occ, err := s.controller.GetOccurrence(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, controller.ErrUnknownOccurrence) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, occurrenceToResponse(*occ))
}

func (s *Server) markDone(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occurrence id"})
		return
	}

	if err := s.controller.MarkDone(c.Request.Context(), id); err != nil {
		if errors.Is(err, controller.ErrUnknownOccurrence) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) cancelOccurrence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occurrence id"})
		return
	}

	if err := s.controller.CancelOccurrence(c.Request.Context(), id); err != nil {
		if errors.Is(err, controller.ErrUnknownOccurrence) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) retryOccurrence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occurrence id"})
		return
	}

	next, err := s.controller.RetryOccurrence(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, controller.ErrUnknownOccurrence) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if next == nil {
		c.JSON(http.StatusOK, gin.H{"retried": false})
		return
	}

	c.JSON(http.StatusOK, occurrenceToResponse(*next))
}

func (s *Server) listExecutions(c *gin.Context) {
	execs, err := s.controller.ListExecutions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]ExecutionResponse, 0, len(execs))
	for _, e := range execs {
		out = append(out, executionToResponse(e))
	}
	c.JSON(http.StatusOK, out)
}
