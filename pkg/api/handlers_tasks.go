package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adil-adysh/plan-flow/pkg/api/middleware"
	"github.com/adil-adysh/plan-flow/pkg/controller"
	"github.com/adil-adysh/plan-flow/pkg/models"
)

// CreateTaskRequest is the inbound DTO for task creation, grounded on
// the teacher's CreateJobRequest shape.
type CreateTaskRequest struct {
	Title              string              `json:"title" binding:"required"`
	Description        string              `json:"description"`
	Link               string              `json:"link"`
	OwnerID            string              `json:"owner_id"`
	RecurrenceSeconds  *int64              `json:"recurrence_seconds"`
	Priority           models.Priority     `json:"priority"`
	PreferredSlots     models.SlotNames    `json:"preferred_slots"`
	MaxRetries         int                 `json:"max_retries"`
	PinnedTime         *time.Time          `json:"pinned_time"`
}

// TaskResponse is the outbound DTO for a task definition.
type TaskResponse struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description,omitempty"`
	Link              string           `json:"link,omitempty"`
	OwnerID           string           `json:"owner_id"`
	RecurrenceSeconds *int64           `json:"recurrence_seconds,omitempty"`
	Priority          models.Priority  `json:"priority"`
	PreferredSlots    models.SlotNames `json:"preferred_slots,omitempty"`
	MaxRetries        int              `json:"max_retries"`
	PinnedTime        *time.Time       `json:"pinned_time,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

func taskToResponse(t models.TaskDefinition) TaskResponse {
	resp := TaskResponse{
		ID:             t.ID.String(),
		Title:          t.Title,
		Description:    t.Description,
		Link:           t.Link,
		OwnerID:        t.OwnerID,
		Priority:       t.Priority,
		PreferredSlots: t.PreferredSlots,
		MaxRetries:     t.RetryPolicy.MaxRetries,
		PinnedTime:     t.PinnedTime,
		CreatedAt:      t.CreatedAt,
	}
	if t.Recurrence != nil {
		seconds := int64(t.Recurrence.Seconds())
		resp.RecurrenceSeconds = &seconds
	}
	return resp
}

func (s *Server) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := &models.TaskDefinition{
		ID:             uuid.New(),
		Title:          req.Title,
		Description:    req.Description,
		Link:           req.Link,
		OwnerID:        req.OwnerID,
		Priority:       req.Priority,
		PreferredSlots: req.PreferredSlots,
		RetryPolicy:    models.RetryPolicy{MaxRetries: req.MaxRetries},
		PinnedTime:     req.PinnedTime,
		CreatedAt:      time.Now(),
	}
	if req.RecurrenceSeconds != nil {
		d := time.Duration(*req.RecurrenceSeconds) * time.Second
		task.Recurrence = &d
	}

	if errs := middleware.ValidateTaskDefinition(task); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	if err := s.controller.CreateTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, taskToResponse(*task))
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, err := s.controller.ListTasks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	task, err := s.controller.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, controller.ErrUnknownTask) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (s *Server) deleteTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if err := s.controller.DeleteTask(c.Request.Context(), id); err != nil {
		if errors.Is(err, controller.ErrUnknownTask) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
