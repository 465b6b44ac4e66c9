// Package client is the taskctl HTTP client, grounded on the teacher's
// other-pack counterpart (apimgr-search's src/client/api/client.go): a
// thin wrapper over net/http with a bearer token and a JSON
// request/response cycle per call, independent of the server's
// internal types so the CLI and daemon can version separately.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the taskctl HTTP client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New constructs a Client with the given base URL and optional bearer token.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Task is the CLI-side mirror of the daemon's task response DTO.
type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Link              string     `json:"link,omitempty"`
	OwnerID           string     `json:"owner_id"`
	RecurrenceSeconds *int64     `json:"recurrence_seconds,omitempty"`
	Priority          string     `json:"priority"`
	PreferredSlots    []string   `json:"preferred_slots,omitempty"`
	MaxRetries        int        `json:"max_retries"`
	PinnedTime        *time.Time `json:"pinned_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CreateTaskRequest is the CLI-side mirror of the daemon's create DTO.
type CreateTaskRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Link              string     `json:"link,omitempty"`
	OwnerID           string     `json:"owner_id,omitempty"`
	RecurrenceSeconds *int64     `json:"recurrence_seconds,omitempty"`
	Priority          string     `json:"priority,omitempty"`
	PreferredSlots    []string   `json:"preferred_slots,omitempty"`
	MaxRetries        int        `json:"max_retries,omitempty"`
	PinnedTime        *time.Time `json:"pinned_time,omitempty"`
}

// Occurrence is the CLI-side mirror of the daemon's occurrence response DTO.
type Occurrence struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	SlotName     string     `json:"slot_name,omitempty"`
	PinnedTime   *time.Time `json:"pinned_time,omitempty"`
}

// Execution is the CLI-side mirror of the daemon's execution response DTO.
type Execution struct {
	ID               string    `json:"id"`
	OccurrenceID     string    `json:"occurrence_id"`
	State            string    `json:"state"`
	RetriesRemaining int       `json:"retries_remaining"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthSnapshot is the CLI-side mirror of the daemon's health DTO.
type HealthSnapshot struct {
	Status               string    `json:"status"`
	CheckedAt            time.Time `json:"checked_at"`
	ScheduledOccurrences int       `json:"scheduled_occurrences"`
	MemoryUsedPercent    float64   `json:"memory_used_percent"`
	MemoryTotalBytes     uint64    `json:"memory_total_bytes"`
}

// Health reports daemon health.
func (c *Client) Health() (*HealthSnapshot, error) {
	var out HealthSnapshot
	if err := c.do(http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartScheduler resumes scheduling.
func (c *Client) StartScheduler() error {
	return c.do(http.MethodPost, "/v1/scheduler/start", nil, nil)
}

// PauseScheduler freezes scheduling.
func (c *Client) PauseScheduler() error {
	return c.do(http.MethodPost, "/v1/scheduler/pause", nil, nil)
}

// ResumeScheduler is an alias for StartScheduler.
func (c *Client) ResumeScheduler() error {
	return c.do(http.MethodPost, "/v1/scheduler/resume", nil, nil)
}

// RunRecovery triggers a recovery sweep on demand.
func (c *Client) RunRecovery() error {
	return c.do(http.MethodPost, "/v1/recovery/run", nil, nil)
}

// CreateTask registers a new task.
func (c *Client) CreateTask(req CreateTaskRequest) (*Task, error) {
	var out Task
	if err := c.do(http.MethodPost, "/v1/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns every known task.
func (c *Client) ListTasks() ([]Task, error) {
	var out []Task
	if err := c.do(http.MethodGet, "/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask looks up a task by id.
func (c *Client) GetTask(id string) (*Task, error) {
	var out Task
	if err := c.do(http.MethodGet, "/v1/tasks/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task and its occurrences/executions.
func (c *Client) DeleteTask(id string) error {
	return c.do(http.MethodDelete, "/v1/tasks/"+id, nil, nil)
}

// ListOccurrences returns every known occurrence.
func (c *Client) ListOccurrences() ([]Occurrence, error) {
	var out []Occurrence
	if err := c.do(http.MethodGet, "/v1/occurrences", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOccurrence looks up an occurrence by id.
func (c *Client) GetOccurrence(id string) (*Occurrence, error) {
	var out Occurrence
	if err := c.do(http.MethodGet, "/v1/occurrences/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkDone marks an occurrence as completed right now.
func (c *Client) MarkDone(id string) error {
	return c.do(http.MethodPost, "/v1/occurrences/"+id+"/mark-done", nil, nil)
}

// CancelOccurrence withdraws an occurrence from scheduling.
func (c *Client) CancelOccurrence(id string) error {
	return c.do(http.MethodPost, "/v1/occurrences/"+id+"/cancel", nil, nil)
}

// RetryOccurrence forces a retry attempt, returning the new occurrence
// if one was scheduled.
func (c *Client) RetryOccurrence(id string) (*Occurrence, error) {
	var out Occurrence
	if err := c.do(http.MethodPost, "/v1/occurrences/"+id+"/retry", nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// ListExecutions returns every known execution record.
func (c *Client) ListExecutions() ([]Execution, error) {
	var out []Execution
	if err := c.do(http.MethodGet, "/v1/executions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
