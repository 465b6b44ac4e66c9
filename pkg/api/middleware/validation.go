package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adil-adysh/plan-flow/pkg/models"
)

// ValidationError describes a single rejected field on an inbound
// request body.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxLinkLength        = 2048
)

// ValidateTaskDefinition checks the fields of an inbound task creation
// or update request against the constraints the domain model assumes
// but does not itself enforce (models.TaskDefinition is a plain record,
// not a self-validating one).
func ValidateTaskDefinition(task *models.TaskDefinition) []ValidationError {
	var errs []ValidationError

	if task.Title == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "must not be empty"})
	} else if len(task.Title) > maxTitleLength {
		errs = append(errs, ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", maxTitleLength)})
	}

	if len(task.Description) > maxDescriptionLength {
		errs = append(errs, ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLength)})
	}

	if len(task.Link) > maxLinkLength {
		errs = append(errs, ValidationError{Field: "link", Message: fmt.Sprintf("must be at most %d characters", maxLinkLength)})
	}

	if task.Recurrence != nil && *task.Recurrence <= 0 {
		errs = append(errs, ValidationError{Field: "recurrence", Message: "must be a positive duration"})
	}

	switch task.Priority {
	case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
	default:
		errs = append(errs, ValidationError{Field: "priority", Message: "must be one of low, medium, high"})
	}

	if task.RetryPolicy.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "retry_policy.max_retries", Message: "must not be negative"})
	}

	return errs
}

// BodySizeLimitMiddleware rejects request bodies larger than maxBytes.
func BodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeadersMiddleware sets a baseline set of defensive HTTP
// response headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// RequestIDMiddleware assigns a request id, reusing an inbound
// X-Request-ID header if the caller already supplied one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func generateRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), randomString(8))
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)[:n]
}
