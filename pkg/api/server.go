// Package api is the HTTP surface over pkg/controller, grounded on the
// teacher's pkg/api/server.go: same middleware chain shape (recovery,
// request id, security headers, metrics, tracing, structured request
// log, rate limit, body size limit), same route-group-per-resource
// layout, generalized from job/execution/cluster endpoints to
// task/occurrence/scheduler endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adil-adysh/plan-flow/pkg/api/middleware"
	"github.com/adil-adysh/plan-flow/pkg/auth"
	"github.com/adil-adysh/plan-flow/pkg/controller"
	"github.com/adil-adysh/plan-flow/pkg/diagnostics"
	"github.com/adil-adysh/plan-flow/pkg/logger"
)

// Config configures the HTTP server.
type Config struct {
	Port        int
	JWTService  *auth.JWTService
	APIKeyStore auth.APIKeyStore
	AuthEnabled bool
}

// Server is the scheduler's HTTP API, wrapping a gin engine over a
// single Controller instance.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	controller *controller.Controller
	reporter   *diagnostics.Reporter
	config     Config
}

// NewServer wires the full middleware chain and route table over an
// already-constructed Controller.
func NewServer(cfg Config, ctrl *controller.Controller, reporter *diagnostics.Reporter) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.SecurityHeadersMiddleware())
	engine.Use(middleware.MetricsMiddleware())
	engine.Use(middleware.TracingMiddleware("taskschedulerd"))
	engine.Use(requestLogger())
	engine.Use(middleware.RateLimitMiddleware())
	engine.Use(middleware.BodySizeLimitMiddleware(1 << 20))

	s := &Server{
		engine:     engine,
		controller: ctrl,
		reporter:   reporter,
		config:     cfg,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Run starts serving HTTP, blocking until the listener fails or is
// closed via Shutdown.
func (s *Server) Run() error {
	logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying HTTP handler for tests that want to
// drive the route table without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authCfg := middleware.AuthConfig{
		JWTService:  s.config.JWTService,
		APIKeyStore: s.config.APIKeyStore,
		SkipPaths:   []string{"/health", "/metrics"},
	}

	v1 := s.engine.Group("/v1")

	scheduler := v1.Group("/scheduler")
	if s.config.AuthEnabled {
		scheduler.Use(middleware.AuthMiddleware(authCfg), middleware.RequireRole(auth.RoleOperator))
	}
	{
		scheduler.POST("/start", s.startScheduler)
		scheduler.POST("/pause", s.pauseScheduler)
		scheduler.POST("/resume", s.resumeScheduler)
	}

	tasks := v1.Group("/tasks")
	if s.config.AuthEnabled {
		tasks.Use(middleware.AuthMiddleware(authCfg))
	}
	{
		tasks.POST("", s.createTask)
		tasks.GET("", s.listTasks)
		tasks.GET("/:id", s.getTask)
		deleteChain := []gin.HandlerFunc{s.deleteTask}
		if s.config.AuthEnabled {
			deleteChain = append([]gin.HandlerFunc{middleware.RequireOwnership(s.taskOwnerID)}, deleteChain...)
		}
		tasks.DELETE("/:id", deleteChain...)
	}

	occurrences := v1.Group("/occurrences")
	{
		occurrences.GET("", s.listOccurrences)
		occurrences.GET("/:id", s.getOccurrence)
	}
	occurrencesWrite := v1.Group("/occurrences")
	if s.config.AuthEnabled {
		occurrencesWrite.Use(middleware.AuthMiddleware(authCfg))
	}
	{
		occurrencesWrite.POST("/:id/mark-done", s.markDone)
		occurrencesWrite.POST("/:id/retry", s.retryOccurrence)
		occurrencesWrite.POST("/:id/cancel", s.cancelOccurrence)
	}

	v1.GET("/executions", s.listExecutions)

	recovery := v1.Group("/recovery")
	if s.config.AuthEnabled {
		recovery.Use(middleware.AuthMiddleware(authCfg), middleware.RequireRole(auth.RoleOperator))
	}
	{
		recovery.POST("/run", s.runRecovery)
	}
}

// taskOwnerID looks up the owning user for the task named by the
// request's :id param, for RequireOwnership's benefit on the delete
// route. An unparsable or unknown id yields an empty owner, which
// RequireOwnership rejects as a non-match.
func (s *Server) taskOwnerID(c *gin.Context) string {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ""
	}
	task, err := s.controller.GetTask(c.Request.Context(), id)
	if err != nil {
		return ""
	}
	return task.OwnerID
}

func (s *Server) healthCheck(c *gin.Context) {
	snap := s.reporter.Check(c.Request.Context())
	c.JSON(http.StatusOK, snap)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		)
	}
}
