// Command taskschedulerd runs the scheduling daemon: the Smart
// Scheduler orchestrator plus its HTTP API, in a single process.
// Grounded on the teacher's cmd/scheduler/main.go and cmd/api/main.go
// (config load, store init, signal handling, graceful shutdown), merged
// into one binary and stripped of etcd leader election — this system
// is single-node by design (spec §1 scopes it to "local"), so the
// teacher's multi-scheduler campaign/resign dance has no analog.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adil-adysh/plan-flow/pkg/archive"
	"github.com/adil-adysh/plan-flow/pkg/api"
	"github.com/adil-adysh/plan-flow/pkg/auth"
	"github.com/adil-adysh/plan-flow/pkg/config"
	"github.com/adil-adysh/plan-flow/pkg/controller"
	"github.com/adil-adysh/plan-flow/pkg/diagnostics"
	"github.com/adil-adysh/plan-flow/pkg/logger"
	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/notify"
	tracing "github.com/adil-adysh/plan-flow/pkg/observability"
	"github.com/adil-adysh/plan-flow/pkg/orchestrator"
	"github.com/adil-adysh/plan-flow/pkg/storage"
	"github.com/adil-adysh/plan-flow/pkg/storage/memory"
	"github.com/adil-adysh/plan-flow/pkg/storage/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func defaultWorkingHours() []models.WorkingHours {
	weekdays := []models.Weekday{
		models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday,
	}
	hours := make([]models.WorkingHours, 0, len(weekdays))
	for _, day := range weekdays {
		hours = append(hours, models.WorkingHours{
			Day:          day,
			Start:        models.TimeOfDay{Hour: 8, Minute: 0},
			End:          models.TimeOfDay{Hour: 18, Minute: 0},
			AllowedSlots: []string{"morning", "afternoon"},
		})
	}
	return hours
}

func defaultSlotPool() []models.TimeSlot {
	return []models.TimeSlot{
		{Name: "morning", Start: models.TimeOfDay{Hour: 9, Minute: 0}, End: models.TimeOfDay{Hour: 12, Minute: 0}},
		{Name: "afternoon", Start: models.TimeOfDay{Hour: 13, Minute: 0}, End: models.TimeOfDay{Hour: 17, Minute: 0}},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if _, err := logger.Init(logger.DefaultConfig("taskschedulerd")); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	tracerProvider, err := tracing.Init(ctx, tracing.DefaultConfig("taskschedulerd"))
	if err != nil {
		logger.Error("failed to initialize tracing", zap.Error(err))
	} else {
		defer tracerProvider.Shutdown(context.Background())
	}

	var store storage.Store
	if cfg.DBHost != "" {
		pgStore, err := postgres.New(cfg.DBConnString())
		if err != nil {
			logger.Error("failed to connect to postgres, falling back to in-memory store", zap.Error(err))
			store = memory.New()
		} else {
			defer pgStore.Close()
			store = pgStore
		}
	} else {
		store = memory.New()
	}

	var notifier notify.Notifier
	if cfg.RedisAddr != "" {
		redisNotifier, err := notify.NewRedisNotifier(cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis, falling back to log notifier", zap.Error(err))
			notifier = notify.LogNotifier{}
		} else {
			defer redisNotifier.Close()
			notifier = redisNotifier
		}
	} else {
		notifier = notify.LogNotifier{}
	}

	var archiver archive.Archiver
	if cfg.S3Bucket != "" {
		s3Archiver, err := archive.NewS3Archiver(archive.S3ArchiverConfig{
			Bucket:   cfg.S3Bucket,
			Prefix:   "executions/",
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			logger.Error("failed to initialize s3 archiver, falling back to local archiver", zap.Error(err))
			archiver, _ = archive.NewLocalArchiver(cfg.ArchiveLocalDir)
		} else {
			archiver = s3Archiver
		}
	} else {
		archiver, _ = archive.NewLocalArchiver(cfg.ArchiveLocalDir)
	}

	schedulerCfg := orchestrator.Config{
		WorkingHours: defaultWorkingHours(),
		SlotPool:     defaultSlotPool(),
		MaxPerDay:    cfg.MaxPerDay,
	}
	sched := orchestrator.New(store, schedulerCfg, time.Now, notifier, archiver)
	ctrl := controller.New(sched, store)
	reporter := diagnostics.New(ctrl)

	var jwtService *auth.JWTService
	if cfg.AuthEnabled && cfg.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig()
		jwtCfg.SecretKey = cfg.JWTSecret
		jwtCfg.Issuer = cfg.JWTIssuer
		jwtService, err = auth.NewJWTService(jwtCfg)
		if err != nil {
			logger.Error("failed to initialize jwt service, disabling auth", zap.Error(err))
		}
	}
	var apiKeyStore auth.APIKeyStore
	if cfg.AuthEnabled && cfg.RedisAddr != "" {
		apiKeyStore = auth.NewRedisAPIKeyStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	server := api.NewServer(api.Config{
		Port:        cfg.APIPort,
		JWTService:  jwtService,
		APIKeyStore: apiKeyStore,
		AuthEnabled: cfg.AuthEnabled && jwtService != nil,
	}, ctrl, reporter)

	sched.Start(ctx)
	logger.Info("scheduler started")

	go func() {
		if err := server.Run(); err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	sig := <-sigChan
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during http server shutdown", zap.Error(err))
	}
	sched.Pause()

	cancel()
	logger.Info("shutdown complete")
}
