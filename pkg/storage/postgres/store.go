// Package postgres adapts storage.Store onto GORM/Postgres, grounded on
// the teacher's pkg/storage/postgres/job_store.go: same connection-pool
// tuning, same AutoMigrate-on-construct, same gorm.ErrRecordNotFound
// mapping, same upsert-by-id idempotency contract (here via
// clause.OnConflict, matching spec §6's "add_* with an existing id
// overwrites").
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/adil-adysh/plan-flow/pkg/models"
	"github.com/adil-adysh/plan-flow/pkg/storage"
)

// Store is a GORM/Postgres implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

// New opens a connection, tunes the pool, and migrates the schema.
func New(connString string) (*Store, error) {
	cfg := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Info),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.Open(connString), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.TaskDefinition{}, &models.TaskOccurrence{}, &models.TaskExecution{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AddTask(ctx context.Context, task *models.TaskDefinition) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(task)
	if result.Error != nil {
		return fmt.Errorf("failed to add task: %w", result.Error)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.TaskDefinition, error) {
	var task models.TaskDefinition
	result := s.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]models.TaskDefinition, error) {
	var tasks []models.TaskDefinition
	result := s.db.WithContext(ctx).Order("created_at asc").Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", result.Error)
	}
	return tasks, nil
}

func (s *Store) DeleteTaskAndRelated(ctx context.Context, taskID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var occurrenceIDs []uuid.UUID
		if err := tx.Model(&models.TaskOccurrence{}).Where("task_id = ?", taskID).Pluck("id", &occurrenceIDs).Error; err != nil {
			return err
		}
		if len(occurrenceIDs) > 0 {
			if err := tx.Where("occurrence_id IN ?", occurrenceIDs).Delete(&models.TaskExecution{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskOccurrence{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", taskID).Delete(&models.TaskDefinition{}).Error
	})
}

func (s *Store) AddOccurrence(ctx context.Context, occ *models.TaskOccurrence) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(occ)
	if result.Error != nil {
		return fmt.Errorf("failed to add occurrence: %w", result.Error)
	}
	return nil
}

func (s *Store) ListOccurrences(ctx context.Context) ([]models.TaskOccurrence, error) {
	var occs []models.TaskOccurrence
	result := s.db.WithContext(ctx).Order("scheduled_for asc").Find(&occs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", result.Error)
	}
	return occs, nil
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (*models.TaskOccurrence, error) {
	var occ models.TaskOccurrence
	result := s.db.WithContext(ctx).First(&occ, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, result.Error
	}
	return &occ, nil
}

func (s *Store) AddExecution(ctx context.Context, exec *models.TaskExecution) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(exec)
	if result.Error != nil {
		return fmt.Errorf("failed to add execution: %w", result.Error)
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context) ([]models.TaskExecution, error) {
	var execs []models.TaskExecution
	result := s.db.WithContext(ctx).Order("created_at asc").Find(&execs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list executions: %w", result.Error)
	}
	return execs, nil
}
