package postgres

import (
	"context"
	"errors"
	"fmt"

	"clinicalGym/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrainingRepository struct {
	DB *gorm.DB
}

func NewTrainingRepository(db *gorm.DB) *TrainingRepository {
	return &TrainingRepository{DB: db}
}

func (r *TrainingRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *TrainingRepository) Create(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create training job: %w", err)
	}
	return nil
}

// Update writes every column of the job, inserting it if it does not exist yet.
func (r *TrainingRepository) Update(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		},
	).Create(job).Error; err != nil {
		return fmt.Errorf("failed to upsert training job: %w", err)
	}
	return nil
}

func (r *TrainingRepository) FindByID(ctx context.Context, id string) (*domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var job domain.TrainingJob
	err := r.DB.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTrainingJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query training job: %w", err)
	}
	return &job, nil
}

func (r *TrainingRepository) FindAll(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if filter.Environment != "" {
		q = q.Where("environment = ?", filter.Environment)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var jobs []domain.TrainingJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list training jobs: %w", err)
	}
	return jobs, nil
}
