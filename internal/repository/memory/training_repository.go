// Package memory keeps training jobs in process memory. It backs local runs and
// tests when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clinicalGym/domain"
)

type TrainingRepository struct {
	mu   sync.RWMutex
	jobs map[string]domain.TrainingJob
}

func NewTrainingRepository() *TrainingRepository {
	return &TrainingRepository{jobs: make(map[string]domain.TrainingJob)}
}

func (r *TrainingRepository) Create(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("training job %s already exists", job.ID)
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *TrainingRepository) Update(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	job.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[job.ID]; ok && job.CreatedAt.IsZero() {
		job.CreatedAt = existing.CreatedAt
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *TrainingRepository) FindByID(ctx context.Context, id string) (*domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTrainingJobNotFound
	}
	return &job, nil
}

func (r *TrainingRepository) FindAll(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	r.mu.RLock()
	out := make([]domain.TrainingJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Environment != "" && job.Environment != filter.Environment {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
