package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinicalGym/domain"

	"github.com/redis/go-redis/v9"
)

var ErrProgressNotFound = errors.New("training progress not found")

type ProgressRepository struct {
	client *redis.Client
}

func NewProgressRepository(client *redis.Client) *ProgressRepository {
	return &ProgressRepository{
		client: client,
	}
}

func (r *ProgressRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// key format: "training:progress:{job_id}"
func progressKey(jobID string) string {
	return fmt.Sprintf("training:progress:%s", jobID)
}

func (r *ProgressRepository) SetProgress(ctx context.Context, p domain.TrainingProgress, ttl time.Duration) error {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal training progress: %w", err)
	}

	if err := r.client.Set(ctx, progressKey(p.JobID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store training progress in Redis: %w", err)
	}
	return nil
}

func (r *ProgressRepository) GetProgress(ctx context.Context, jobID string) (*domain.TrainingProgress, error) {
	val, err := r.client.Get(ctx, progressKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get training progress from Redis: %w", err)
	}

	var p domain.TrainingProgress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training progress: %w", err)
	}
	return &p, nil
}
