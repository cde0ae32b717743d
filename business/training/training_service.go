package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"clinicalGym/business/environment"
	"clinicalGym/business/policy"
	"clinicalGym/business/registry"
	"clinicalGym/domain"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrQueueFull      = errors.New("training queue is full")
	ErrJobFinished    = errors.New("training job already finished")
	ErrTooManyEpisode = errors.New("episode count exceeds the configured maximum")
	ErrServiceStopped = errors.New("training service is not running")
)

type JobRepository interface {
	Create(ctx context.Context, job *domain.TrainingJob) error
	Update(ctx context.Context, job *domain.TrainingJob) error
	FindByID(ctx context.Context, id string) (*domain.TrainingJob, error)
	FindAll(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error)
}

// ProgressCache holds short-lived progress snapshots for running jobs.
type ProgressCache interface {
	SetProgress(ctx context.Context, p domain.TrainingProgress, ttl time.Duration) error
	GetProgress(ctx context.Context, jobID string) (*domain.TrainingProgress, error)
}

// Notifier is told about every job that reaches a final status.
type Notifier interface {
	NotifyJobFinished(ctx context.Context, job domain.TrainingJob) error
}

type Environments interface {
	Get(name string) (registry.Spec, error)
	Make(name string, cfg environment.Config) (*environment.Env, error)
}

type PolicyFactory func(kind string, labels []string, seed *int64) (policy.Policy, error)

// DefaultPolicyFactory builds policies with the shared options, overriding the seed per job.
func DefaultPolicyFactory(opts policy.Options) PolicyFactory {
	return func(kind string, labels []string, seed *int64) (policy.Policy, error) {
		o := opts
		o.Seed = seed
		return policy.New(kind, labels, o)
	}
}

type Config struct {
	Workers       int
	QueueSize     int
	MaxEpisodes   int
	FailureCap    int
	ProgressEvery int
	ProgressTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxEpisodes <= 0 {
		c.MaxEpisodes = 10000
	}
	if c.FailureCap <= 0 {
		c.FailureCap = 5
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 10
	}
	if c.ProgressTTL <= 0 {
		c.ProgressTTL = time.Hour
	}
	return c
}

type CreateJobRequest struct {
	Environment string             `json:"environment" validate:"required"`
	Policy      string             `json:"policy" validate:"omitempty,oneof=random softmax linucb slm"`
	Episodes    int                `json:"episodes" validate:"required,min=1"`
	MaxSteps    int                `json:"max_steps" validate:"omitempty,min=1,max=100000"`
	Seed        *int64             `json:"seed"`
	Weights     map[string]float64 `json:"weights"`
}

type TrainingService struct {
	repo     JobRepository
	cache    ProgressCache
	envs     Environments
	policies PolicyFactory
	validate *validator.Validate
	cfg      Config
	notifier Notifier

	queue   chan string
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	running bool

	// queued jobs claimed by CancelJob; workers skip them
	withdrawn map[string]struct{}
}

// NewTrainingService wires the service. cache may be nil.
func NewTrainingService(repo JobRepository, cache ProgressCache, envs Environments, policies PolicyFactory, validate *validator.Validate, cfg Config) *TrainingService {
	cfg = cfg.withDefaults()
	return &TrainingService{
		repo:     repo,
		cache:    cache,
		envs:     envs,
		policies: policies,
		validate: validate,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		cancels:  make(map[string]context.CancelFunc),

		withdrawn: make(map[string]struct{}),
	}
}

// SetNotifier registers n to be called after each job finishes. Call before Start.
func (s *TrainingService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start launches the worker pool. Workers exit when ctx is cancelled or Stop is called.
func (s *TrainingService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	logger.Info("training workers started", "workers", s.cfg.Workers)
}

// Stop cancels running jobs and waits for the workers to drain.
func (s *TrainingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for _, cancel := range s.cancels {
		cancel()
	}
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("training workers stopped")
}

func (s *TrainingService) CreateJob(ctx context.Context, req CreateJobRequest, createdBy string) (*domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Episodes > s.cfg.MaxEpisodes {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyEpisode, req.Episodes, s.cfg.MaxEpisodes)
	}
	if _, err := s.envs.Get(req.Environment); err != nil {
		return nil, err
	}
	weights, err := environment.ParseWeights(req.Weights)
	if err != nil {
		return nil, err
	}
	if req.Policy == "" {
		req.Policy = policy.KindRandom
	}

	job := &domain.TrainingJob{
		ID:          uuid.NewString(),
		Environment: req.Environment,
		Policy:      req.Policy,
		Episodes:    req.Episodes,
		MaxSteps:    req.MaxSteps,
		Seed:        req.Seed,
		Status:      domain.TrainingQueued,
		CreatedBy:   createdBy,
		Weights:     weightsJSON(weights),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrServiceStopped
	}
	if len(s.queue) >= cap(s.queue) {
		return nil, ErrQueueFull
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.queue <- job.ID

	logger.Info("training job queued", "job_id", job.ID, "environment", job.Environment, "episodes", job.Episodes)
	return job, nil
}

func (s *TrainingService) GetJob(ctx context.Context, id string) (*domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	return s.repo.FindByID(ctx, id)
}

// GetProgress prefers the live snapshot and falls back to the stored job.
func (s *TrainingService) GetProgress(ctx context.Context, id string) (*domain.TrainingProgress, error) {
	if s.cache != nil {
		p, err := s.cache.GetProgress(ctx, id)
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil {
			logger.Debug("progress cache miss", "job_id", id, "error", err)
		}
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.TrainingProgress{
		JobID:             job.ID,
		Status:            job.Status,
		EpisodesCompleted: job.EpisodesCompleted,
		Episodes:          job.Episodes,
		MeanReward:        job.MeanReward,
		UpdatedAt:         job.UpdatedAt,
	}, nil
}

func (s *TrainingService) ListJobs(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.FindAll(ctx, filter)
}

// CancelJob stops a running job, or marks a queued one cancelled so no worker picks it up.
func (s *TrainingService) CancelJob(ctx context.Context, id string) (*domain.TrainingJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Finished() {
		return job, ErrJobFinished
	}

	// A worker registers in cancels and checks withdrawn under the same lock,
	// so exactly one of the two branches below owns the job.
	s.mu.Lock()
	cancel, running := s.cancels[id]
	if !running {
		s.withdrawn[id] = struct{}{}
	}
	s.mu.Unlock()
	if running {
		cancel()
		logger.Info("training job cancel requested", "job_id", id)
		return job, nil
	}

	// The worker may have run the job to completion since the first read.
	job, err = s.repo.FindByID(ctx, id)
	if err == nil && job.Status != domain.TrainingQueued {
		s.forget(id)
		if job.Status.Finished() {
			return job, ErrJobFinished
		}
		return job, nil
	}
	if err != nil {
		s.forget(id)
		return nil, err
	}

	now := time.Now()
	job.Status = domain.TrainingCancelled
	job.FinishedAt = &now
	if err := s.repo.Update(ctx, job); err != nil {
		s.forget(id)
		return nil, err
	}
	metrics.TrainingJobs.WithLabelValues(string(job.Status)).Inc()
	logger.Info("queued training job cancelled", "job_id", id)
	return job, nil
}

func (s *TrainingService) forget(id string) {
	s.mu.Lock()
	delete(s.withdrawn, id)
	s.mu.Unlock()
}

func (s *TrainingService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.queue:
			if !ok {
				return
			}
			s.process(ctx, id)
		}
	}
}

func (s *TrainingService) process(parent context.Context, id string) {
	// register before loading so a concurrent cancel always finds the job
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	if _, ok := s.withdrawn[id]; ok {
		delete(s.withdrawn, id)
		s.mu.Unlock()
		cancel()
		logger.Debug("skipping withdrawn training job", "job_id", id)
		return
	}
	s.cancels[id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
		cancel()
	}()

	job, err := s.repo.FindByID(parent, id)
	if err != nil {
		logger.Error("failed to load queued training job", "job_id", id, "error", err)
		return
	}
	if job.Status != domain.TrainingQueued {
		return
	}

	s.Run(ctx, job)
}

// Run executes a job synchronously and persists every state transition.
func (s *TrainingService) Run(ctx context.Context, job *domain.TrainingJob) {
	store := context.WithoutCancel(ctx)
	started := time.Now()
	job.Status = domain.TrainingRunning
	job.StartedAt = &started
	if err := s.repo.Update(store, job); err != nil {
		logger.Error("failed to mark training job running", "job_id", job.ID, "error", err)
		return
	}

	err := s.execute(ctx, job)

	finished := time.Now()
	job.FinishedAt = &finished
	switch {
	case err == nil:
		job.Status = domain.TrainingCompleted
	case errors.Is(err, context.Canceled):
		job.Status = domain.TrainingCancelled
	default:
		job.Status = domain.TrainingFailed
		job.Error = err.Error()
	}

	if uerr := s.repo.Update(store, job); uerr != nil {
		logger.Error("failed to persist training job", "job_id", job.ID, "error", uerr)
	}
	s.publish(store, job, 0)
	s.notify(store, job)

	metrics.TrainingJobs.WithLabelValues(string(job.Status)).Inc()
	metrics.TrainingJobDuration.Observe(finished.Sub(started).Seconds())
	logger.Info("training job finished",
		"job_id", job.ID,
		"status", job.Status,
		"episodes", job.EpisodesCompleted,
		"mean_reward", job.MeanReward,
	)
}

func (s *TrainingService) execute(ctx context.Context, job *domain.TrainingJob) error {
	weights, err := weightsFromJSON(job.Weights)
	if err != nil {
		return err
	}
	env, err := s.envs.Make(job.Environment, environment.Config{
		Seed:     job.Seed,
		MaxSteps: job.MaxSteps,
		Weights:  weights,
	})
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}
	p, err := s.policies(job.Policy, env.ActionLabels(), job.Seed)
	if err != nil {
		return fmt.Errorf("build policy: %w", err)
	}

	rewards := make([]float64, 0, job.Episodes)
	consecutive := 0
	var last *EpisodeResult

	for ep := 0; ep < job.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			s.summarise(job, rewards, last)
			return err
		}

		var seed *int64
		if job.Seed != nil {
			v := *job.Seed + int64(ep)
			seed = &v
		}

		res, err := RunEpisode(ctx, env, p, seed, 0)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.summarise(job, rewards, last)
				return err
			}
			job.FailedEpisodes++
			consecutive++
			metrics.EpisodesTotal.WithLabelValues(job.Environment, "error").Inc()
			logger.Warn("training episode failed", "job_id", job.ID, "episode", ep, "error", err)
			if consecutive >= s.cfg.FailureCap {
				s.summarise(job, rewards, last)
				return fmt.Errorf("aborted after %d consecutive failed episodes: %w", consecutive, err)
			}
			continue
		}

		consecutive = 0
		rewards = append(rewards, res.Reward)
		job.TotalSteps += res.Steps
		last = &res
		metrics.EpisodesTotal.WithLabelValues(job.Environment, "ok").Inc()
		metrics.EpisodeReward.WithLabelValues(job.Environment).Observe(res.Reward)

		if len(rewards)%s.cfg.ProgressEvery == 0 {
			s.summarise(job, rewards, last)
			s.publish(ctx, job, res.Reward)
		}
	}

	s.summarise(job, rewards, last)
	return nil
}

func (s *TrainingService) summarise(job *domain.TrainingJob, rewards []float64, last *EpisodeResult) {
	job.EpisodesCompleted = len(rewards)
	job.MeanReward, job.StdReward, job.MinReward, job.MaxReward = RewardStats(rewards)
	job.EpisodeRewards = datatypesRewards(rewards)
	if last != nil {
		if raw, err := json.Marshal(last.KPIs); err == nil {
			job.FinalKPIs = raw
		}
	}
}

func (s *TrainingService) publish(ctx context.Context, job *domain.TrainingJob, lastReward float64) {
	if s.cache == nil {
		return
	}
	p := domain.TrainingProgress{
		JobID:             job.ID,
		Status:            job.Status,
		EpisodesCompleted: job.EpisodesCompleted,
		Episodes:          job.Episodes,
		LastReward:        lastReward,
		MeanReward:        job.MeanReward,
		UpdatedAt:         time.Now(),
	}
	if err := s.cache.SetProgress(ctx, p, s.cfg.ProgressTTL); err != nil {
		logger.Warn("failed to cache training progress", "job_id", job.ID, "error", err)
	}
}

func (s *TrainingService) notify(ctx context.Context, job *domain.TrainingJob) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.notifier.NotifyJobFinished(ctx, *job); err != nil {
		logger.Warn("failed to send training job notification", "job_id", job.ID, "error", err)
	}
}

// RewardStats returns mean, sample standard deviation, min and max. An empty
// slice yields zeros and a single value has zero spread.
func RewardStats(rewards []float64) (mean, std, lo, hi float64) {
	switch len(rewards) {
	case 0:
		return 0, 0, 0, 0
	case 1:
		return rewards[0], 0, rewards[0], rewards[0]
	}
	mean, std = stat.MeanStdDev(rewards, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std, floats.Min(rewards), floats.Max(rewards)
}
