// Package orchestrator runs several workflows side by side, each with its own
// environment instance and policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicalGym/business/environment"
	"clinicalGym/business/policy"
	"clinicalGym/business/training"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrDuplicateWorkflow = errors.New("workflow listed more than once")

type Environments interface {
	Make(name string, cfg environment.Config) (*environment.Env, error)
}

type WorkflowRequest struct {
	Environment string             `json:"environment" validate:"required"`
	Policy      string             `json:"policy" validate:"omitempty,oneof=random softmax linucb slm"`
	Episodes    int                `json:"episodes" validate:"omitempty,min=1,max=1000"`
	MaxSteps    int                `json:"max_steps" validate:"omitempty,min=1,max=100000"`
	Weights     map[string]float64 `json:"weights"`
}

type Request struct {
	Workflows []WorkflowRequest `json:"workflows" validate:"required,min=1,max=16,dive"`
	Seed      *int64            `json:"seed"`
}

type WorkflowResult struct {
	Environment string                 `json:"environment"`
	Policy      string                 `json:"policy"`
	Episodes    int                    `json:"episodes"`
	TotalSteps  int                    `json:"total_steps"`
	TotalReward float64                `json:"total_reward"`
	MeanReward  float64                `json:"mean_reward"`
	StdReward   float64                `json:"std_reward"`
	Rewards     []float64              `json:"rewards"`
	KPIs        environment.KPIMetrics `json:"kpis"`
}

type Result struct {
	ID          string           `json:"id"`
	Workflows   []WorkflowResult `json:"workflows"`
	TotalReward float64          `json:"total_reward"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    string           `json:"duration"`
}

type Orchestrator struct {
	envs        Environments
	policies    training.PolicyFactory
	validate    *validator.Validate
	parallelism int
}

func NewOrchestrator(envs Environments, policies training.PolicyFactory, validate *validator.Validate, parallelism int) *Orchestrator {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Orchestrator{
		envs:        envs,
		policies:    policies,
		validate:    validate,
		parallelism: parallelism,
	}
}

// Run drives every listed workflow concurrently. The first failure cancels the
// others and is returned. Results keep the order of the request.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(req.Workflows))
	for _, w := range req.Workflows {
		if seen[w.Environment] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorkflow, w.Environment)
		}
		seen[w.Environment] = true
	}

	started := time.Now()
	results := make([]WorkflowResult, len(req.Workflows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, w := range req.Workflows {
		var seed *int64
		if req.Seed != nil {
			v := *req.Seed + int64(i)*1000
			seed = &v
		}
		g.Go(func() error {
			res, err := o.runWorkflow(gctx, w, seed)
			if err != nil {
				return fmt.Errorf("%s: %w", w.Environment, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		ID:        uuid.NewString(),
		Workflows: results,
		StartedAt: started,
		Duration:  time.Since(started).String(),
	}
	for _, r := range results {
		out.TotalReward += r.TotalReward
	}
	logger.Info("orchestration finished",
		"orchestration_id", out.ID,
		"workflows", len(results),
		"total_reward", out.TotalReward,
	)
	return out, nil
}

func (o *Orchestrator) runWorkflow(ctx context.Context, w WorkflowRequest, seed *int64) (WorkflowResult, error) {
	weights, err := environment.ParseWeights(w.Weights)
	if err != nil {
		return WorkflowResult{}, err
	}
	env, err := o.envs.Make(w.Environment, environment.Config{
		Seed:     seed,
		MaxSteps: w.MaxSteps,
		Weights:  weights,
	})
	if err != nil {
		return WorkflowResult{}, err
	}

	kind := w.Policy
	if kind == "" {
		kind = policy.KindRandom
	}
	p, err := o.policies(kind, env.ActionLabels(), seed)
	if err != nil {
		return WorkflowResult{}, err
	}

	episodes := w.Episodes
	if episodes <= 0 {
		episodes = 1
	}

	res := WorkflowResult{
		Environment: w.Environment,
		Policy:      p.Name(),
		Rewards:     make([]float64, 0, episodes),
	}
	for ep := 0; ep < episodes; ep++ {
		var epSeed *int64
		if seed != nil {
			v := *seed + int64(ep)
			epSeed = &v
		}
		r, err := training.RunEpisode(ctx, env, p, epSeed, 0)
		if err != nil {
			metrics.EpisodesTotal.WithLabelValues(w.Environment, "error").Inc()
			return WorkflowResult{}, err
		}
		metrics.EpisodesTotal.WithLabelValues(w.Environment, "ok").Inc()
		metrics.EpisodeReward.WithLabelValues(w.Environment).Observe(r.Reward)

		res.Rewards = append(res.Rewards, r.Reward)
		res.TotalReward += r.Reward
		res.TotalSteps += r.Steps
		res.KPIs = r.KPIs
	}
	res.Episodes = len(res.Rewards)
	res.MeanReward, res.StdReward, _, _ = training.RewardStats(res.Rewards)
	return res, nil
}
