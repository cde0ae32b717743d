package training

import (
	"context"
	"fmt"

	"clinicalGym/business/environment"
	"clinicalGym/business/policy"
	"clinicalGym/pkg/metrics"
)

// EpisodeResult summarises one reset-to-termination run.
type EpisodeResult struct {
	Reward     float64                                 `json:"reward"`
	Steps      int                                     `json:"steps"`
	Components map[environment.RewardComponent]float64 `json:"components"`
	KPIs       environment.KPIMetrics                  `json:"kpis"`
}

// RunEpisode resets env and drives it with p until it terminates or the step
// limit is hit. A panic inside the environment or the policy is returned as an
// error so one bad episode cannot take down the worker.
func RunEpisode(ctx context.Context, env *environment.Env, p policy.Policy, seed *int64, stepLimit int) (res EpisodeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("episode panicked: %v", r)
		}
	}()

	obs, _, err := env.Reset(seed)
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("reset %s: %w", env.Name(), err)
	}

	res.Components = environment.ZeroComponents()
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if stepLimit > 0 && res.Steps >= stepLimit {
			break
		}

		action, err := p.SelectAction(ctx, obs)
		if err != nil {
			return res, fmt.Errorf("select action: %w", err)
		}
		step, err := env.Step(action)
		if err != nil {
			return res, fmt.Errorf("step %s: %w", env.Name(), err)
		}
		metrics.EnvSteps.WithLabelValues(env.Name()).Inc()

		p.Observe(action, step.Reward)
		res.Reward += step.Reward
		res.Steps++
		for k, v := range step.Components {
			res.Components[k] += v
		}
		obs = step.Observation

		if step.Terminated || step.Truncated {
			break
		}
	}

	res.KPIs = env.KPIs()
	return res, nil
}
