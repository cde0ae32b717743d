package policy

import (
	"context"
	"math"

	"clinicalGym/business/environment"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

const defaultTemperature = 0.5

// Softmax is a context-free bandit: it keeps a running mean reward per action
// and samples actions from a Boltzmann distribution over those means.
type Softmax struct {
	temperature float64
	values      []float64
	counts      []int
	src         rand.Source
}

func NewSoftmax(n int, temperature float64, seed *int64) *Softmax {
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Softmax{
		temperature: temperature,
		values:      make([]float64, n),
		counts:      make([]int, n),
		src:         newSource(seed),
	}
}

func (s *Softmax) Name() string {
	return KindSoftmax
}

func (s *Softmax) SelectAction(ctx context.Context, _ environment.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	i, ok := sampleuv.NewWeighted(s.Probabilities(), s.src).Take()
	if !ok {
		return 0, ErrNoActions
	}
	return i, nil
}

// Observe folds the reward into the action's running mean.
func (s *Softmax) Observe(action int, reward float64) {
	if action < 0 || action >= len(s.values) || math.IsNaN(reward) || math.IsInf(reward, 0) {
		return
	}
	s.counts[action]++
	s.values[action] += (reward - s.values[action]) / float64(s.counts[action])
}

// Probabilities returns the current selection distribution.
func (s *Softmax) Probabilities() []float64 {
	maxV := math.Inf(-1)
	for _, v := range s.values {
		maxV = math.Max(maxV, v)
	}

	weights := make([]float64, len(s.values))
	sum := 0.0
	for i, v := range s.values {
		// shift by the max so exp never overflows
		weights[i] = math.Exp((v - maxV) / s.temperature)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func (s *Softmax) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}
