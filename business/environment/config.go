package environment

import (
	"fmt"
	"math"
)

// Config is what a registry factory receives when building an environment.
type Config struct {
	Seed              *int64
	MaxSteps          int
	Weights           RewardWeights
	Params            map[string]float64
	StrictTermination bool
}

// Options translates the generic parts of the config into constructor options.
func (c Config) Options() []Option {
	opts := make([]Option, 0, 3)
	if c.Seed != nil {
		opts = append(opts, WithSeed(*c.Seed))
	}
	if len(c.Weights) > 0 {
		opts = append(opts, WithRewardWeights(c.Weights))
	}
	if c.StrictTermination {
		opts = append(opts, WithStrictTermination())
	}
	return opts
}

// IntParam returns the named parameter as an int, or def when absent.
// Present values must be whole numbers in [1, max].
func (c Config) IntParam(name string, def, max int) (int, error) {
	v, ok := c.Params[name]
	if !ok {
		return def, nil
	}
	if math.IsNaN(v) || v != math.Trunc(v) || v < 1 || v > float64(max) {
		return 0, fmt.Errorf("%w: %s must be a whole number between 1 and %d, got %v", ErrInvalidParam, name, max, v)
	}
	return int(v), nil
}

// Horizon returns the configured max-step override, or def.
func (c Config) Horizon(def int) int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return def
}
