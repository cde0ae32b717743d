// Package environment defines the episode lifecycle shared by every workflow
// simulation: reset, step, reward aggregation and KPI snapshots. Concrete
// workflows only supply the domain hooks.
package environment

import (
	"fmt"
	"math/rand"
	"time"
)

// Observation is the fixed-length feature vector describing the current state.
type Observation []float64

// Info carries auxiliary, environment-specific details about a reset or step.
type Info map[string]any

// Hooks is the domain half of an environment. Every method must stay total over
// an exhausted working set and return neutral values instead of failing.
type Hooks interface {
	// InitializeState builds a fresh working set and returns the first observation.
	// rng is owned by the environment and may be kept for later stochastic steps.
	InitializeState(rng *rand.Rand) Observation
	StateFeatures() Observation
	ApplyAction(action int) (Info, error)
	CalculateRewardComponents(obs Observation, action int, info Info) map[RewardComponent]float64
	// IsDone receives the number of actions applied in this episode, including the
	// one currently being processed.
	IsDone(stepsTaken int) bool
	KPIs() KPIMetrics
	Summary() map[string]any
	ActionLabels() []string
	ObservationSize() int
}

// ResetInfoer is implemented by hooks that report extra details on reset.
type ResetInfoer interface {
	ResetInfo() Info
}

type Status string

const (
	StatusIdle       Status = "idle"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

type StepResult struct {
	Observation Observation                 `json:"observation"`
	Reward      float64                     `json:"reward"`
	Components  map[RewardComponent]float64 `json:"components"`
	Terminated  bool                        `json:"terminated"`
	Truncated   bool                        `json:"truncated"`
	Info        Info                        `json:"info"`
}

// Env runs the episode lifecycle around a set of hooks. It is not safe for
// concurrent use; callers that share an Env must serialize access themselves.
type Env struct {
	name     string
	hooks    Hooks
	rng      *rand.Rand
	space    Discrete
	weights  RewardWeights
	strict   bool
	timeStep int
	status   Status
	lastObs  Observation
}

type Option func(*Env) error

// WithSeed seeds the environment's random source at construction.
func WithSeed(seed int64) Option {
	return func(e *Env) error {
		e.rng.Seed(seed)
		return nil
	}
}

// WithRewardWeights overrides a subset of the default weights.
func WithRewardWeights(overrides RewardWeights) Option {
	return func(e *Env) error {
		w, err := e.weights.Merge(overrides)
		if err != nil {
			return err
		}
		e.weights = w
		return nil
	}
}

// WithStrictTermination makes Step after termination fail with
// ErrEpisodeTerminated instead of returning the terminal state.
func WithStrictTermination() Option {
	return func(e *Env) error {
		e.strict = true
		return nil
	}
}

func New(name string, hooks Hooks, opts ...Option) (*Env, error) {
	if hooks == nil {
		return nil, fmt.Errorf("environment %s: hooks are required", name)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	e := &Env{
		name:    name,
		hooks:   hooks,
		rng:     rng,
		space:   NewDiscrete(len(hooks.ActionLabels()), rng),
		weights: DefaultRewardWeights(),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("environment %s: %w", name, err)
		}
	}
	return e, nil
}

func (e *Env) Name() string {
	return e.name
}

func (e *Env) ActionSpace() Discrete {
	return e.space
}

func (e *Env) ActionLabels() []string {
	labels := e.hooks.ActionLabels()
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

func (e *Env) ObservationSize() int {
	return e.hooks.ObservationSize()
}

func (e *Env) TimeStep() int {
	return e.timeStep
}

func (e *Env) Status() Status {
	return e.status
}

func (e *Env) Weights() RewardWeights {
	out := make(RewardWeights, len(e.weights))
	for k, v := range e.weights {
		out[k] = v
	}
	return out
}

// Reset starts a new episode. A non-nil seed reseeds the random source first, so
// the same seed yields the same working set and trajectory.
func (e *Env) Reset(seed *int64) (Observation, Info, error) {
	if seed != nil {
		e.rng.Seed(*seed)
	}
	e.timeStep = 0

	obs := e.hooks.InitializeState(e.rng)
	if err := e.checkShape(obs); err != nil {
		e.status = StatusIdle
		return nil, nil, err
	}

	info := Info{}
	if ri, ok := e.hooks.(ResetInfoer); ok {
		for k, v := range ri.ResetInfo() {
			info[k] = v
		}
	}

	e.lastObs = obs
	e.status = StatusActive
	return copyObservation(obs), info, nil
}

// Step applies one action. Once the episode has terminated, further steps are a
// no-op returning the terminal observation with zero reward, unless the
// environment was built WithStrictTermination.
//
// An invalid action leaves the episode untouched. Any later failure (a hook
// error, a bad observation or an unaggregatable reward) may already have
// consumed working-set state, so the episode is abandoned: the step counter is
// not advanced and further steps return ErrNotReset until Reset is called.
func (e *Env) Step(action int) (StepResult, error) {
	if err := e.space.Validate(action); err != nil {
		return StepResult{}, err
	}

	switch e.status {
	case StatusIdle:
		return StepResult{}, fmt.Errorf("%s: %w", e.name, ErrNotReset)
	case StatusTerminated:
		if e.strict {
			return StepResult{}, fmt.Errorf("%s: %w", e.name, ErrEpisodeTerminated)
		}
		return e.terminalResult(), nil
	}

	info, err := e.hooks.ApplyAction(action)
	if err != nil {
		e.abandon()
		return StepResult{}, err
	}
	if info == nil {
		info = Info{}
	}

	obs := e.hooks.StateFeatures()
	if err := e.checkShape(obs); err != nil {
		e.abandon()
		return StepResult{}, err
	}

	components := e.hooks.CalculateRewardComponents(obs, action, info)
	reward, err := AggregateReward(components, e.weights)
	if err != nil {
		e.abandon()
		return StepResult{}, fmt.Errorf("%s: %w", e.name, err)
	}

	terminated := e.hooks.IsDone(e.timeStep + 1)
	e.timeStep++
	e.lastObs = obs
	if terminated {
		e.status = StatusTerminated
	}

	return StepResult{
		Observation: copyObservation(obs),
		Reward:      reward,
		Components:  copyComponents(components),
		Terminated:  terminated,
		Truncated:   false,
		Info:        info,
	}, nil
}

// KPIs returns a fresh snapshot stamped with the current step counter.
func (e *Env) KPIs() KPIMetrics {
	k := e.hooks.KPIs().clone()
	k.Timestamp = e.timeStep
	return k
}

func (e *Env) EpisodeSummary() map[string]any {
	out := map[string]any{
		"environment": e.name,
		"time_step":   e.timeStep,
		"status":      string(e.status),
	}
	for k, v := range e.hooks.Summary() {
		out[k] = v
	}
	return out
}

func (e *Env) abandon() {
	e.status = StatusIdle
}

func (e *Env) terminalResult() StepResult {
	return StepResult{
		Observation: copyObservation(e.lastObs),
		Reward:      0,
		Components:  ZeroComponents(),
		Terminated:  true,
		Truncated:   false,
		Info:        Info{"terminal": true},
	}
}

func (e *Env) checkShape(obs Observation) error {
	if want := e.hooks.ObservationSize(); len(obs) != want {
		return fmt.Errorf("%s: %w: got %d, want %d", e.name, ErrObservationShape, len(obs), want)
	}
	return nil
}

func copyObservation(obs Observation) Observation {
	out := make(Observation, len(obs))
	copy(out, obs)
	return out
}

func copyComponents(in map[RewardComponent]float64) map[RewardComponent]float64 {
	out := make(map[RewardComponent]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
