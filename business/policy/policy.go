// Package policy holds the action-selection strategies that drive workflow
// environments during training and orchestration runs.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicalGym/business/environment"

	"golang.org/x/exp/rand"
)

const (
	KindRandom  = "random"
	KindSoftmax = "softmax"
	KindSLM     = "slm"
	KindLinUCB  = "linucb"
)

var (
	ErrUnknownPolicy   = errors.New("unknown policy")
	ErrNoActions       = errors.New("policy needs at least one action")
	ErrMissingComplete = errors.New("slm policy requires a completion client")
)

// Policy picks the next action for an observation and learns from the reward it got.
type Policy interface {
	Name() string
	SelectAction(ctx context.Context, obs environment.Observation) (int, error)
	Observe(action int, reward float64)
}

type Options struct {
	Seed        *int64
	Temperature float64
	Alpha       float64
	Model       string
	Client      Completer
}

// New builds a policy of the given kind for an environment with the given action labels.
func New(kind string, labels []string, opts Options) (Policy, error) {
	if len(labels) == 0 {
		return nil, ErrNoActions
	}
	switch kind {
	case "", KindRandom:
		return NewRandom(len(labels), opts.Seed), nil
	case KindSoftmax:
		return NewSoftmax(len(labels), opts.Temperature, opts.Seed), nil
	case KindLinUCB:
		return NewLinUCB(len(labels), opts.Alpha, opts.Seed), nil
	case KindSLM:
		if opts.Client == nil {
			return nil, ErrMissingComplete
		}
		return NewSLM(opts.Client, opts.Model, labels, opts.Seed), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, kind)
	}
}

// Kinds lists every policy name New understands.
func Kinds() []string {
	return []string{KindRandom, KindSoftmax, KindLinUCB, KindSLM}
}

func newSource(seed *int64) rand.Source {
	if seed != nil {
		return rand.NewSource(uint64(*seed))
	}
	return rand.NewSource(uint64(time.Now().UnixNano()))
}
