package environment

import (
	"fmt"
	"math/rand"
)

// Discrete is the action space {0, ..., n-1}. Sample draws from the owning
// environment's random source, so a seeded environment samples deterministically.
type Discrete struct {
	n   int
	rng *rand.Rand
}

func NewDiscrete(n int, rng *rand.Rand) Discrete {
	return Discrete{n: n, rng: rng}
}

func (d Discrete) N() int {
	return d.n
}

func (d Discrete) Contains(action int) bool {
	return action >= 0 && action < d.n
}

// Validate returns ErrInvalidAction when action is out of range.
func (d Discrete) Validate(action int) error {
	if !d.Contains(action) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, action, d.n)
	}
	return nil
}

func (d Discrete) Sample() int {
	if d.n <= 0 {
		return 0
	}
	if d.rng == nil {
		return rand.Intn(d.n)
	}
	return d.rng.Intn(d.n)
}
