package policy

import (
	"context"

	"clinicalGym/business/environment"

	"golang.org/x/exp/rand"
)

// Random picks uniformly among the actions and ignores feedback.
type Random struct {
	n   int
	rng *rand.Rand
}

func NewRandom(n int, seed *int64) *Random {
	return &Random{n: n, rng: rand.New(newSource(seed))}
}

func (r *Random) Name() string {
	return KindRandom
}

func (r *Random) SelectAction(ctx context.Context, _ environment.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.rng.Intn(r.n), nil
}

func (r *Random) Observe(int, float64) {}
