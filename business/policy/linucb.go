package policy

import (
	"context"
	"math"

	"clinicalGym/business/environment"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultAlpha = 1.0
	// soft forgetting applied to every arm on each update
	linUCBDecay = 0.001
	// initial diagonal of A; keeps A invertible before any update
	linUCBPrior = 0.1
)

type linUCBArm struct {
	A     *mat.SymDense
	b     *mat.VecDense
	count int
}

// LinUCB is a contextual bandit that scores each action by its ridge
// regression estimate on the observation plus an uncertainty bonus:
//
//	score = theta·x + alpha * sqrt(x^T A^-1 x)
//
// The feature vector is the observation with a constant bias term appended.
type LinUCB struct {
	alpha float64
	arms  []*linUCBArm
	dim   int
	src   rand.Source
	rng   *rand.Rand

	lastX *mat.VecDense
}

func NewLinUCB(n int, alpha float64, seed *int64) *LinUCB {
	if alpha <= 0 {
		alpha = defaultAlpha
	}
	src := newSource(seed)
	return &LinUCB{
		alpha: alpha,
		arms:  make([]*linUCBArm, n),
		src:   src,
		rng:   rand.New(src),
	}
}

func (l *LinUCB) Name() string {
	return KindLinUCB
}

func (l *LinUCB) SelectAction(ctx context.Context, obs environment.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(l.arms) == 0 {
		return 0, ErrNoActions
	}

	x := l.features(obs)
	l.lastX = x

	best := math.Inf(-1)
	var ties []int
	for i, arm := range l.arms {
		s := l.score(arm, x)
		switch {
		case s > best+1e-12:
			best = s
			ties = append(ties[:0], i)
		case math.Abs(s-best) <= 1e-12:
			ties = append(ties, i)
		}
	}
	if len(ties) == 0 {
		return l.rng.Intn(len(l.arms)), nil
	}
	return ties[l.rng.Intn(len(ties))], nil
}

// Observe updates the chosen arm with the features seen at the last selection.
func (l *LinUCB) Observe(action int, reward float64) {
	if l.lastX == nil || action < 0 || action >= len(l.arms) || math.IsNaN(reward) || math.IsInf(reward, 0) {
		return
	}
	for _, arm := range l.arms {
		decay(arm)
	}
	arm := l.arms[action]
	arm.A.SymRankOne(arm.A, 1, l.lastX)
	arm.b.AddScaledVec(arm.b, reward, l.lastX)
	arm.count++
}

// Counts returns how often each action has been updated.
func (l *LinUCB) Counts() []int {
	out := make([]int, len(l.arms))
	for i, arm := range l.arms {
		if arm != nil {
			out[i] = arm.count
		}
	}
	return out
}

func (l *LinUCB) features(obs environment.Observation) *mat.VecDense {
	d := len(obs) + 1
	if d != l.dim {
		l.reset(d)
	}
	x := mat.NewVecDense(d, nil)
	for i, v := range obs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		x.SetVec(i, v)
	}
	x.SetVec(d-1, 1)
	return x
}

// reset rebuilds every arm for a new feature dimension.
func (l *LinUCB) reset(d int) {
	l.dim = d
	for i := range l.arms {
		A := mat.NewSymDense(d, nil)
		for j := 0; j < d; j++ {
			A.SetSym(j, j, linUCBPrior)
		}
		l.arms[i] = &linUCBArm{A: A, b: mat.NewVecDense(d, nil)}
	}
}

func (l *LinUCB) score(arm *linUCBArm, x *mat.VecDense) float64 {
	var chol mat.Cholesky
	if ok := chol.Factorize(arm.A); !ok {
		return math.Inf(1)
	}

	var theta, tmp mat.VecDense
	if err := chol.SolveVecTo(&theta, arm.b); err != nil {
		return math.Inf(1)
	}
	if err := chol.SolveVecTo(&tmp, x); err != nil {
		return math.Inf(1)
	}
	uncertainty := math.Sqrt(math.Max(mat.Dot(x, &tmp), 0))

	return mat.Dot(&theta, x) + l.alpha*uncertainty
}

func decay(arm *linUCBArm) {
	keep := 1.0 - linUCBDecay
	d := arm.b.Len()
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			arm.A.SetSym(i, j, arm.A.At(i, j)*keep)
		}
	}
	arm.b.ScaleVec(keep, arm.b)
}
