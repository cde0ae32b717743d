package environment

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// queueHooks is a minimal working-set environment used to exercise the lifecycle.
type queueHooks struct {
	size      int
	items     []float64
	rng       *rand.Rand
	processed int
	applyErr  error
	dropKey   RewardComponent
	badShape  bool
}

func (h *queueHooks) InitializeState(rng *rand.Rand) Observation {
	h.rng = rng
	h.processed = 0
	h.items = make([]float64, h.size)
	for i := range h.items {
		h.items[i] = rng.Float64()
	}
	return h.StateFeatures()
}

func (h *queueHooks) StateFeatures() Observation {
	if h.badShape {
		return Observation{1}
	}
	head := 0.0
	if len(h.items) > 0 {
		head = h.items[0]
	}
	return Observation{float64(len(h.items)), head}
}

func (h *queueHooks) ApplyAction(action int) (Info, error) {
	if h.applyErr != nil {
		return nil, h.applyErr
	}
	if len(h.items) == 0 {
		return Info{"processed": false}, nil
	}
	v := h.items[0]
	h.items = h.items[1:]
	h.processed++
	return Info{"processed": true, "value": v, "action": action}, nil
}

func (h *queueHooks) CalculateRewardComponents(_ Observation, action int, info Info) map[RewardComponent]float64 {
	out := ZeroComponents()
	if v, ok := info["value"].(float64); ok {
		out[Clinical] = v
		out[RiskPenalty] = float64(action) * 0.1
	}
	if h.dropKey != "" {
		delete(out, h.dropKey)
	}
	return out
}

func (h *queueHooks) IsDone(stepsTaken int) bool {
	return len(h.items) == 0 || stepsTaken >= 100
}

func (h *queueHooks) KPIs() KPIMetrics {
	return KPIMetrics{
		ClinicalOutcomes:      map[string]float64{"processed": float64(h.processed)},
		OperationalEfficiency: map[string]float64{"backlog": float64(len(h.items))},
		FinancialMetrics:      map[string]float64{},
		PatientSatisfaction:   SafeRatio(float64(h.processed), float64(h.size)),
	}
}

func (h *queueHooks) Summary() map[string]any {
	return map[string]any{"processed": h.processed}
}

func (h *queueHooks) ActionLabels() []string {
	return []string{"low", "mid", "high"}
}

func (h *queueHooks) ObservationSize() int {
	return 2
}

func (h *queueHooks) ResetInfo() Info {
	return Info{"pending": len(h.items)}
}

func newQueueEnv(t *testing.T, size int, opts ...Option) (*Env, *queueHooks) {
	t.Helper()
	h := &queueHooks{size: size}
	env, err := New("queue", h, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env, h
}

func seed(v int64) *int64 {
	return &v
}

func TestAggregateRewardSubtractsPenalties(t *testing.T) {
	components := map[RewardComponent]float64{
		Clinical:            1,
		Efficiency:          1,
		Financial:           1,
		PatientSatisfaction: 1,
		RiskPenalty:         0.3,
		CompliancePenalty:   0.2,
	}

	got, err := AggregateReward(components, DefaultRewardWeights())
	if err != nil {
		t.Fatalf("AggregateReward: %v", err)
	}
	if math.Abs(got-3.5) > 1e-12 {
		t.Fatalf("expected 3.5, got %v", got)
	}
}

func TestAggregateRewardAppliesWeights(t *testing.T) {
	components := ZeroComponents()
	components[Financial] = 2
	components[CompliancePenalty] = 1

	weights, err := DefaultRewardWeights().Merge(RewardWeights{Financial: 0.5, CompliancePenalty: 3})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got, err := AggregateReward(components, weights)
	if err != nil {
		t.Fatalf("AggregateReward: %v", err)
	}
	if math.Abs(got-(1-3)) > 1e-12 {
		t.Fatalf("expected -2, got %v", got)
	}
}

func TestAggregateRewardRejectsIncompleteOrNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[RewardComponent]float64)
		want   error
	}{
		{"missing", func(m map[RewardComponent]float64) { delete(m, PatientSatisfaction) }, ErrMissingRewardComponent},
		{"nan", func(m map[RewardComponent]float64) { m[Clinical] = math.NaN() }, ErrNonFiniteRewardComponent},
		{"inf", func(m map[RewardComponent]float64) { m[RiskPenalty] = math.Inf(1) }, ErrNonFiniteRewardComponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components := ZeroComponents()
			tt.mutate(components)
			if _, err := AggregateReward(components, DefaultRewardWeights()); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMergeRejectsBadWeights(t *testing.T) {
	if _, err := DefaultRewardWeights().Merge(RewardWeights{Clinical: -1}); !errors.Is(err, ErrNegativeWeight) {
		t.Fatalf("expected ErrNegativeWeight, got %v", err)
	}
	if _, err := DefaultRewardWeights().Merge(RewardWeights{"bogus": 1}); !errors.Is(err, ErrUnknownRewardComponent) {
		t.Fatal("expected unknown component error")
	}
	if _, err := New("queue", &queueHooks{size: 1}, WithRewardWeights(RewardWeights{Efficiency: -0.1})); !errors.Is(err, ErrNegativeWeight) {
		t.Fatalf("expected New to reject weights, got %v", err)
	}
}

func TestStepBeforeResetFails(t *testing.T) {
	env, _ := newQueueEnv(t, 3)
	if _, err := env.Step(0); !errors.Is(err, ErrNotReset) {
		t.Fatalf("expected ErrNotReset, got %v", err)
	}
}

func TestStepRejectsInvalidAction(t *testing.T) {
	env, _ := newQueueEnv(t, 3, WithSeed(1))
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	for _, a := range []int{-1, 3, 42} {
		if _, err := env.Step(a); !errors.Is(err, ErrInvalidAction) {
			t.Fatalf("action %d: expected ErrInvalidAction, got %v", a, err)
		}
	}
	if env.TimeStep() != 0 {
		t.Fatalf("invalid actions must not advance the step counter, got %d", env.TimeStep())
	}
}

func TestResetInfoAndRepeatability(t *testing.T) {
	env, _ := newQueueEnv(t, 4)

	obs, info, err := env.Reset(seed(7))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if info["pending"] != 4 {
		t.Fatalf("expected pending=4, got %v", info["pending"])
	}
	if _, err := env.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}

	again, _, err := env.Reset(seed(7))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if env.TimeStep() != 0 || env.Status() != StatusActive {
		t.Fatalf("reset must clear episode state, step=%d status=%s", env.TimeStep(), env.Status())
	}
	for i := range obs {
		if obs[i] != again[i] {
			t.Fatalf("same seed produced different observation: %v vs %v", obs, again)
		}
	}
}

func TestDeterministicTrajectory(t *testing.T) {
	run := func() ([]float64, []Observation) {
		env, _ := newQueueEnv(t, 6)
		obs, _, err := env.Reset(seed(99))
		if err != nil {
			t.Fatalf("Reset: %v", err)
		}
		rewards := []float64{}
		observations := []Observation{obs}
		for i := 0; i < 6; i++ {
			res, err := env.Step(env.ActionSpace().Sample())
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			rewards = append(rewards, res.Reward)
			observations = append(observations, res.Observation)
		}
		return rewards, observations
	}

	r1, o1 := run()
	r2, o2 := run()
	for i := range r1 {
		if r1[i] != r2[i] {
			t.Fatalf("reward %d differs: %v vs %v", i, r1[i], r2[i])
		}
	}
	for i := range o1 {
		for j := range o1[i] {
			if o1[i][j] != o2[i][j] {
				t.Fatalf("observation %d differs: %v vs %v", i, o1[i], o2[i])
			}
		}
	}
}

func TestStepAfterTerminationIsNoOp(t *testing.T) {
	env, _ := newQueueEnv(t, 2, WithSeed(3))
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	var last StepResult
	for i := 0; i < 2; i++ {
		res, err := env.Step(1)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		last = res
	}
	if !last.Terminated {
		t.Fatal("expected termination once the working set is empty")
	}

	res, err := env.Step(2)
	if err != nil {
		t.Fatalf("Step after termination: %v", err)
	}
	if !res.Terminated || res.Reward != 0 || res.Truncated {
		t.Fatalf("unexpected terminal result: %+v", res)
	}
	if len(res.Components) != len(AllRewardComponents) {
		t.Fatalf("expected all components, got %v", res.Components)
	}
	if env.TimeStep() != 2 {
		t.Fatalf("no-op step must not advance the counter, got %d", env.TimeStep())
	}
	if res.Info["terminal"] != true {
		t.Fatalf("expected terminal info, got %v", res.Info)
	}
}

func TestStrictTerminationFails(t *testing.T) {
	env, _ := newQueueEnv(t, 1, WithSeed(3), WithStrictTermination())
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := env.Step(0); !errors.Is(err, ErrEpisodeTerminated) {
		t.Fatalf("expected ErrEpisodeTerminated, got %v", err)
	}
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.Step(0); err != nil {
		t.Fatalf("reset must reactivate the episode: %v", err)
	}
}

func TestHookErrorsPropagateUnmodified(t *testing.T) {
	boom := errors.New("boom")
	env, h := newQueueEnv(t, 3, WithSeed(1))
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	h.applyErr = boom

	if _, err := env.Step(0); err != boom {
		t.Fatalf("expected the hook error itself, got %v", err)
	}
	h.applyErr = nil
	if _, err := env.Step(0); !errors.Is(err, ErrNotReset) {
		t.Fatalf("expected ErrNotReset after a failed step, got %v", err)
	}
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.Step(0); err != nil {
		t.Fatalf("Step after Reset: %v", err)
	}
}

func TestMissingComponentFailsStep(t *testing.T) {
	env, h := newQueueEnv(t, 3, WithSeed(1))
	h.dropKey = CompliancePenalty
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.Step(0); !errors.Is(err, ErrMissingRewardComponent) {
		t.Fatalf("expected ErrMissingRewardComponent, got %v", err)
	}
	if got := env.KPIs().Timestamp; got != 0 {
		t.Fatalf("failed step advanced the counter to %d", got)
	}
	if env.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", env.Status())
	}
	if _, err := env.Step(1); !errors.Is(err, ErrNotReset) {
		t.Fatalf("expected ErrNotReset, got %v", err)
	}
}

func TestObservationShapeIsEnforced(t *testing.T) {
	h := &queueHooks{size: 2, badShape: true}
	env, err := New("queue", h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := env.Reset(nil); !errors.Is(err, ErrObservationShape) {
		t.Fatalf("expected ErrObservationShape, got %v", err)
	}
}

func TestKPIsAreStampedAndSideEffectFree(t *testing.T) {
	env, _ := newQueueEnv(t, 5, WithSeed(11))
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	before := env.KPIs()
	if before.Timestamp != 0 || before.OperationalEfficiency["backlog"] != 5 {
		t.Fatalf("unexpected initial KPIs: %+v", before)
	}

	for i := 0; i < 3; i++ {
		if _, err := env.Step(0); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	a := env.KPIs()
	a.ClinicalOutcomes["processed"] = 1000
	b := env.KPIs()
	if b.Timestamp != 3 || b.ClinicalOutcomes["processed"] != 3 {
		t.Fatalf("KPIs were mutated or mis-stamped: %+v", b)
	}
	if env.TimeStep() != 3 {
		t.Fatalf("KPIs must not advance the step counter, got %d", env.TimeStep())
	}
}

func TestDiscreteSpace(t *testing.T) {
	space := NewDiscrete(4, rand.New(rand.NewSource(1)))
	for i := 0; i < 200; i++ {
		if a := space.Sample(); !space.Contains(a) {
			t.Fatalf("sample %d outside space", a)
		}
	}
	if space.Contains(4) || space.Contains(-1) {
		t.Fatal("Contains accepted out-of-range action")
	}
}
