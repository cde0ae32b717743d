package workflows

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"clinicalGym/business/environment"
)

func seeded(seed int64) environment.Config {
	return environment.Config{Seed: &seed}
}

func TestRegisterAll(t *testing.T) {
	r := NewRegistry()
	want := []string{AlertTriageName, BedAllocationName, ClaimsRoutingName, EDTriageName, ORSchedulingName}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	if err := Register(r); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestWorkflowsDeterministicWithSeed(t *testing.T) {
	r := NewRegistry()
	for _, spec := range r.List() {
		t.Run(spec.Name, func(t *testing.T) {
			a, err := r.Make(spec.Name, seeded(42))
			if err != nil {
				t.Fatalf("Make: %v", err)
			}
			b, err := r.Make(spec.Name, seeded(42))
			if err != nil {
				t.Fatalf("Make: %v", err)
			}

			seed := int64(7)
			obsA, _, err := a.Reset(&seed)
			if err != nil {
				t.Fatalf("Reset: %v", err)
			}
			obsB, _, _ := b.Reset(&seed)
			if !reflect.DeepEqual(obsA, obsB) {
				t.Fatalf("initial observations differ: %v vs %v", obsA, obsB)
			}

			n := a.ActionSpace().N()
			for i := 0; i < spec.MaxSteps; i++ {
				ra, err := a.Step(i % n)
				if err != nil {
					t.Fatalf("Step a: %v", err)
				}
				rb, err := b.Step(i % n)
				if err != nil {
					t.Fatalf("Step b: %v", err)
				}
				if !reflect.DeepEqual(ra.Observation, rb.Observation) || ra.Reward != rb.Reward {
					t.Fatalf("step %d diverged: %+v vs %+v", i, ra, rb)
				}
				if ra.Terminated != rb.Terminated {
					t.Fatalf("step %d termination diverged", i)
				}
				if ra.Terminated {
					break
				}
			}
		})
	}
}

func TestWorkflowsStepContract(t *testing.T) {
	r := NewRegistry()
	for _, spec := range r.List() {
		t.Run(spec.Name, func(t *testing.T) {
			env, err := r.Make(spec.Name, seeded(3))
			if err != nil {
				t.Fatalf("Make: %v", err)
			}
			obs, _, err := env.Reset(nil)
			if err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if len(obs) != spec.ObservationSize {
				t.Fatalf("observation size = %d, want %d", len(obs), spec.ObservationSize)
			}
			if !reflect.DeepEqual(env.ActionLabels(), spec.ActionLabels) {
				t.Fatalf("labels = %v, want %v", env.ActionLabels(), spec.ActionLabels)
			}

			rng := rand.New(rand.NewSource(11))
			steps := 0
			for {
				res, err := env.Step(rng.Intn(env.ActionSpace().N()))
				if err != nil {
					t.Fatalf("Step: %v", err)
				}
				steps++
				if len(res.Observation) != spec.ObservationSize {
					t.Fatalf("step %d observation size = %d", steps, len(res.Observation))
				}
				for _, c := range environment.AllRewardComponents {
					v, ok := res.Components[c]
					if !ok {
						t.Fatalf("step %d missing component %s", steps, c)
					}
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("step %d component %s not finite: %v", steps, c, v)
					}
				}
				if res.Terminated {
					break
				}
				if steps > spec.MaxSteps {
					t.Fatalf("did not terminate within %d steps", spec.MaxSteps)
				}
			}

			if got := env.KPIs().Timestamp; got != steps {
				t.Fatalf("KPI timestamp = %d, want %d", got, steps)
			}

			// stepping past the end stays quiet
			res, err := env.Step(0)
			if err != nil {
				t.Fatalf("Step after termination: %v", err)
			}
			if !res.Terminated || res.Reward != 0 {
				t.Fatalf("expected terminal no-op, got %+v", res)
			}
			if env.TimeStep() != steps {
				t.Fatalf("time step moved after termination: %d", env.TimeStep())
			}
		})
	}
}

func TestWorkflowsKPIsHaveNoSideEffects(t *testing.T) {
	r := NewRegistry()
	for _, spec := range r.List() {
		t.Run(spec.Name, func(t *testing.T) {
			probed, _ := r.Make(spec.Name, seeded(5))
			plain, _ := r.Make(spec.Name, seeded(5))
			if _, _, err := probed.Reset(nil); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if _, _, err := plain.Reset(nil); err != nil {
				t.Fatalf("Reset: %v", err)
			}

			for i := 0; i < 4; i++ {
				k1 := probed.KPIs()
				k2 := probed.KPIs()
				if !reflect.DeepEqual(k1, k2) {
					t.Fatalf("consecutive KPI snapshots differ: %+v vs %+v", k1, k2)
				}
				k1.ClinicalOutcomes["injected"] = 1

				a, err := probed.Step(1)
				if err != nil {
					t.Fatalf("Step: %v", err)
				}
				b, _ := plain.Step(1)
				if !reflect.DeepEqual(a.Observation, b.Observation) || a.Reward != b.Reward {
					t.Fatalf("KPI calls changed the trajectory at step %d", i)
				}
			}
			if _, ok := probed.KPIs().ClinicalOutcomes["injected"]; ok {
				t.Fatal("KPI snapshot aliases internal state")
			}
		})
	}
}

func TestHooksTolerateExhaustedWorkingSet(t *testing.T) {
	hooks := map[string]environment.Hooks{
		EDTriageName:      &EDTriage{numPatients: 0, maxSteps: 5},
		AlertTriageName:   &AlertTriage{maxSteps: 5},
		BedAllocationName: &BedAllocation{maxSteps: 5},
		ClaimsRoutingName: &ClaimsRouting{maxSteps: 5},
		ORSchedulingName:  &ORScheduling{maxSteps: 5},
	}
	for name, h := range hooks {
		t.Run(name, func(t *testing.T) {
			h.InitializeState(rand.New(rand.NewSource(1)))
			// drain whatever was generated
			for i := 0; i < 64; i++ {
				if _, err := h.ApplyAction(0); err != nil {
					t.Fatalf("ApplyAction: %v", err)
				}
			}

			info, err := h.ApplyAction(1)
			if err != nil {
				t.Fatalf("ApplyAction on empty set: %v", err)
			}
			if processed(info) {
				t.Fatal("expected an idle step")
			}
			comps := h.CalculateRewardComponents(h.StateFeatures(), 1, info)
			for _, c := range environment.AllRewardComponents {
				if comps[c] != 0 {
					t.Fatalf("component %s = %v on idle step", c, comps[c])
				}
			}
			if !h.IsDone(1) {
				t.Fatal("expected done once the working set is empty")
			}
			if len(h.StateFeatures()) != h.ObservationSize() {
				t.Fatal("observation shape changed on empty set")
			}
			h.KPIs()
			h.Summary()
		})
	}
}

func TestEDTriageFifteenPatientEpisode(t *testing.T) {
	env, err := NewEDTriage(seeded(99))
	if err != nil {
		t.Fatalf("NewEDTriage: %v", err)
	}
	_, info, err := env.Reset(nil)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if info["pending"] != 15 {
		t.Fatalf("pending = %v, want 15", info["pending"])
	}

	for i := 1; i <= 15; i++ {
		res, err := env.Step(i % 5)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if res.Terminated != (i == 15) {
			t.Fatalf("step %d terminated = %v", i, res.Terminated)
		}
	}

	k := env.KPIs()
	if k.Timestamp != 15 {
		t.Fatalf("Timestamp = %d, want 15", k.Timestamp)
	}
	if k.OperationalEfficiency["backlog"] != 0 {
		t.Fatalf("backlog = %v, want 0", k.OperationalEfficiency["backlog"])
	}
	if k.OperationalEfficiency["patients_triaged"] != 15 {
		t.Fatalf("patients_triaged = %v", k.OperationalEfficiency["patients_triaged"])
	}
	if env.Status() != environment.StatusTerminated {
		t.Fatalf("status = %s", env.Status())
	}
}

func TestEDTriageUnderTriagePenalised(t *testing.T) {
	h := &EDTriage{numPatients: 1, maxSteps: 1}
	h.InitializeState(rand.New(rand.NewSource(1)))
	h.queue[0] = edPatient{acuity: 0, wait: 0, instability: 0.5}

	info, err := h.ApplyAction(2)
	if err != nil {
		t.Fatalf("ApplyAction: %v", err)
	}
	c := h.CalculateRewardComponents(h.StateFeatures(), 2, info)
	if got := c[environment.RiskPenalty]; math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("risk penalty = %v, want 1.5", got)
	}
	if c[environment.CompliancePenalty] != 1 {
		t.Fatalf("compliance penalty = %v, want 1", c[environment.CompliancePenalty])
	}
	if got := c[environment.Clinical]; math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("clinical = %v, want 0.5", got)
	}
}

func TestBedAllocationBoardsWhenFull(t *testing.T) {
	h := &BedAllocation{maxSteps: 10}
	h.InitializeState(rand.New(rand.NewSource(1)))
	h.queue = []admission{{acuity: 0.9, los: 3}, {acuity: 0.9, los: 3}}
	h.capacity[0] = 1
	h.occupied[0] = 0

	first, _ := h.ApplyAction(0)
	if first["boarded"] != false {
		t.Fatalf("first admission should be placed: %v", first)
	}
	second, _ := h.ApplyAction(0)
	if second["boarded"] != true {
		t.Fatalf("second admission should board: %v", second)
	}
	c := h.CalculateRewardComponents(nil, 0, second)
	if c[environment.RiskPenalty] <= 0 {
		t.Fatal("boarding should carry a risk penalty")
	}
}

func TestClaimsRoutingExpectedRoute(t *testing.T) {
	cases := []struct {
		c    claim
		want int
	}{
		{claim{fraudRisk: 0.9, docsComplete: true}, claimDeny},
		{claim{fraudRisk: 0.1, docsComplete: false}, claimRequestInfo},
		{claim{amount: 8000, docsComplete: true}, claimReview},
		{claim{complexity: 0.7, docsComplete: true}, claimReview},
		{claim{amount: 200, complexity: 0.1, docsComplete: true}, claimAuto},
	}
	for _, tc := range cases {
		if got := tc.c.expectedRoute(); got != tc.want {
			t.Errorf("expectedRoute(%+v) = %s, want %s", tc.c, claimsRoutingLabels[got], claimsRoutingLabels[tc.want])
		}
	}
}

func TestORSchedulingOverbookSpillsIntoOvertime(t *testing.T) {
	h := &ORScheduling{maxSteps: 10}
	h.InitializeState(rand.New(rand.NewSource(1)))
	h.slack = 30
	h.conflicts = []bookingConflict{{priorityA: 0.5, priorityB: 0.4, duration: 150}}

	info, _ := h.ApplyAction(orOverbook)
	if got := info["overtime_minutes"].(float64); got != 120 {
		t.Fatalf("overtime = %v, want 120", got)
	}
	c := h.CalculateRewardComponents(nil, orOverbook, info)
	if got := c[environment.CompliancePenalty]; got != 1 {
		t.Fatalf("compliance penalty = %v, want 1", got)
	}
	if h.slack != 0 {
		t.Fatalf("slack = %v, want 0", h.slack)
	}
}

func TestWorkingSetParamsAreBounded(t *testing.T) {
	tests := []struct {
		name   string
		make   func(environment.Config) (*environment.Env, error)
		param  string
		value  float64
		wantOK bool
	}{
		{"ed at limit", NewEDTriage, "num_patients", edMaxPatients, true},
		{"ed above limit", NewEDTriage, "num_patients", edMaxPatients + 1, false},
		{"ed huge", NewEDTriage, "num_patients", 3e9, false},
		{"ed overflow", NewEDTriage, "num_patients", 1e19, false},
		{"ed fractional", NewEDTriage, "num_patients", 2.5, false},
		{"ed zero", NewEDTriage, "num_patients", 0, false},
		{"ed nan", NewEDTriage, "num_patients", math.NaN(), false},
		{"alerts small", NewAlertTriage, "num_alerts", 3, true},
		{"alerts inf", NewAlertTriage, "num_alerts", math.Inf(1), false},
		{"alerts negative", NewAlertTriage, "num_alerts", -4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := seeded(1)
			cfg.Params = map[string]float64{tt.param: tt.value}
			env, err := tt.make(cfg)
			if !tt.wantOK {
				if !errors.Is(err, environment.ErrInvalidParam) {
					t.Fatalf("expected ErrInvalidParam, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("make: %v", err)
			}
			if _, _, err := env.Reset(nil); err != nil {
				t.Fatalf("Reset: %v", err)
			}
		})
	}
}

func TestAlertTriageHorizonFollowsFixedCount(t *testing.T) {
	cfg := seeded(2)
	cfg.Params = map[string]float64{"num_alerts": 30}
	env, err := NewAlertTriage(cfg)
	if err != nil {
		t.Fatalf("NewAlertTriage: %v", err)
	}
	if _, _, err := env.Reset(nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	steps := 0
	for {
		res, err := env.Step(1)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		steps++
		if res.Terminated {
			break
		}
	}
	if steps != 30 {
		t.Fatalf("episode ran %d steps, want 30", steps)
	}
}
