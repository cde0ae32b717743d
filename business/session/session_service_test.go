package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
	"clinicalGym/business/workflows"

	"github.com/go-playground/validator/v10"
)

func newTestService(cfg Config) *SessionService {
	return NewSessionService(workflows.NewRegistry(), validator.New(), cfg)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestService(Config{})
	ctx := context.Background()
	seed := int64(4)

	v, err := s.Create(ctx, CreateSessionRequest{Environment: workflows.EDTriageName, Seed: &seed})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Status != environment.StatusIdle || len(v.ActionLabels) != 5 {
		t.Fatalf("unexpected view: %+v", v)
	}

	if _, err := s.Step(ctx, v.ID, 0); !errors.Is(err, environment.ErrNotReset) {
		t.Fatalf("expected ErrNotReset, got %v", err)
	}

	r, err := s.Reset(ctx, v.ID, nil)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(r.Observation) != 6 || r.Info["pending"] != 15 {
		t.Fatalf("unexpected reset: %+v", r)
	}

	total := 0.0
	for i := 0; i < 15; i++ {
		res, err := s.Step(ctx, v.ID, 2)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		total += res.Reward
	}

	k, err := s.KPIs(ctx, v.ID)
	if err != nil {
		t.Fatalf("KPIs: %v", err)
	}
	if k.Timestamp != 15 {
		t.Fatalf("timestamp = %d, want 15", k.Timestamp)
	}

	sum, err := s.Summary(ctx, v.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum["status"] != string(environment.StatusTerminated) || sum["episode_reward"] != total {
		t.Fatalf("unexpected summary: %v", sum)
	}

	if err := s.Delete(ctx, v.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, v.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := s.Delete(ctx, v.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestCreateRejectsBadRequests(t *testing.T) {
	s := newTestService(Config{})
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateSessionRequest{}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := s.Create(ctx, CreateSessionRequest{Environment: "nope"}); !errors.Is(err, registry.ErrEnvironmentNotFound) {
		t.Fatalf("expected ErrEnvironmentNotFound, got %v", err)
	}
	w := map[string]float64{"financial": -2}
	if _, err := s.Create(ctx, CreateSessionRequest{Environment: workflows.AlertTriageName, Weights: w}); !errors.Is(err, environment.ErrNegativeWeight) {
		t.Fatalf("expected ErrNegativeWeight, got %v", err)
	}
	huge := map[string]float64{"num_patients": 3e9}
	if _, err := s.Create(ctx, CreateSessionRequest{Environment: workflows.EDTriageName, Params: huge}); !errors.Is(err, environment.ErrInvalidParam) {
		t.Fatalf("expected ErrInvalidParam, got %v", err)
	}
	if n := len(s.sessions); n != 0 {
		t.Fatalf("rejected requests left %d sessions behind", n)
	}
}

func TestStrictTerminationSession(t *testing.T) {
	s := newTestService(Config{})
	ctx := context.Background()

	v, err := s.Create(ctx, CreateSessionRequest{
		Environment:       workflows.EDTriageName,
		Params:            map[string]float64{"num_patients": 2},
		StrictTermination: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Reset(ctx, v.ID, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Step(ctx, v.ID, 1); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if _, err := s.Step(ctx, v.ID, 1); !errors.Is(err, environment.ErrEpisodeTerminated) {
		t.Fatalf("expected ErrEpisodeTerminated, got %v", err)
	}
}

func TestSessionLimitAndSweep(t *testing.T) {
	s := newTestService(Config{MaxSessions: 2, TTL: time.Minute})
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	a, _ := s.Create(ctx, CreateSessionRequest{Environment: workflows.BedAllocationName})
	if _, err := s.Create(ctx, CreateSessionRequest{Environment: workflows.BedAllocationName}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, CreateSessionRequest{Environment: workflows.BedAllocationName}); !errors.Is(err, ErrSessionLimit) {
		t.Fatalf("expected ErrSessionLimit, got %v", err)
	}

	now = now.Add(45 * time.Second)
	if _, err := s.Reset(ctx, a.ID, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	now = now.Add(30 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, err := s.Get(ctx, a.ID); err != nil {
		t.Fatalf("recently used session was swept: %v", err)
	}
}

func TestConcurrentStepsAreSerialized(t *testing.T) {
	s := newTestService(Config{})
	ctx := context.Background()
	v, _ := s.Create(ctx, CreateSessionRequest{Environment: workflows.ClaimsRoutingName, MaxSteps: 1000})
	r, err := s.Reset(ctx, v.ID, nil)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	pending := r.Info["pending"].(int)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := s.Step(ctx, v.ID, 0); err != nil {
					t.Errorf("Step: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, v.ID)
	if got.TimeStep != pending {
		t.Fatalf("time step = %d, want %d", got.TimeStep, pending)
	}
}
