// Package session keeps interactive environment instances alive between HTTP
// calls. Each session owns exactly one environment and serializes access to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("too many active sessions")
)

type Environments interface {
	Get(name string) (registry.Spec, error)
	Make(name string, cfg environment.Config) (*environment.Env, error)
}

type CreateSessionRequest struct {
	Environment       string             `json:"environment" validate:"required"`
	Seed              *int64             `json:"seed"`
	MaxSteps          int                `json:"max_steps" validate:"omitempty,min=1,max=100000"`
	Weights           map[string]float64 `json:"weights"`
	Params            map[string]float64 `json:"params"`
	StrictTermination bool               `json:"strict_termination"`
}

type Session struct {
	mu          sync.Mutex
	id          string
	envName     string
	env         *environment.Env
	createdAt   time.Time
	lastUsed    time.Time
	episodes    int
	totalReward float64
}

// View is the externally visible state of a session.
type View struct {
	ID           string             `json:"id"`
	Environment  string             `json:"environment"`
	Status       environment.Status `json:"status"`
	TimeStep     int                `json:"time_step"`
	Episodes     int                `json:"episodes"`
	EpisodeTotal float64            `json:"episode_reward"`
	ActionLabels []string           `json:"action_labels"`
	CreatedAt    time.Time          `json:"created_at"`
	LastUsedAt   time.Time          `json:"last_used_at"`
}

type ResetResult struct {
	Observation environment.Observation `json:"observation"`
	Info        environment.Info        `json:"info"`
}

type Config struct {
	TTL         time.Duration
	MaxSessions int
}

type SessionService struct {
	envs     Environments
	validate *validator.Validate
	cfg      Config
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(envs Environments, validate *validator.Validate, cfg Config) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	return &SessionService{
		envs:     envs,
		validate: validate,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (View, error) {
	if err := ctx.Err(); err != nil {
		return View{}, fmt.Errorf("context error: %w", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return View{}, err
	}
	weights, err := environment.ParseWeights(req.Weights)
	if err != nil {
		return View{}, err
	}

	env, err := s.envs.Make(req.Environment, environment.Config{
		Seed:              req.Seed,
		MaxSteps:          req.MaxSteps,
		Weights:           weights,
		Params:            req.Params,
		StrictTermination: req.StrictTermination,
	})
	if err != nil {
		return View{}, err
	}

	now := s.now()
	sess := &Session{
		id:        uuid.NewString(),
		envName:   req.Environment,
		env:       env,
		createdAt: now,
		lastUsed:  now,
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return View{}, ErrSessionLimit
	}
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	logger.Debug("session created", "session_id", sess.id, "environment", req.Environment)
	return sess.view(), nil
}

func (s *SessionService) Get(ctx context.Context, id string) (View, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *SessionService) Reset(ctx context.Context, id string, seed *int64) (ResetResult, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return ResetResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	obs, info, err := sess.env.Reset(seed)
	if err != nil {
		return ResetResult{}, err
	}
	sess.episodes++
	sess.totalReward = 0
	sess.lastUsed = s.now()
	return ResetResult{Observation: obs, Info: info}, nil
}

func (s *SessionService) Step(ctx context.Context, id string, action int) (environment.StepResult, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return environment.StepResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	res, err := sess.env.Step(action)
	if err != nil {
		return environment.StepResult{}, err
	}
	sess.totalReward += res.Reward
	sess.lastUsed = s.now()
	metrics.EnvSteps.WithLabelValues(sess.envName).Inc()
	return res, nil
}

func (s *SessionService) KPIs(ctx context.Context, id string) (environment.KPIMetrics, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return environment.KPIMetrics{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.env.KPIs(), nil
}

func (s *SessionService) Summary(ctx context.Context, id string) (map[string]any, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := sess.env.EpisodeSummary()
	out["episode_reward"] = sess.totalReward
	out["episodes"] = sess.episodes
	return out, nil
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(count))
	return nil
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
func (s *SessionService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// RunSweeper calls Sweep on every tick until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

func (s *SessionService) lookup(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// view must be called with sess.mu held or before the session is shared.
func (sess *Session) view() View {
	return View{
		ID:           sess.id,
		Environment:  sess.envName,
		Status:       sess.env.Status(),
		TimeStep:     sess.env.TimeStep(),
		Episodes:     sess.episodes,
		EpisodeTotal: sess.totalReward,
		ActionLabels: sess.env.ActionLabels(),
		CreatedAt:    sess.createdAt,
		LastUsedAt:   sess.lastUsed,
	}
}
