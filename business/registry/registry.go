package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"clinicalGym/business/environment"
)

var (
	ErrEnvironmentExists   = errors.New("environment already registered")
	ErrEnvironmentNotFound = errors.New("environment not found")
)

// Factory builds a fresh environment instance. Every call must return an
// independent instance; instances are never shared between callers.
type Factory func(cfg environment.Config) (*environment.Env, error)

// Spec describes a registered workflow and how to build it.
type Spec struct {
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	ActionLabels    []string `json:"action_labels"`
	ObservationSize int      `json:"observation_size"`
	MaxSteps        int      `json:"max_steps"`
	Params          []string `json:"params,omitempty"`
	Factory         Factory  `json:"-"`
}

// Registry maps workflow names to factories. It is populated at startup through
// explicit Register calls.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

func New() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.New("environment name is required")
	}
	if spec.Factory == nil {
		return fmt.Errorf("environment %s: factory is required", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrEnvironmentExists, spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

func (r *Registry) Get(name string) (Spec, error) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	r.mu.RUnlock()

	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, name)
	}
	return spec, nil
}

// Make builds a new instance of the named environment.
func (r *Registry) Make(name string, cfg environment.Config) (*environment.Env, error) {
	spec, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return spec.Factory(cfg)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every spec, sorted by name.
func (r *Registry) List() []Spec {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(names))
	for _, name := range names {
		out = append(out, r.specs[name])
	}
	return out
}
