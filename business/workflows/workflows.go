// Package workflows holds the concrete healthcare workflow simulations. Each one
// implements environment.Hooks over its own working set and is registered by name
// in Register.
package workflows

import (
	"math"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

// Register adds every workflow in this package to r.
func Register(r *registry.Registry) error {
	specs := []registry.Spec{
		edTriageSpec(),
		alertTriageSpec(),
		bedAllocationSpec(),
		claimsRoutingSpec(),
		orSchedulingSpec(),
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry preloaded with every workflow.
func NewRegistry() *registry.Registry {
	r := registry.New()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// processed reports whether a step actually consumed a working-set item.
func processed(info environment.Info) bool {
	ok, _ := info["processed"].(bool)
	return ok
}

// idle is the info returned when an action arrives after the working set is empty.
func idle() environment.Info {
	return environment.Info{"processed": false}
}

func labelsCopy(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}
