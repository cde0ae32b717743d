package environment

import (
	"fmt"
	"math"
)

// RewardComponent is one category of the reward signal.
type RewardComponent string

const (
	Clinical            RewardComponent = "clinical"
	Efficiency          RewardComponent = "efficiency"
	Financial           RewardComponent = "financial"
	PatientSatisfaction RewardComponent = "patient_satisfaction"
	RiskPenalty         RewardComponent = "risk_penalty"
	CompliancePenalty   RewardComponent = "compliance_penalty"
)

// AllRewardComponents is the closed, ordered set every environment must score.
var AllRewardComponents = []RewardComponent{
	Clinical,
	Efficiency,
	Financial,
	PatientSatisfaction,
	RiskPenalty,
	CompliancePenalty,
}

// IsPenalty reports whether the component is subtracted during aggregation.
func (c RewardComponent) IsPenalty() bool {
	return c == RiskPenalty || c == CompliancePenalty
}

// Valid reports whether c belongs to the closed component set.
func (c RewardComponent) Valid() bool {
	for _, known := range AllRewardComponents {
		if c == known {
			return true
		}
	}
	return false
}

// RewardWeights maps each component to a non-negative weight. Penalty weights are
// the magnitude to subtract.
type RewardWeights map[RewardComponent]float64

const defaultComponentWeight = 1.0

func DefaultRewardWeights() RewardWeights {
	w := make(RewardWeights, len(AllRewardComponents))
	for _, c := range AllRewardComponents {
		w[c] = defaultComponentWeight
	}
	return w
}

// Merge returns a copy of w with the given overrides applied.
func (w RewardWeights) Merge(overrides RewardWeights) (RewardWeights, error) {
	out := make(RewardWeights, len(AllRewardComponents))
	for _, c := range AllRewardComponents {
		v, ok := w[c]
		if !ok {
			v = defaultComponentWeight
		}
		out[c] = v
	}
	for c, v := range overrides {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRewardComponent, c)
		}
		out[c] = v
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseWeights converts name-keyed overrides, as they arrive from JSON, into
// validated RewardWeights. An empty input yields nil.
func ParseWeights(in map[string]float64) (RewardWeights, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(RewardWeights, len(in))
	for k, v := range in {
		out[RewardComponent(k)] = v
	}
	if _, err := DefaultRewardWeights().Merge(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (w RewardWeights) Validate() error {
	for _, c := range AllRewardComponents {
		v := w[c]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNegativeWeight, c, v)
		}
	}
	return nil
}

// AggregateReward sums the weighted components, subtracting the penalties.
//
//	reward = Σ w[c]*v[c] (c not a penalty) - Σ w[c]*v[c] (c a penalty)
//
// Components missing from weights fall back to the default weight.
func AggregateReward(components map[RewardComponent]float64, weights RewardWeights) (float64, error) {
	reward := 0.0
	for _, c := range AllRewardComponents {
		v, ok := components[c]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingRewardComponent, c)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s=%v", ErrNonFiniteRewardComponent, c, v)
		}

		w, ok := weights[c]
		if !ok {
			w = defaultComponentWeight
		}

		if c.IsPenalty() {
			reward -= w * v
		} else {
			reward += w * v
		}
	}
	return reward, nil
}

// ZeroComponents returns a complete component mapping with every value 0.0.
func ZeroComponents() map[RewardComponent]float64 {
	out := make(map[RewardComponent]float64, len(AllRewardComponents))
	for _, c := range AllRewardComponents {
		out[c] = 0
	}
	return out
}
