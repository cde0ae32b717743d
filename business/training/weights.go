package training

import (
	"encoding/json"
	"fmt"

	"clinicalGym/business/environment"

	"gorm.io/datatypes"
)

func weightsJSON(w environment.RewardWeights) datatypes.JSONMap {
	if len(w) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(w))
	for k, v := range w {
		out[string(k)] = v
	}
	return out
}

func weightsFromJSON(m datatypes.JSONMap) (environment.RewardWeights, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw := make(map[string]float64, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case float64:
			raw[k] = n
		case int:
			raw[k] = float64(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("weight %s: %w", k, err)
			}
			raw[k] = f
		default:
			return nil, fmt.Errorf("weight %s: unexpected type %T", k, v)
		}
	}
	return environment.ParseWeights(raw)
}

func datatypesRewards(rewards []float64) datatypes.JSONType[[]float64] {
	out := make([]float64, len(rewards))
	copy(out, rewards)
	return datatypes.NewJSONType(out)
}
