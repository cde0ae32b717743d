package workflows

import (
	"math/rand"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

const (
	BedAllocationName = "bed_allocation"

	bedMinAdmissions   = 8
	bedMaxAdmissions   = 14
	bedObservationSize = 8
)

var bedAllocationLabels = []string{"icu", "step_down", "med_surg", "observation", "discharge_lounge"}

var (
	bedBaseCapacity = []int{2, 3, 5, 3, 4}
	// contribution margin per placed patient-day, in thousands
	bedMargin = []float64{2.5, 1.4, 0.9, 0.5, 0.1}
)

type admission struct {
	acuity float64
	los    float64
}

// idealUnit maps acuity onto the least intensive unit that can safely hold the patient.
func (a admission) idealUnit() int {
	switch {
	case a.acuity > 0.8:
		return 0
	case a.acuity > 0.6:
		return 1
	case a.acuity > 0.35:
		return 2
	case a.acuity > 0.15:
		return 3
	default:
		return 4
	}
}

// BedAllocation places pending admissions into inpatient units with finite capacity.
type BedAllocation struct {
	maxSteps int

	queue     []admission
	initial   int
	capacity  []int
	occupied  []int
	placed    int
	matched   int
	boarded   int
	underBed  int
	unsafe    int
	revenue   float64
	losPlaced float64
}

func NewBedAllocation(cfg environment.Config) (*environment.Env, error) {
	h := &BedAllocation{maxSteps: cfg.Horizon(bedMaxAdmissions)}
	return environment.New(BedAllocationName, h, cfg.Options()...)
}

func bedAllocationSpec() registry.Spec {
	return registry.Spec{
		Name:            BedAllocationName,
		Title:           "Inpatient bed allocation",
		Category:        "resource_allocation",
		Description:     "Assign admissions to ICU, step-down, med-surg, observation or the discharge lounge under capacity limits.",
		ActionLabels:    labelsCopy(bedAllocationLabels),
		ObservationSize: bedObservationSize,
		MaxSteps:        bedMaxAdmissions,
		Factory:         NewBedAllocation,
	}
}

func (h *BedAllocation) InitializeState(rng *rand.Rand) environment.Observation {
	n := bedMinAdmissions + rng.Intn(bedMaxAdmissions-bedMinAdmissions+1)
	h.queue = make([]admission, n)
	for i := range h.queue {
		h.queue[i] = admission{
			acuity: rng.Float64(),
			los:    1 + rng.Float64()*9,
		}
	}
	h.initial = n
	h.capacity = make([]int, len(bedBaseCapacity))
	h.occupied = make([]int, len(bedBaseCapacity))
	for i, c := range bedBaseCapacity {
		h.capacity[i] = c + rng.Intn(2)
	}
	h.placed, h.matched, h.boarded, h.underBed, h.unsafe = 0, 0, 0, 0, 0
	h.revenue, h.losPlaced = 0, 0
	return h.StateFeatures()
}

func (h *BedAllocation) ResetInfo() environment.Info {
	return environment.Info{"pending": len(h.queue), "capacity": append([]int(nil), h.capacity...)}
}

func (h *BedAllocation) StateFeatures() environment.Observation {
	obs := make(environment.Observation, bedObservationSize)
	obs[0] = environment.SafeRatio(float64(len(h.queue)), float64(h.initial))
	if len(h.queue) > 0 {
		obs[1] = h.queue[0].acuity
		obs[2] = h.queue[0].los / 10
	}
	for i := range h.occupied {
		obs[3+i] = environment.SafeRatio(float64(h.occupied[i]), float64(h.capacity[i]))
	}
	return obs
}

func (h *BedAllocation) ApplyAction(action int) (environment.Info, error) {
	if len(h.queue) == 0 {
		return idle(), nil
	}

	p := h.queue[0]
	h.queue = h.queue[1:]

	ideal := p.idealUnit()
	full := h.occupied[action] >= h.capacity[action]
	gap := action - ideal
	unsafe := ideal == 0 && action == len(bedAllocationLabels)-1

	if full {
		h.boarded++
	} else {
		h.occupied[action]++
		h.placed++
		h.losPlaced += p.los
		h.revenue += bedMargin[action] * p.los
		if gap == 0 {
			h.matched++
		}
	}
	if gap > 0 {
		h.underBed++
	}
	if unsafe {
		h.unsafe++
	}

	return environment.Info{
		"processed":   true,
		"unit":        bedAllocationLabels[action],
		"ideal_unit":  bedAllocationLabels[ideal],
		"unit_gap":    gap,
		"boarded":     full,
		"acuity":      p.acuity,
		"los_days":    p.los,
		"unsafe":      unsafe,
		"utilization": environment.SafeRatio(float64(h.occupied[action]), float64(h.capacity[action])),
		"remaining":   len(h.queue),
	}, nil
}

func (h *BedAllocation) CalculateRewardComponents(_ environment.Observation, action int, info environment.Info) map[environment.RewardComponent]float64 {
	out := environment.ZeroComponents()
	if !processed(info) {
		return out
	}

	gap, _ := info["unit_gap"].(int)
	boarded, _ := info["boarded"].(bool)
	acuity, _ := info["acuity"].(float64)
	los, _ := info["los_days"].(float64)
	utilization, _ := info["utilization"].(float64)
	unsafe, _ := info["unsafe"].(bool)

	if boarded {
		out[environment.Efficiency] = -0.5
		out[environment.PatientSatisfaction] = 0.1
		out[environment.RiskPenalty] = 0.5 + 0.5*acuity
	} else {
		out[environment.Clinical] = 1 - float64(absInt(gap))/float64(len(bedAllocationLabels)-1)
		out[environment.Efficiency] = utilization
		out[environment.Financial] = bedMargin[action] * los / 10
		out[environment.PatientSatisfaction] = 0.8
		if gap > 0 {
			out[environment.RiskPenalty] = 0.4 * float64(gap) * acuity
		}
		if gap < 0 {
			// an intensive bed spent on a patient who did not need it
			out[environment.Financial] -= 0.2 * float64(-gap)
		}
	}
	out[environment.CompliancePenalty] = boolf(unsafe)
	return out
}

func (h *BedAllocation) IsDone(stepsTaken int) bool {
	return len(h.queue) == 0 || stepsTaken >= h.maxSteps
}

func (h *BedAllocation) KPIs() environment.KPIMetrics {
	handled := float64(h.placed + h.boarded)
	totalCap, totalOcc := 0, 0
	for i := range h.capacity {
		totalCap += h.capacity[i]
		totalOcc += h.occupied[i]
	}
	return environment.KPIMetrics{
		ClinicalOutcomes: map[string]float64{
			"appropriate_placement_rate": environment.SafeRatio(float64(h.matched), handled),
			"under_resourced_rate":       environment.SafeRatio(float64(h.underBed), handled),
		},
		OperationalEfficiency: map[string]float64{
			"bed_utilization":  environment.SafeRatio(float64(totalOcc), float64(totalCap)),
			"boarding_rate":    environment.SafeRatio(float64(h.boarded), handled),
			"admissions_queue": float64(len(h.queue)),
			"mean_los_days":    environment.SafeRatio(h.losPlaced, float64(h.placed)),
		},
		FinancialMetrics: map[string]float64{
			"contribution_margin": h.revenue,
			"margin_per_patient":  environment.SafeRatio(h.revenue, float64(h.placed)),
		},
		PatientSatisfaction: 1 - environment.SafeRatio(float64(h.boarded), handled),
		RiskScore:           environment.SafeRatio(float64(h.underBed+h.boarded), handled),
		ComplianceScore:     1 - environment.SafeRatio(float64(h.unsafe), handled),
	}
}

func (h *BedAllocation) Summary() map[string]any {
	return map[string]any{
		"admissions_total": h.initial,
		"placed":           h.placed,
		"boarded":          h.boarded,
		"occupied":         append([]int(nil), h.occupied...),
		"capacity":         append([]int(nil), h.capacity...),
		"pending":          len(h.queue),
	}
}

func (h *BedAllocation) ActionLabels() []string {
	return bedAllocationLabels
}

func (h *BedAllocation) ObservationSize() int {
	return bedObservationSize
}
