package workflows

import (
	"math/rand"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

const (
	EDTriageName = "ed_triage"

	edDefaultPatients = 15
	edMaxPatients     = 500
	edWaitIncrement   = 6.0 // minutes added to every waiting patient per step
	edMaxWait         = 120.0
	edObservationSize = 6
)

// edTriageLabels follow the five-level emergency severity index, most urgent first.
var edTriageLabels = []string{"resuscitation", "emergent", "urgent", "less_urgent", "non_urgent"}

// Cost of a bed-hour at each assigned level, in thousands.
var edLevelCost = []float64{1.2, 0.8, 0.5, 0.3, 0.15}

type edPatient struct {
	acuity      int
	wait        float64
	instability float64
}

// EDTriage assigns a triage level to each arriving patient, first come first served.
type EDTriage struct {
	numPatients int
	maxSteps    int

	queue    []edPatient
	seen     int
	correct  int
	under    int
	over     int
	missedL1 int
	cost     float64
	waitSum  float64
	satSum   float64
}

func NewEDTriage(cfg environment.Config) (*environment.Env, error) {
	n, err := cfg.IntParam("num_patients", edDefaultPatients, edMaxPatients)
	if err != nil {
		return nil, err
	}
	h := &EDTriage{
		numPatients: n,
		maxSteps:    cfg.Horizon(n),
	}
	return environment.New(EDTriageName, h, cfg.Options()...)
}

func edTriageSpec() registry.Spec {
	return registry.Spec{
		Name:            EDTriageName,
		Title:           "Emergency department triage",
		Category:        "triage",
		Description:     "Assign a severity level to each waiting patient; under-triage is penalised as clinical risk.",
		ActionLabels:    labelsCopy(edTriageLabels),
		ObservationSize: edObservationSize,
		MaxSteps:        edDefaultPatients,
		Params:          []string{"num_patients"},
		Factory:         NewEDTriage,
	}
}

func (h *EDTriage) InitializeState(rng *rand.Rand) environment.Observation {
	h.queue = make([]edPatient, h.numPatients)
	for i := range h.queue {
		h.queue[i] = edPatient{
			acuity:      rng.Intn(len(edTriageLabels)),
			wait:        rng.Float64() * 30,
			instability: rng.Float64(),
		}
	}
	h.seen, h.correct, h.under, h.over, h.missedL1 = 0, 0, 0, 0, 0
	h.cost, h.waitSum, h.satSum = 0, 0, 0
	return h.StateFeatures()
}

func (h *EDTriage) ResetInfo() environment.Info {
	return environment.Info{"pending": len(h.queue)}
}

func (h *EDTriage) StateFeatures() environment.Observation {
	obs := make(environment.Observation, edObservationSize)
	obs[0] = environment.SafeRatio(float64(len(h.queue)), float64(h.numPatients))
	if len(h.queue) > 0 {
		p := h.queue[0]
		obs[1] = float64(p.acuity) / float64(len(edTriageLabels)-1)
		obs[2] = clamp(p.wait/edMaxWait, 0, 1)
		obs[3] = p.instability
	}
	obs[4] = environment.SafeRatio(float64(h.correct), float64(h.seen))
	obs[5] = environment.SafeRatio(float64(h.under), float64(h.seen))
	return obs
}

func (h *EDTriage) ApplyAction(action int) (environment.Info, error) {
	if len(h.queue) == 0 {
		return idle(), nil
	}

	p := h.queue[0]
	h.queue = h.queue[1:]
	for i := range h.queue {
		h.queue[i].wait += edWaitIncrement
	}

	h.seen++
	diff := action - p.acuity
	switch {
	case diff == 0:
		h.correct++
	case diff > 0:
		h.under++
	default:
		h.over++
	}
	if p.acuity == 0 && action != 0 {
		h.missedL1++
	}
	h.cost += edLevelCost[action]
	h.waitSum += p.wait
	sat := 1 - clamp(p.wait/edMaxWait, 0, 1)
	h.satSum += sat

	return environment.Info{
		"processed":      true,
		"assigned_level": edTriageLabels[action],
		"true_level":     edTriageLabels[p.acuity],
		"level_error":    diff,
		"wait_minutes":   p.wait,
		"instability":    p.instability,
		"satisfaction":   sat,
		"remaining":      len(h.queue),
	}, nil
}

func (h *EDTriage) CalculateRewardComponents(_ environment.Observation, action int, info environment.Info) map[environment.RewardComponent]float64 {
	out := environment.ZeroComponents()
	if !processed(info) {
		return out
	}

	diff, _ := info["level_error"].(int)
	instability, _ := info["instability"].(float64)
	sat, _ := info["satisfaction"].(float64)
	gap := float64(absInt(diff))

	out[environment.Clinical] = 1 - gap/float64(len(edTriageLabels)-1)
	out[environment.PatientSatisfaction] = sat
	if diff < 0 {
		// over-triage burns scarce high-acuity capacity
		out[environment.Efficiency] = -0.25 * gap
		out[environment.Financial] = -0.1 * gap
	} else {
		out[environment.Efficiency] = 0.2
		out[environment.Financial] = 0.05
	}
	if diff > 0 {
		out[environment.RiskPenalty] = 0.5 * gap * (1 + instability)
	}
	if trueLevel, _ := info["true_level"].(string); trueLevel == edTriageLabels[0] && action != 0 {
		out[environment.CompliancePenalty] = 1
	}
	return out
}

func (h *EDTriage) IsDone(stepsTaken int) bool {
	return len(h.queue) == 0 || stepsTaken >= h.maxSteps
}

func (h *EDTriage) KPIs() environment.KPIMetrics {
	seen := float64(h.seen)
	backlogWait := 0.0
	for _, p := range h.queue {
		backlogWait += p.wait
	}
	return environment.KPIMetrics{
		ClinicalOutcomes: map[string]float64{
			"triage_accuracy":  environment.SafeRatio(float64(h.correct), seen),
			"undertriage_rate": environment.SafeRatio(float64(h.under), seen),
			"overtriage_rate":  environment.SafeRatio(float64(h.over), seen),
		},
		OperationalEfficiency: map[string]float64{
			"patients_triaged":     seen,
			"backlog":              float64(len(h.queue)),
			"mean_wait_minutes":    environment.SafeRatio(h.waitSum, seen),
			"backlog_wait_minutes": environment.SafeRatio(backlogWait, float64(len(h.queue))),
		},
		FinancialMetrics: map[string]float64{
			"resource_cost":    h.cost,
			"cost_per_patient": environment.SafeRatio(h.cost, seen),
		},
		PatientSatisfaction: environment.SafeRatio(h.satSum, seen),
		RiskScore:           environment.SafeRatio(float64(h.under), seen),
		ComplianceScore:     1 - environment.SafeRatio(float64(h.missedL1), seen),
	}
}

func (h *EDTriage) Summary() map[string]any {
	return map[string]any{
		"patients_total":   h.numPatients,
		"patients_triaged": h.seen,
		"correct":          h.correct,
		"undertriaged":     h.under,
		"overtriaged":      h.over,
		"pending":          len(h.queue),
	}
}

func (h *EDTriage) ActionLabels() []string {
	return edTriageLabels
}

func (h *EDTriage) ObservationSize() int {
	return edObservationSize
}
