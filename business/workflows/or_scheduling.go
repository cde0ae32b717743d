package workflows

import (
	"math"
	"math/rand"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

const (
	ORSchedulingName = "or_scheduling"

	orMinConflicts      = 6
	orMaxConflicts      = 12
	orObservationSize   = 6
	orDaySlackMinutes   = 240.0
	orTieThreshold      = 0.1
	orOvertimeCostPerHr = 3.0
)

const (
	orKeepFirst = iota
	orKeepSecond
	orOverbook
	orEscalate
)

var orSchedulingLabels = []string{"keep_first", "keep_second", "overbook", "escalate"}

type bookingConflict struct {
	priorityA float64
	priorityB float64
	duration  float64 // minutes of the case that would be displaced
}

// ORScheduling resolves double-booked operating room slots.
type ORScheduling struct {
	maxSteps int

	conflicts  []bookingConflict
	initial    int
	resolved   int
	bumpedHigh int
	escalated  int
	overbooked int
	slack      float64
	overtime   float64
	delaySum   float64
}

func NewORScheduling(cfg environment.Config) (*environment.Env, error) {
	h := &ORScheduling{maxSteps: cfg.Horizon(orMaxConflicts)}
	return environment.New(ORSchedulingName, h, cfg.Options()...)
}

func orSchedulingSpec() registry.Spec {
	return registry.Spec{
		Name:            ORSchedulingName,
		Title:           "Operating room conflict resolution",
		Category:        "scheduling",
		Description:     "Resolve double-booked OR slots by keeping one case, overbooking into slack, or escalating.",
		ActionLabels:    labelsCopy(orSchedulingLabels),
		ObservationSize: orObservationSize,
		MaxSteps:        orMaxConflicts,
		Factory:         NewORScheduling,
	}
}

func (h *ORScheduling) InitializeState(rng *rand.Rand) environment.Observation {
	n := orMinConflicts + rng.Intn(orMaxConflicts-orMinConflicts+1)
	h.conflicts = make([]bookingConflict, n)
	for i := range h.conflicts {
		h.conflicts[i] = bookingConflict{
			priorityA: rng.Float64(),
			priorityB: rng.Float64(),
			duration:  30 + rng.Float64()*150,
		}
	}
	h.initial = n
	h.resolved, h.bumpedHigh, h.escalated, h.overbooked = 0, 0, 0, 0
	h.slack = orDaySlackMinutes
	h.overtime, h.delaySum = 0, 0
	return h.StateFeatures()
}

func (h *ORScheduling) ResetInfo() environment.Info {
	return environment.Info{"pending": len(h.conflicts), "slack_minutes": h.slack}
}

func (h *ORScheduling) StateFeatures() environment.Observation {
	obs := make(environment.Observation, orObservationSize)
	obs[0] = environment.SafeRatio(float64(len(h.conflicts)), float64(h.initial))
	if len(h.conflicts) > 0 {
		c := h.conflicts[0]
		obs[1] = c.priorityA
		obs[2] = c.priorityB
		obs[3] = c.duration / 180
	}
	obs[4] = clamp(h.slack/orDaySlackMinutes, 0, 1)
	obs[5] = clamp(h.overtime/orDaySlackMinutes, 0, 1)
	return obs
}

func (h *ORScheduling) ApplyAction(action int) (environment.Info, error) {
	if len(h.conflicts) == 0 {
		return idle(), nil
	}

	c := h.conflicts[0]
	h.conflicts = h.conflicts[1:]
	h.resolved++

	var kept, bumped float64
	delay, overtime := 0.0, 0.0
	switch action {
	case orKeepFirst:
		kept, bumped = c.priorityA, c.priorityB
		delay = c.duration
	case orKeepSecond:
		kept, bumped = c.priorityB, c.priorityA
		delay = c.duration
	case orOverbook:
		kept, bumped = math.Max(c.priorityA, c.priorityB), 0
		used := math.Min(h.slack, c.duration)
		h.slack -= used
		overtime = c.duration - used
		h.overbooked++
	case orEscalate:
		kept, bumped = math.Max(c.priorityA, c.priorityB), math.Min(c.priorityA, c.priorityB)
		delay = c.duration / 2
		h.escalated++
	}

	bumpedHigh := bumped > kept
	if bumpedHigh {
		h.bumpedHigh++
	}
	h.overtime += overtime
	h.delaySum += delay

	return environment.Info{
		"processed":        true,
		"resolution":       orSchedulingLabels[action],
		"kept_priority":    kept,
		"bumped_priority":  bumped,
		"bumped_higher":    bumpedHigh,
		"priority_tie":     math.Abs(c.priorityA-c.priorityB) < orTieThreshold,
		"delay_minutes":    delay,
		"overtime_minutes": overtime,
		"remaining":        len(h.conflicts),
	}, nil
}

func (h *ORScheduling) CalculateRewardComponents(_ environment.Observation, action int, info environment.Info) map[environment.RewardComponent]float64 {
	out := environment.ZeroComponents()
	if !processed(info) {
		return out
	}

	kept, _ := info["kept_priority"].(float64)
	bumped, _ := info["bumped_priority"].(float64)
	bumpedHigh, _ := info["bumped_higher"].(bool)
	tie, _ := info["priority_tie"].(bool)
	delay, _ := info["delay_minutes"].(float64)
	overtime, _ := info["overtime_minutes"].(float64)

	out[environment.Clinical] = kept - 0.5*bumped
	out[environment.Efficiency] = 0.5 - delay/180 - overtime/120
	out[environment.Financial] = 0.3 - orOvertimeCostPerHr*overtime/60
	out[environment.PatientSatisfaction] = 1 - clamp(delay/180, 0, 1)
	if action == orEscalate && !tie {
		out[environment.Efficiency] -= 0.3
	}
	if bumpedHigh {
		out[environment.RiskPenalty] = bumped - kept
	}
	if overtime > 60 {
		// staff duty-hour limits
		out[environment.CompliancePenalty] = (overtime - 60) / 60
	}
	return out
}

func (h *ORScheduling) IsDone(stepsTaken int) bool {
	return len(h.conflicts) == 0 || stepsTaken >= h.maxSteps
}

func (h *ORScheduling) KPIs() environment.KPIMetrics {
	resolved := float64(h.resolved)
	return environment.KPIMetrics{
		ClinicalOutcomes: map[string]float64{
			"higher_priority_bumped":  float64(h.bumpedHigh),
			"priority_inversion_rate": environment.SafeRatio(float64(h.bumpedHigh), resolved),
		},
		OperationalEfficiency: map[string]float64{
			"conflicts_resolved": resolved,
			"conflicts_pending":  float64(len(h.conflicts)),
			"escalation_rate":    environment.SafeRatio(float64(h.escalated), resolved),
			"slack_minutes":      h.slack,
			"mean_delay_minutes": environment.SafeRatio(h.delaySum, resolved),
		},
		FinancialMetrics: map[string]float64{
			"overtime_minutes": h.overtime,
			"overtime_cost":    orOvertimeCostPerHr * h.overtime / 60,
		},
		PatientSatisfaction: 1 - clamp(environment.SafeRatio(h.delaySum, resolved)/180, 0, 1),
		RiskScore:           environment.SafeRatio(float64(h.bumpedHigh), resolved),
		ComplianceScore:     1 - clamp(math.Max(0, h.overtime-60)/orDaySlackMinutes, 0, 1),
	}
}

func (h *ORScheduling) Summary() map[string]any {
	return map[string]any{
		"conflicts_total":    h.initial,
		"conflicts_resolved": h.resolved,
		"overbooked":         h.overbooked,
		"escalated":          h.escalated,
		"slack_minutes":      h.slack,
		"pending":            len(h.conflicts),
	}
}

func (h *ORScheduling) ActionLabels() []string {
	return orSchedulingLabels
}

func (h *ORScheduling) ObservationSize() int {
	return orObservationSize
}
