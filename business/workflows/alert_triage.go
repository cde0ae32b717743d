package workflows

import (
	"math/rand"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

const (
	AlertTriageName = "alert_triage"

	alertMinCount        = 10
	alertMaxCount        = 20
	alertParamLimit      = 500
	alertObservationSize = 5
)

const (
	alertDismiss = iota
	alertAcknowledge
	alertEscalate
	alertPage
)

var alertTriageLabels = []string{"dismiss", "acknowledge", "escalate", "page_physician"}

// Minutes of clinician attention each response consumes.
var alertResponseMinutes = []float64{0.5, 2, 8, 20}

type clinicalAlert struct {
	severity   float64
	actionable bool
	age        float64
}

// expectedResponse is the protocol response for an alert.
func (a clinicalAlert) expectedResponse() int {
	switch {
	case !a.actionable:
		return alertDismiss
	case a.severity > 0.7:
		return alertPage
	case a.severity > 0.4:
		return alertEscalate
	default:
		return alertAcknowledge
	}
}

// AlertTriage works through a burst of EHR alerts, trading alert fatigue against
// missed deterioration.
type AlertTriage struct {
	fixedCount int
	maxSteps   int

	alerts       []clinicalAlert
	initial      int
	handled      int
	matched      int
	missed       int
	falseAlarms  int
	unackedHigh  int
	staffMinutes float64
}

func NewAlertTriage(cfg environment.Config) (*environment.Env, error) {
	fixed, err := cfg.IntParam("num_alerts", 0, alertParamLimit)
	if err != nil {
		return nil, err
	}
	horizon := alertMaxCount
	if fixed > 0 {
		horizon = fixed
	}
	h := &AlertTriage{
		fixedCount: fixed,
		maxSteps:   cfg.Horizon(horizon),
	}
	return environment.New(AlertTriageName, h, cfg.Options()...)
}

func alertTriageSpec() registry.Spec {
	return registry.Spec{
		Name:            AlertTriageName,
		Title:           "Clinical alert triage",
		Category:        "triage",
		Description:     "Respond to a burst of clinical decision support alerts without drowning staff in pages.",
		ActionLabels:    labelsCopy(alertTriageLabels),
		ObservationSize: alertObservationSize,
		MaxSteps:        alertMaxCount,
		Params:          []string{"num_alerts"},
		Factory:         NewAlertTriage,
	}
}

func (h *AlertTriage) InitializeState(rng *rand.Rand) environment.Observation {
	n := h.fixedCount
	if n <= 0 {
		n = alertMinCount + rng.Intn(alertMaxCount-alertMinCount+1)
	}
	h.alerts = make([]clinicalAlert, n)
	for i := range h.alerts {
		h.alerts[i] = clinicalAlert{
			severity:   rng.Float64(),
			actionable: rng.Float64() < 0.35,
			age:        rng.Float64() * 15,
		}
	}
	h.initial = n
	h.handled, h.matched, h.missed, h.falseAlarms, h.unackedHigh = 0, 0, 0, 0, 0
	h.staffMinutes = 0
	return h.StateFeatures()
}

func (h *AlertTriage) ResetInfo() environment.Info {
	return environment.Info{"pending": len(h.alerts)}
}

func (h *AlertTriage) StateFeatures() environment.Observation {
	obs := make(environment.Observation, alertObservationSize)
	obs[0] = environment.SafeRatio(float64(len(h.alerts)), float64(h.initial))
	if len(h.alerts) > 0 {
		a := h.alerts[0]
		obs[1] = a.severity
		obs[2] = clamp(a.age/30, 0, 1)
	}
	obs[3] = environment.SafeRatio(float64(h.falseAlarms), float64(h.handled))
	obs[4] = clamp(h.staffMinutes/120, 0, 1)
	return obs
}

func (h *AlertTriage) ApplyAction(action int) (environment.Info, error) {
	if len(h.alerts) == 0 {
		return idle(), nil
	}

	a := h.alerts[0]
	h.alerts = h.alerts[1:]
	for i := range h.alerts {
		h.alerts[i].age += alertResponseMinutes[action]
	}

	expected := a.expectedResponse()
	h.handled++
	h.staffMinutes += alertResponseMinutes[action]
	missed := a.actionable && action == alertDismiss
	falseAlarm := !a.actionable && action >= alertEscalate
	unackedHigh := a.severity > 0.7 && action == alertDismiss
	if action == expected {
		h.matched++
	}
	if missed {
		h.missed++
	}
	if falseAlarm {
		h.falseAlarms++
	}
	if unackedHigh {
		h.unackedHigh++
	}

	return environment.Info{
		"processed":         true,
		"response":          alertTriageLabels[action],
		"expected_response": alertTriageLabels[expected],
		"severity":          a.severity,
		"actionable":        a.actionable,
		"age_minutes":       a.age,
		"missed":            missed,
		"false_alarm":       falseAlarm,
		"unacked_high":      unackedHigh,
		"remaining":         len(h.alerts),
	}, nil
}

func (h *AlertTriage) CalculateRewardComponents(_ environment.Observation, action int, info environment.Info) map[environment.RewardComponent]float64 {
	out := environment.ZeroComponents()
	if !processed(info) {
		return out
	}

	severity, _ := info["severity"].(float64)
	age, _ := info["age_minutes"].(float64)
	missed, _ := info["missed"].(bool)
	falseAlarm, _ := info["false_alarm"].(bool)
	unackedHigh, _ := info["unacked_high"].(bool)
	expected, _ := info["expected_response"].(string)

	if expected == alertTriageLabels[action] {
		out[environment.Clinical] = 1
	} else if !missed {
		out[environment.Clinical] = 0.3
	}
	out[environment.Efficiency] = 0.3 - alertResponseMinutes[action]/20
	out[environment.Financial] = -0.02 * alertResponseMinutes[action]
	out[environment.PatientSatisfaction] = 1 - clamp(age/30, 0, 1)
	if missed {
		out[environment.RiskPenalty] = 2 * severity
	}
	if falseAlarm {
		out[environment.RiskPenalty] += 0.2
	}
	out[environment.CompliancePenalty] = boolf(unackedHigh)
	return out
}

func (h *AlertTriage) IsDone(stepsTaken int) bool {
	return len(h.alerts) == 0 || stepsTaken >= h.maxSteps
}

func (h *AlertTriage) KPIs() environment.KPIMetrics {
	handled := float64(h.handled)
	return environment.KPIMetrics{
		ClinicalOutcomes: map[string]float64{
			"protocol_adherence": environment.SafeRatio(float64(h.matched), handled),
			"missed_actionable":  float64(h.missed),
		},
		OperationalEfficiency: map[string]float64{
			"alerts_handled":   handled,
			"alerts_pending":   float64(len(h.alerts)),
			"false_alarm_rate": environment.SafeRatio(float64(h.falseAlarms), handled),
			"staff_minutes":    h.staffMinutes,
		},
		FinancialMetrics: map[string]float64{
			"staff_cost": h.staffMinutes * 1.5,
		},
		PatientSatisfaction: 1 - environment.SafeRatio(float64(h.missed), handled),
		RiskScore:           environment.SafeRatio(float64(h.missed), handled),
		ComplianceScore:     1 - environment.SafeRatio(float64(h.unackedHigh), handled),
	}
}

func (h *AlertTriage) Summary() map[string]any {
	return map[string]any{
		"alerts_total":   h.initial,
		"alerts_handled": h.handled,
		"missed":         h.missed,
		"false_alarms":   h.falseAlarms,
		"pending":        len(h.alerts),
	}
}

func (h *AlertTriage) ActionLabels() []string {
	return alertTriageLabels
}

func (h *AlertTriage) ObservationSize() int {
	return alertObservationSize
}
