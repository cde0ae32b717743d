package workflows

import (
	"math/rand"

	"clinicalGym/business/environment"
	"clinicalGym/business/registry"
)

const (
	ClaimsRoutingName = "claims_routing"

	claimsMinCount        = 12
	claimsMaxCount        = 20
	claimsObservationSize = 6
	claimsHighValue       = 5000.0
	claimsAmountScale     = 10000.0
)

const (
	claimAuto = iota
	claimReview
	claimRequestInfo
	claimDeny
)

var claimsRoutingLabels = []string{"auto_adjudicate", "manual_review", "request_info", "deny"}

// Processing cost of each route, in thousands; days the route adds to the A/R cycle.
var (
	claimRouteCost = []float64{0.005, 0.08, 0.03, 0.01}
	claimRouteDays = []float64{1, 9, 14, 2}
)

type claim struct {
	amount       float64
	complexity   float64
	fraudRisk    float64
	docsComplete bool
}

func (c claim) expectedRoute() int {
	switch {
	case c.fraudRisk > 0.85:
		return claimDeny
	case !c.docsComplete:
		return claimRequestInfo
	case c.complexity > 0.6 || c.amount > claimsHighValue:
		return claimReview
	default:
		return claimAuto
	}
}

// ClaimsRouting sends each submitted claim down an adjudication route.
type ClaimsRouting struct {
	maxSteps int

	claims       []claim
	initial      int
	routed       int
	matched      int
	leaked       int
	wrongDenials int
	reworked     int
	collected    float64
	processing   float64
	arDays       float64
}

func NewClaimsRouting(cfg environment.Config) (*environment.Env, error) {
	h := &ClaimsRouting{maxSteps: cfg.Horizon(claimsMaxCount)}
	return environment.New(ClaimsRoutingName, h, cfg.Options()...)
}

func claimsRoutingSpec() registry.Spec {
	return registry.Spec{
		Name:            ClaimsRoutingName,
		Title:           "Revenue cycle claims routing",
		Category:        "routing",
		Description:     "Route claims to auto-adjudication, manual review, information requests or denial.",
		ActionLabels:    labelsCopy(claimsRoutingLabels),
		ObservationSize: claimsObservationSize,
		MaxSteps:        claimsMaxCount,
		Factory:         NewClaimsRouting,
	}
}

func (h *ClaimsRouting) InitializeState(rng *rand.Rand) environment.Observation {
	n := claimsMinCount + rng.Intn(claimsMaxCount-claimsMinCount+1)
	h.claims = make([]claim, n)
	for i := range h.claims {
		h.claims[i] = claim{
			amount:       100 + rng.Float64()*9900,
			complexity:   rng.Float64(),
			fraudRisk:    rng.Float64() * rng.Float64(),
			docsComplete: rng.Float64() < 0.8,
		}
	}
	h.initial = n
	h.routed, h.matched, h.leaked, h.wrongDenials, h.reworked = 0, 0, 0, 0, 0
	h.collected, h.processing, h.arDays = 0, 0, 0
	return h.StateFeatures()
}

func (h *ClaimsRouting) ResetInfo() environment.Info {
	return environment.Info{"pending": len(h.claims)}
}

func (h *ClaimsRouting) StateFeatures() environment.Observation {
	obs := make(environment.Observation, claimsObservationSize)
	obs[0] = environment.SafeRatio(float64(len(h.claims)), float64(h.initial))
	if len(h.claims) > 0 {
		c := h.claims[0]
		obs[1] = c.amount / claimsAmountScale
		obs[2] = c.complexity
		obs[3] = c.fraudRisk
		obs[4] = boolf(c.docsComplete)
	}
	obs[5] = environment.SafeRatio(float64(h.matched), float64(h.routed))
	return obs
}

func (h *ClaimsRouting) ApplyAction(action int) (environment.Info, error) {
	if len(h.claims) == 0 {
		return idle(), nil
	}

	c := h.claims[0]
	h.claims = h.claims[1:]

	expected := c.expectedRoute()
	fraudulent := c.fraudRisk > 0.85
	leaked := fraudulent && action == claimAuto
	wrongDenial := !fraudulent && action == claimDeny
	rework := action == claimRequestInfo && c.docsComplete

	h.routed++
	if action == expected {
		h.matched++
	}
	if leaked {
		h.leaked++
	}
	if wrongDenial {
		h.wrongDenials++
	}
	if rework {
		h.reworked++
	}

	paid := 0.0
	if action != claimDeny && !fraudulent {
		paid = c.amount
		if action == claimAuto && (c.complexity > 0.6 || !c.docsComplete) {
			// auto-adjudicated edge cases come back as partial payments
			paid *= 0.7
		}
	}
	h.collected += paid
	h.processing += claimRouteCost[action]
	h.arDays += claimRouteDays[action]

	return environment.Info{
		"processed":      true,
		"route":          claimsRoutingLabels[action],
		"expected_route": claimsRoutingLabels[expected],
		"amount":         c.amount,
		"paid":           paid,
		"fraud_risk":     c.fraudRisk,
		"leaked":         leaked,
		"wrong_denial":   wrongDenial,
		"rework":         rework,
		"remaining":      len(h.claims),
	}, nil
}

func (h *ClaimsRouting) CalculateRewardComponents(_ environment.Observation, action int, info environment.Info) map[environment.RewardComponent]float64 {
	out := environment.ZeroComponents()
	if !processed(info) {
		return out
	}

	expected, _ := info["expected_route"].(string)
	paid, _ := info["paid"].(float64)
	fraudRisk, _ := info["fraud_risk"].(float64)
	leaked, _ := info["leaked"].(bool)
	wrongDenial, _ := info["wrong_denial"].(bool)
	rework, _ := info["rework"].(bool)

	out[environment.Clinical] = 0.2 * boolf(expected == claimsRoutingLabels[action])
	out[environment.Efficiency] = 1 - claimRouteDays[action]/14
	if rework {
		out[environment.Efficiency] -= 0.3
	}
	out[environment.Financial] = paid/claimsAmountScale - claimRouteCost[action]
	out[environment.PatientSatisfaction] = 0.5
	if wrongDenial {
		out[environment.PatientSatisfaction] = -1
		out[environment.CompliancePenalty] = 0.5
	}
	if leaked {
		out[environment.RiskPenalty] = 2 * fraudRisk
	}
	return out
}

func (h *ClaimsRouting) IsDone(stepsTaken int) bool {
	return len(h.claims) == 0 || stepsTaken >= h.maxSteps
}

func (h *ClaimsRouting) KPIs() environment.KPIMetrics {
	routed := float64(h.routed)
	return environment.KPIMetrics{
		ClinicalOutcomes: map[string]float64{
			"routing_accuracy": environment.SafeRatio(float64(h.matched), routed),
		},
		OperationalEfficiency: map[string]float64{
			"claims_routed":  routed,
			"claims_pending": float64(len(h.claims)),
			"mean_ar_days":   environment.SafeRatio(h.arDays, routed),
			"rework_rate":    environment.SafeRatio(float64(h.reworked), routed),
		},
		FinancialMetrics: map[string]float64{
			"collected":       h.collected,
			"processing_cost": h.processing * 1000,
			"net_collection":  h.collected - h.processing*1000,
		},
		PatientSatisfaction: 1 - environment.SafeRatio(float64(h.wrongDenials), routed),
		RiskScore:           environment.SafeRatio(float64(h.leaked), routed),
		ComplianceScore:     1 - environment.SafeRatio(float64(h.wrongDenials), routed),
	}
}

func (h *ClaimsRouting) Summary() map[string]any {
	return map[string]any{
		"claims_total":  h.initial,
		"claims_routed": h.routed,
		"leaked":        h.leaked,
		"wrong_denials": h.wrongDenials,
		"collected":     h.collected,
		"pending":       len(h.claims),
	}
}

func (h *ClaimsRouting) ActionLabels() []string {
	return claimsRoutingLabels
}

func (h *ClaimsRouting) ObservationSize() int {
	return claimsObservationSize
}
