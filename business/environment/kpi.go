package environment

// KPIMetrics is a snapshot of the domain state, independent of the reward path.
// Timestamp is the episode step counter at the time of the snapshot.
type KPIMetrics struct {
	ClinicalOutcomes      map[string]float64 `json:"clinical_outcomes"`
	OperationalEfficiency map[string]float64 `json:"operational_efficiency"`
	FinancialMetrics      map[string]float64 `json:"financial_metrics"`
	PatientSatisfaction   float64            `json:"patient_satisfaction"`
	RiskScore             float64            `json:"risk_score"`
	ComplianceScore       float64            `json:"compliance_score"`
	Timestamp             int                `json:"timestamp"`
}

// clone deep-copies the maps so callers cannot reach back into hook state.
func (k KPIMetrics) clone() KPIMetrics {
	k.ClinicalOutcomes = copyMetrics(k.ClinicalOutcomes)
	k.OperationalEfficiency = copyMetrics(k.OperationalEfficiency)
	k.FinancialMetrics = copyMetrics(k.FinancialMetrics)
	return k
}

func copyMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SafeRatio returns num/den, or 0 when den is zero. Hooks use it to stay total
// over an empty working set.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
