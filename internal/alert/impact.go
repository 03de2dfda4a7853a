package alert

// Impact dimension columns recognized by the assessor.
const (
	ColFinancialImpact    = "financial"
	ColOperationalImpact  = "operational"
	ColReputationalImpact = "reputational"
	ColRegulatoryImpact   = "regulatory"
)

// ImpactAssessor scores the business impact of anomalies as a weighted sum
// over whichever impact dimensions each row carries.
type ImpactAssessor struct {
	factors map[string]float64
}

// NewImpactAssessor builds an assessor. Nil factors select the default
// weighting biased toward financial impact.
func NewImpactAssessor(factors map[string]float64) *ImpactAssessor {
	if factors == nil {
		factors = map[string]float64{
			ColFinancialImpact:    0.4,
			ColOperationalImpact:  0.3,
			ColReputationalImpact: 0.2,
			ColRegulatoryImpact:   0.1,
		}
	}
	return &ImpactAssessor{factors: factors}
}

// AssessImpact computes one impact score in [0, 1] per row. Missing impact
// columns contribute zero.
func (a *ImpactAssessor) AssessImpact(rows []map[string]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		total := 0.0
		for col, w := range a.factors {
			if v, ok := row[col]; ok {
				total += w * v
			}
		}
		out[i] = clamp01(total)
	}
	return out
}
