package domain

import "fmt"

// Weight constants for the five confidence factors. These must sum to 1.0;
// the init() below asserts that at startup rather than leaving it as an
// implicit property someone could quietly break with a typo.
const (
	WeightTestPassRatio        = 0.35
	WeightInverseBlastRadius   = 0.25
	WeightAttemptPenalty       = 0.15
	WeightRiskModifier         = 0.15
	WeightSelfConsistencyScore = 0.10
)

const weightSumTolerance = 1e-9

func init() {
	sum := WeightTestPassRatio + WeightInverseBlastRadius + WeightAttemptPenalty +
		WeightRiskModifier + WeightSelfConsistencyScore
	if diff := sum - 1.0; diff > weightSumTolerance || diff < -weightSumTolerance {
		panic(fmt.Sprintf("domain: confidence weights sum to %.9f, want 1.0", sum))
	}
}

// Score combines the five factors into the final composite score, clamped to
// [0,1]. Each factor is expected to already be in [0,1]; Score clamps its own
// output defensively rather than trusting every caller got that right.
func (f ConfidenceFactors) Score() float64 {
	raw := WeightTestPassRatio*f.TestPassRatio +
		WeightInverseBlastRadius*f.InverseBlastRadius +
		WeightAttemptPenalty*f.AttemptPenalty +
		WeightRiskModifier*f.RiskModifier +
		WeightSelfConsistencyScore*f.SelfConsistencyScore
	return clamp01(raw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
