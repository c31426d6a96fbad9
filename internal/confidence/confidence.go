// Package confidence computes the five weighted factors and their composite
// score for one attempt's verification result and plan, following the
// blast-radius and attempt-penalty tables.
package confidence

import "github.com/nightingale-sre/nightingale/internal/domain"

// attemptPenaltyTable is the lookup table: 1.0, 0.7, 0.4 for
// attempts 1, 2, 3; default 0.3 beyond (the loop bound prevents attempt 4
// from ever actually occurring).
var attemptPenaltyTable = map[int]float64{1: 1.0, 2: 0.7, 3: 0.4}

const defaultAttemptPenalty = 0.3

func attemptPenalty(attemptIndex int) float64 {
	if p, ok := attemptPenaltyTable[attemptIndex]; ok {
		return p
	}
	return defaultAttemptPenalty
}

// Input bundles everything the scorer needs for one attempt.
type Input struct {
	Verification domain.VerificationResult
	Plan         domain.FixPlan
	TotalFiles   int
}

// Compute derives the five ConfidenceFactors for one attempt.
func Compute(in Input) domain.ConfidenceFactors {
	changedPaths := make([]string, len(in.Plan.FileChanges))
	for i, fc := range in.Plan.FileChanges {
		changedPaths[i] = fc.FilePath
	}

	totalFiles := in.TotalFiles
	if totalFiles <= 0 {
		totalFiles = 1
	}

	ratio := float64(len(changedPaths)) / float64(totalFiles)
	if ratio > 1 {
		ratio = 1
	}

	return domain.ConfidenceFactors{
		TestPassRatio:        testPassRatio(in.Verification),
		InverseBlastRadius:   1 - ratio,
		AttemptPenalty:       attemptPenalty(in.Plan.AttemptIndex),
		RiskModifier:         riskModifier(changedPaths),
		SelfConsistencyScore: clamp01(in.Plan.SelfReportedConfidence),
	}
}

// testPassRatio is passed/total on success, else 0 — not the same rule as
// domain.VerificationResult.PassRatio, which covers the zero-commands
// boundary case differently to keep pass_ratio within [0,1] in every case.
func testPassRatio(v domain.VerificationResult) float64 {
	if !v.Success || v.TestsTotal == 0 {
		return 0
	}
	return clamp01(float64(v.TestsPassed) / float64(v.TestsTotal))
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
