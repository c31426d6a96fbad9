package confidence

import "strings"

// riskLevel is a per-file risk classification, independent of domain.RiskTag
// (which is the model's self-reported risk for a whole plan).
type riskLevel int

const (
	levelCritical riskLevel = iota
	levelHigh
	levelMedium
	levelLow
)

// riskScores maps each level to the score it contributes to the
// risk_modifier factor's mean.
var riskScores = map[riskLevel]float64{
	levelLow:      1.0,
	levelMedium:   0.7,
	levelHigh:     0.4,
	levelCritical: 0.1,
}

// riskPatterns is scanned CRITICAL -> LOW; the first pattern that matches a
// file's lowercased path decides its level. Order within a level does not
// matter, but level order does: a path matching both a HIGH and a CRITICAL
// pattern is CRITICAL.
var riskPatterns = []struct {
	level    riskLevel
	patterns []string
}{
	{levelCritical, []string{
		"auth", "security", "secret", "password", "database", "migration",
		"deploy", ".env", "credentials",
	}},
	{levelHigh, []string{
		"core/", "main.", "app.", "base.", "models/", "__init__.py",
	}},
	{levelMedium, []string{
		"utils/", "helpers/", "tools/", "config.", "settings.",
	}},
	{levelLow, []string{
		"test_", "_test.py", "tests/", "spec/", ".md", ".txt", ".rst",
		"readme", "license", "changelog",
	}},
}

// classifyFileRisk returns the risk level of path, defaulting to medium when
// nothing matches (an unremarkable file is treated as ordinary-risk, not as
// safe as a test file nor as dangerous as an auth module).
func classifyFileRisk(path string) riskLevel {
	lower := strings.ToLower(path)
	for _, bucket := range riskPatterns {
		for _, p := range bucket.patterns {
			if strings.Contains(lower, p) {
				return bucket.level
			}
		}
	}
	return levelMedium
}

// riskModifier is the mean of per-file risk scores across changedPaths. An
// empty change set scores 1.0 (no risk introduced), matching the zero-change
// boundary behavior for a plan that changes nothing.
func riskModifier(changedPaths []string) float64 {
	if len(changedPaths) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, p := range changedPaths {
		sum += riskScores[classifyFileRisk(p)]
	}
	return sum / float64(len(changedPaths))
}
