package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nightingale-sre/nightingale/internal/domain"
)

// renderedLogTail bounds how much of the winning or final attempt's combined
// output is embedded in the rendered report.
const renderedLogTail = 500

// render builds the human-readable incident report text, grounded on the
// same Status/Confidence/Diagnosis/Verification section ordering the
// original analysis module used for its plaintext summary.
func render(report domain.IncidentReport, event domain.IncidentEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Nightingale Incident Report: %s\n", report.IncidentID)
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(report.Decision)))
	fmt.Fprintf(&b, "Confidence Score: %.3f\n\n", report.Score)

	b.WriteString("Incident Details\n")
	fmt.Fprintf(&b, "  Repository: %s\n", event.RepositoryPath)
	fmt.Fprintf(&b, "  Branch: %s\n", event.Branch)
	fmt.Fprintf(&b, "  Commit: %s\n", event.CommitID)
	if step, ok := event.LastFailedStep(); ok {
		fmt.Fprintf(&b, "  Failed step: %s (%s)\n", step.Name, step.Status)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Attempts: %d\n", len(report.Attempts))
	for _, a := range report.Attempts {
		if a.FailureReason != "" {
			fmt.Fprintf(&b, "  #%d: failed — %s\n", a.AttemptIndex, a.FailureReason)
			continue
		}
		if a.VerificationResult != nil {
			fmt.Fprintf(&b, "  #%d: success=%v tests=%d/%d\n", a.AttemptIndex,
				a.VerificationResult.Success, a.VerificationResult.TestsPassed, a.VerificationResult.TestsTotal)
		}
	}
	b.WriteString("\n")

	if report.WinningPlan != nil {
		b.WriteString("Diagnosis\n")
		fmt.Fprintf(&b, "  Root cause: %s\n", report.WinningPlan.RootCause)
		fmt.Fprintf(&b, "  Rationale: %s\n", report.WinningPlan.Rationale)
		fmt.Fprintf(&b, "  Files changed: %d\n\n", len(report.WinningPlan.FileChanges))
	}

	if report.WinningResult != nil {
		b.WriteString("Verification\n")
		fmt.Fprintf(&b, "  Last exit code: %d\n", report.WinningResult.LastExitCode)
		b.WriteString("  Log tail:\n")
		b.WriteString(indent(tailRunes(report.WinningResult.CombinedOutput, renderedLogTail)))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nFactors: test_pass_ratio=%.2f inverse_blast_radius=%.2f attempt_penalty=%.2f risk_modifier=%.2f self_consistency=%.2f\n",
		report.Factors.TestPassRatio, report.Factors.InverseBlastRadius, report.Factors.AttemptPenalty,
		report.Factors.RiskModifier, report.Factors.SelfConsistencyScore)

	return b.String()
}

func tailRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
