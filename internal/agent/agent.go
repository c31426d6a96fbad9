// Package agent builds the reasoning prompt for one attempt and converts the
// LLM's structured response into a domain.FixPlan.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/llm"
)

// maxEnumeratedFiles is the truncation limit on the repository file listing
// in the prompt.
const maxEnumeratedFiles = 15

// failingFileByteBudget bounds how much of the failing file's content is
// embedded in the prompt.
const failingFileByteBudget = 4000

// priorLogByteBudget bounds how much of the prior verification log is
// embedded when building the "previous attempt failed" block.
const priorLogByteBudget = 2000

// Generator is the minimal llm.Client surface this package depends on.
type Generator interface {
	GenerateStructured(ctx context.Context, prompt, modelTag, incidentID string) (llm.StructuredPlan, error)
}

// Agent builds prompts and converts responses into fix plans.
type Agent struct {
	client   Generator
	modelTag string
}

// New returns an Agent that calls client for structured generation, tagging
// requests with modelTag (the agents.marathon.model config key).
func New(client Generator, modelTag string) *Agent {
	return &Agent{client: client, modelTag: modelTag}
}

// PromptInputs bundles everything BuildPrompt needs.
type PromptInputs struct {
	Event               domain.IncidentEvent
	RepoFiles           []string
	DominantLanguageExt string
	FailingFilePath     string
	FailingFileContent  string
	AttemptIndex        int
	PriorPlan           *domain.FixPlan
	PriorFailureLog     string
}

// BuildPrompt assembles the full prompt in order: incident header, last
// failed step, truncated file enumeration, failing file content,
// prior-attempt block (attempts > 1), task footer.
func BuildPrompt(in PromptInputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Incident %s\nKind: %s\nRepository: %s\nBranch: %s\nCommit: %s\n\n",
		in.Event.ID, in.Event.Kind, in.Event.RepositoryPath, in.Event.Branch, in.Event.CommitID)

	if step, ok := in.Event.LastFailedStep(); ok {
		fmt.Fprintf(&b, "Last failed step: %s\nStatus: %s\nLogs:\n%s\n\n", step.Name, step.Status, step.Logs)
	}

	files := truncateFileList(in.RepoFiles, in.DominantLanguageExt, maxEnumeratedFiles)
	b.WriteString("Repository files:\n")
	for _, f := range files {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\n")

	if in.FailingFilePath != "" {
		fmt.Fprintf(&b, "Content of %s:\n%s\n\n", in.FailingFilePath, truncateBytes(in.FailingFileContent, failingFileByteBudget))
	}

	if in.AttemptIndex > 1 && in.PriorPlan != nil {
		b.WriteString("Previous attempt failed. Propose a DIFFERENT approach.\n")
		fmt.Fprintf(&b, "Previous root cause: %s\nPrevious rationale: %s\n", in.PriorPlan.RootCause, in.PriorPlan.Rationale)
		fmt.Fprintf(&b, "Previous verification log (tail):\n%s\n\n", tail(in.PriorFailureLog, priorLogByteBudget))
	}

	b.WriteString("Identify the root cause, propose the minimal fix, state the exact file changes, " +
		"and list the verification commands to run.")

	return b.String()
}

// truncateFileList keeps at most limit entries, prioritizing files whose
// extension matches dominantExt.
func truncateFileList(files []string, dominantExt string, limit int) []string {
	if len(files) <= limit {
		sorted := append([]string(nil), files...)
		sort.Strings(sorted)
		return sorted
	}

	var preferred, rest []string
	for _, f := range files {
		if dominantExt != "" && strings.HasSuffix(f, dominantExt) {
			preferred = append(preferred, f)
		} else {
			rest = append(rest, f)
		}
	}
	sort.Strings(preferred)
	sort.Strings(rest)

	out := append([]string(nil), preferred...)
	out = append(out, rest...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// riskTagAliases maps the lowercase model-reported risk string to a domain
// RiskTag, defaulting to RiskMedium for anything unrecognized.
var riskTagAliases = map[string]domain.RiskTag{
	"low":      domain.RiskLow,
	"medium":   domain.RiskMedium,
	"high":     domain.RiskHigh,
	"critical": domain.RiskCritical,
}

func toRiskTag(s string) domain.RiskTag {
	if tag, ok := riskTagAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return tag
	}
	return domain.RiskMedium
}

// toFixPlan converts an llm.StructuredPlan into a domain.FixPlan, attaching
// the attempt index and, for attempts > 1, the prior failure log as context.
func toFixPlan(sp llm.StructuredPlan, attemptIndex int, priorFailureLog string) domain.FixPlan {
	changes := make([]domain.FileChange, len(sp.FilesToChange))
	for i, fc := range sp.FilesToChange {
		changes[i] = domain.FileChange{
			FilePath:   fc.FilePath,
			ChangeType: domain.ChangeType(fc.ChangeType),
			Content:    fc.Content,
		}
	}

	plan := domain.FixPlan{
		RootCause:              sp.RootCause,
		Rationale:              sp.Rationale,
		FileChanges:            changes,
		VerificationCommands:   sp.VerificationCommands,
		SelfReportedConfidence: sp.Confidence,
		RiskTag:                toRiskTag(sp.RiskAssessment),
		AttemptIndex:           attemptIndex,
	}
	if attemptIndex > 1 {
		plan.PriorFailureLog = priorFailureLog
	}
	return plan
}

// Analyze builds the prompt from in, calls the client for a structured
// response, and returns the converted FixPlan.
func (a *Agent) Analyze(ctx context.Context, in PromptInputs) (domain.FixPlan, error) {
	prompt := BuildPrompt(in)
	sp, err := a.client.GenerateStructured(ctx, prompt, a.modelTag, in.Event.ID)
	if err != nil {
		return domain.FixPlan{}, err
	}
	return toFixPlan(sp, in.AttemptIndex, in.PriorFailureLog), nil
}
