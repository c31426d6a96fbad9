package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/llm"
)

func TestBuildPromptIncludesCoreSections(t *testing.T) {
	prompt := BuildPrompt(PromptInputs{
		Event: domain.IncidentEvent{
			ID: "inc-1", Kind: "test", RepositoryPath: "/repo", Branch: "main", CommitID: "abc123",
			FailedSteps: []domain.PipelineStep{{Name: "pytest", Status: "failed", Logs: "AssertionError"}},
		},
		RepoFiles:           []string{"a.py", "b.py"},
		DominantLanguageExt: ".py",
		FailingFilePath:      "test_app.py",
		FailingFileContent:   "assert subtract(2,2) == 1",
		AttemptIndex:         1,
	})
	require.Contains(t, prompt, "inc-1")
	require.Contains(t, prompt, "pytest")
	require.Contains(t, prompt, "AssertionError")
	require.Contains(t, prompt, "test_app.py")
	require.Contains(t, prompt, "assert subtract")
	require.NotContains(t, prompt, "Previous attempt failed")
}

func TestBuildPromptIncludesPriorAttemptBlockWhenAttemptGreaterThanOne(t *testing.T) {
	prior := &domain.FixPlan{RootCause: "wrong assumption", Rationale: "tried X"}
	prompt := BuildPrompt(PromptInputs{
		Event:           domain.IncidentEvent{ID: "inc-1"},
		AttemptIndex:    2,
		PriorPlan:       prior,
		PriorFailureLog: "1 failed",
	})
	require.Contains(t, prompt, "Previous attempt failed")
	require.Contains(t, prompt, "wrong assumption")
	require.Contains(t, prompt, "1 failed")
}

func TestBuildPromptTruncatesFileListPreferringDominantExtension(t *testing.T) {
	var files []string
	for i := 0; i < 20; i++ {
		files = append(files, "other.txt")
	}
	for i := 0; i < 5; i++ {
		files = append(files, "main.py")
	}
	prompt := BuildPrompt(PromptInputs{
		Event:               domain.IncidentEvent{ID: "inc-1"},
		RepoFiles:            files,
		DominantLanguageExt: ".py",
		AttemptIndex:        1,
	})
	require.Contains(t, prompt, "main.py")
	require.LessOrEqual(t, strings.Count(prompt, "- "), maxEnumeratedFiles)
}

func TestToRiskTagDefaultsToMedium(t *testing.T) {
	require.Equal(t, domain.RiskLow, toRiskTag("Low"))
	require.Equal(t, domain.RiskMedium, toRiskTag("nonsense"))
	require.Equal(t, domain.RiskMedium, toRiskTag(""))
}

type fakeGenerator struct {
	plan llm.StructuredPlan
	err  error
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt, modelTag, incidentID string) (llm.StructuredPlan, error) {
	return f.plan, f.err
}

func TestAnalyzeConvertsStructuredPlanToFixPlan(t *testing.T) {
	gen := &fakeGenerator{plan: llm.StructuredPlan{
		RootCause: "x", Rationale: "y",
		FilesToChange: []llm.StructuredFileChange{{FilePath: "a.py", ChangeType: "modify", Content: "z"}},
		Confidence:    0.8,
		RiskAssessment: "high",
	}}
	a := New(gen, "nightingale-reasoner")

	plan, err := a.Analyze(context.Background(), PromptInputs{
		Event:        domain.IncidentEvent{ID: "inc-1"},
		AttemptIndex: 1,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RiskHigh, plan.RiskTag)
	require.Len(t, plan.FileChanges, 1)
	require.Equal(t, 1, plan.AttemptIndex)
}
