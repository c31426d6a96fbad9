package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStructuredPlanHappyPath(t *testing.T) {
	text := `{
		"root_cause": "off by one",
		"rationale": "fix the assertion",
		"files_to_change": [
			{"file_path": "test_app.py", "change_type": "modify", "content": "assert subtract(2,2) == 0"}
		],
		"verification_commands": ["python -m pytest -v"],
		"confidence": 0.92,
		"risk_assessment": "low"
	}`
	plan, err := parseStructuredPlan(text)
	require.NoError(t, err)
	require.Equal(t, "off by one", plan.RootCause)
	require.Len(t, plan.FilesToChange, 1)
	require.Equal(t, "test_app.py", plan.FilesToChange[0].FilePath)
	require.InDelta(t, 0.92, plan.Confidence, 1e-9)
}

func TestParseStructuredPlanStripsCodeFence(t *testing.T) {
	text := "```json\n" + `{"root_cause":"x","rationale":"y","files_to_change":[],"verification_commands":[],"confidence":0.5,"risk_assessment":"low"}` + "\n```"
	plan, err := parseStructuredPlan(text)
	require.NoError(t, err)
	require.Equal(t, "x", plan.RootCause)
}

func TestParseStructuredPlanNormalizesAliasedFileFields(t *testing.T) {
	text := `{
		"root_cause": "x", "rationale": "y",
		"files_to_change": [{"path": "a.go", "action": "create", "code": "package a"}],
		"verification_commands": [], "confidence": 0.5, "risk_assessment": "medium"
	}`
	plan, err := parseStructuredPlan(text)
	require.NoError(t, err)
	require.Len(t, plan.FilesToChange, 1)
	require.Equal(t, "a.go", plan.FilesToChange[0].FilePath)
	require.Equal(t, "add", plan.FilesToChange[0].ChangeType)
	require.Equal(t, "package a", plan.FilesToChange[0].Content)
}

func TestParseStructuredPlanRejectsInvalidJSON(t *testing.T) {
	_, err := parseStructuredPlan("not json at all")
	require.Error(t, err)
}

func TestParseStructuredPlanRejectsMissingFields(t *testing.T) {
	text := `{"files_to_change": [{"file_path": "a.go"}]}`
	_, err := parseStructuredPlan(text)
	require.Error(t, err)
}
