package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredFileChange is the decoded, normalized shape of one entry in
// files_to_change, before conversion to domain.FileChange.
type StructuredFileChange struct {
	FilePath   string `json:"file_path"`
	ChangeType string `json:"change_type"`
	Content    string `json:"content"`
}

// StructuredPlan is the decoded, normalized shape of a full structured
// response, mirroring the reasoning agent's required response fields.
type StructuredPlan struct {
	RootCause            string                 `json:"root_cause"`
	Rationale            string                 `json:"rationale"`
	FilesToChange        []StructuredFileChange `json:"files_to_change"`
	VerificationCommands []string               `json:"verification_commands"`
	Confidence           float64                `json:"confidence"`
	RiskAssessment       string                 `json:"risk_assessment"`
}

// stripCodeFence removes a single leading/trailing ```...``` fence, if
// present, tolerating an optional language tag on the opening fence.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		first := strings.TrimSpace(t[:nl])
		if first == "" || !strings.ContainsAny(first, " \t{") {
			t = t[nl+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// parseStructuredPlan decodes raw model text into a StructuredPlan, applying
// field-alias normalization to each files_to_change entry before decoding it
// into the typed struct. Returns a descriptive error suitable for embedding
// in a corrective re-prompt on failure.
func parseStructuredPlan(text string) (StructuredPlan, error) {
	cleaned := stripCodeFence(text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return StructuredPlan{}, fmt.Errorf("invalid JSON: %w", err)
	}

	plan := StructuredPlan{
		RootCause:      stringField(raw, "root_cause"),
		Rationale:      stringField(raw, "rationale"),
		RiskAssessment: stringField(raw, "risk_assessment"),
	}
	if c, ok := raw["confidence"].(float64); ok {
		plan.Confidence = c
	}

	rawFiles, _ := raw["files_to_change"].([]any)
	for i, rf := range rawFiles {
		m, ok := rf.(map[string]any)
		if !ok {
			return StructuredPlan{}, fmt.Errorf("files_to_change[%d] is not an object", i)
		}
		normalized := NormalizeFields(m)
		if !HasRequiredFileChangeFields(normalized) {
			return StructuredPlan{}, fmt.Errorf("files_to_change[%d] has missing or unexpected fields after normalization", i)
		}
		plan.FilesToChange = append(plan.FilesToChange, StructuredFileChange{
			FilePath:   stringField(normalized, "file_path"),
			ChangeType: stringField(normalized, "change_type"),
			Content:    stringField(normalized, "content"),
		})
	}

	rawCmds, _ := raw["verification_commands"].([]any)
	for _, rc := range rawCmds {
		if s, ok := rc.(string); ok {
			plan.VerificationCommands = append(plan.VerificationCommands, s)
		}
	}

	if plan.RootCause == "" || plan.Rationale == "" {
		return StructuredPlan{}, fmt.Errorf("missing root_cause or rationale")
	}

	return plan, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
