package llm

import "strings"

// FieldAliases maps the keys a model tends to emit instead of the canonical
// file-change entry field names. Kept as explicit data rather than ad-hoc
// string munging scattered through parsing code.
var FieldAliases = map[string]string{
	"file": "file_path",
	"path": "file_path",
	"type":   "change_type",
	"action": "change_type",
	"changes": "content",
	"patch":   "content",
	"diff":    "content",
	"code":    "content",
}

// ChangeTypeAliases maps the change-type values a model tends to emit to the
// three canonical ones.
var ChangeTypeAliases = map[string]string{
	"create": "add",
	"update": "modify",
	"edit":   "modify",
	"remove": "delete",
}

// NormalizeFields rewrites the keys of a decoded file-change map
// using FieldAliases, and normalizes the change_type value using
// ChangeTypeAliases. Returns a new map; the input is left untouched.
func NormalizeFields(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := FieldAliases[key]; ok {
			key = canonical
		}
		out[key] = v
	}
	if ct, ok := out["change_type"].(string); ok {
		lower := strings.ToLower(strings.TrimSpace(ct))
		if canonical, ok := ChangeTypeAliases[lower]; ok {
			lower = canonical
		}
		out["change_type"] = lower
	}
	return out
}

// HasRequiredFileChangeFields reports whether a normalized file-change map
// contains exactly the three fields a valid entry needs and no others
// (content may be absent for a delete).
func HasRequiredFileChangeFields(m map[string]any) bool {
	for k := range m {
		if k != "file_path" && k != "change_type" && k != "content" {
			return false
		}
	}
	_, hasPath := m["file_path"]
	_, hasType := m["change_type"]
	_, hasContent := m["content"]
	if !hasPath || !hasType {
		return false
	}
	// content is allowed to be empty/absent for delete operations.
	if ct, _ := m["change_type"].(string); ct != "delete" && !hasContent {
		return false
	}
	return true
}

// StructuredResponseSchema is the literal JSON schema description appended to
// structured prompts, matching StructuredPlan's fields. It is not a
// reflection-derived schema; the pack carries no schema-reflection library,
// so this is hand-written once per target shape the same way the original
// client embeds a literal schema plus worked example in the prompt.
const StructuredResponseSchema = `{
  "root_cause": "string",
  "rationale": "string",
  "files_to_change": [
    {"file_path": "string", "change_type": "modify|add|delete", "content": "string"}
  ],
  "verification_commands": ["string"],
  "confidence": "float in [0,1]",
  "risk_assessment": "low|medium|high|critical"
}`

// StructuredResponseExample is a worked example fixing the exact field names
// (file_path, change_type, content) the model historically confuses — it
// writes "file"/"path", "type"/"action", "patch"/"diff"/"changes" instead.
// Anchoring the prompt to one concrete, correctly-keyed instance pulls the
// model's output back toward the canonical shape before NormalizeFields ever
// has to run.
const StructuredResponseExample = `{
  "root_cause": "The subtract function returns a+b instead of a-b.",
  "rationale": "Fix the operator so the function matches its name.",
  "files_to_change": [
    {"file_path": "mathutil/subtract.go", "change_type": "modify", "content": "package mathutil\n\nfunc Subtract(a, b int) int {\n\treturn a - b\n}\n"}
  ],
  "verification_commands": ["go test ./..."],
  "confidence": 0.92,
  "risk_assessment": "low"
}`
