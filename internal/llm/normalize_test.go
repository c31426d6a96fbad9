package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFieldsRenamesAliases(t *testing.T) {
	raw := map[string]any{
		"path":   "app/main.py",
		"action": "update",
		"diff":   "print('hi')",
	}
	got := NormalizeFields(raw)
	require.Equal(t, "app/main.py", got["file_path"])
	require.Equal(t, "modify", got["change_type"])
	require.Equal(t, "print('hi')", got["content"])
}

func TestNormalizeFieldsLeavesCanonicalKeysAlone(t *testing.T) {
	raw := map[string]any{
		"file_path":   "a.go",
		"change_type": "add",
		"content":     "package a",
	}
	got := NormalizeFields(raw)
	require.Equal(t, raw["file_path"], got["file_path"])
	require.Equal(t, raw["change_type"], got["change_type"])
	require.Equal(t, raw["content"], got["content"])
}

func TestHasRequiredFileChangeFields(t *testing.T) {
	require.True(t, HasRequiredFileChangeFields(map[string]any{
		"file_path": "a.go", "change_type": "modify", "content": "x",
	}))
	require.True(t, HasRequiredFileChangeFields(map[string]any{
		"file_path": "a.go", "change_type": "delete",
	}))
	require.False(t, HasRequiredFileChangeFields(map[string]any{
		"file_path": "a.go",
	}))
	require.False(t, HasRequiredFileChangeFields(map[string]any{
		"change_type": "modify", "content": "x",
	}))
}
