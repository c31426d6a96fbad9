package resolution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightingale-sre/nightingale/internal/domain"
)

func TestDecideBelowThresholdEscalates(t *testing.T) {
	g := NewGate()
	r := g.Decide(0.5, domain.ConfidenceFactors{TestPassRatio: 1, InverseBlastRadius: 1})
	require.Equal(t, domain.DecisionEscalate, r.Decision)
	require.False(t, r.SafetyOverrideTripped)
}

func TestDecideTestPassRatioOverride(t *testing.T) {
	g := NewGate()
	r := g.Decide(0.95, domain.ConfidenceFactors{TestPassRatio: 0.3, InverseBlastRadius: 1})
	require.Equal(t, domain.DecisionEscalate, r.Decision)
	require.True(t, r.SafetyOverrideTripped)
}

func TestDecideBlastRadiusOverride(t *testing.T) {
	g := NewGate()
	r := g.Decide(0.95, domain.ConfidenceFactors{TestPassRatio: 1, InverseBlastRadius: 0.20})
	require.Equal(t, domain.DecisionEscalate, r.Decision)
	require.True(t, r.SafetyOverrideTripped)
}

func TestDecideBlastRadiusNotTrippedAtPointFour(t *testing.T) {
	g := NewGate()
	r := g.Decide(0.95, domain.ConfidenceFactors{TestPassRatio: 1, InverseBlastRadius: 0.40})
	require.Equal(t, domain.DecisionResolve, r.Decision)
}

func TestDecideResolve(t *testing.T) {
	g := NewGate()
	r := g.Decide(0.90, domain.ConfidenceFactors{TestPassRatio: 1, InverseBlastRadius: 1})
	require.Equal(t, domain.DecisionResolve, r.Decision)
	require.False(t, r.SafetyOverrideTripped)
}

func TestApplyWritesToWorkingTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("old"), 0o644))

	err := Apply(root, []domain.FileChange{
		{FilePath: "new/dir/file.go", ChangeType: domain.ChangeAdd, Content: "package dir"},
		{FilePath: "old.txt", ChangeType: domain.ChangeDelete},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "new", "dir", "file.go"))
	require.NoError(t, err)
	require.Equal(t, "package dir", string(data))

	_, err = os.Stat(filepath.Join(root, "old.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestApplyRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	err := Apply(root, []domain.FileChange{{FilePath: "../outside.txt", ChangeType: domain.ChangeAdd, Content: "x"}})
	require.ErrorIs(t, err, ErrPathEscape)
}
