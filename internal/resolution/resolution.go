// Package resolution applies the confidence score's resolve/escalate
// threshold and its two safety overrides, and — only on resolve — mutates
// the working repository tree.
package resolution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nightingale-sre/nightingale/internal/domain"
)

// DefaultResolveThreshold is the minimum composite score the gate requires
// before it will resolve an incident automatically.
const DefaultResolveThreshold = 0.85

const (
	testPassRatioOverrideThreshold      = 0.5
	inverseBlastRadiusOverrideThreshold = 0.3
)

// Result is the gate's verdict: a decision plus the reason and whether a
// safety override tripped.
type Result struct {
	Decision              domain.Decision
	Reason                string
	SafetyOverrideTripped bool
}

// Gate applies the three-step threshold-and-override algorithm over a score
// and its factors. It does not write to the working tree; the package-level
// Apply does that, with the same whole-file semantics as the sandbox.
type Gate struct {
	ResolveThreshold float64
}

// NewGate returns a Gate with the default resolve threshold.
func NewGate() *Gate {
	return &Gate{ResolveThreshold: DefaultResolveThreshold}
}

// Decide returns the resolve/escalate verdict for score and factors. It does
// not apply anything; call Apply separately once the caller is ready to
// mutate the working tree.
func (g *Gate) Decide(score float64, factors domain.ConfidenceFactors) Result {
	threshold := g.ResolveThreshold
	if threshold == 0 {
		threshold = DefaultResolveThreshold
	}

	if score < threshold {
		return Result{Decision: domain.DecisionEscalate, Reason: fmt.Sprintf("score %.3f below threshold %.3f", score, threshold)}
	}
	if factors.TestPassRatio < testPassRatioOverrideThreshold {
		return Result{
			Decision: domain.DecisionEscalate, SafetyOverrideTripped: true,
			Reason: fmt.Sprintf("test_pass_ratio %.3f below %.2f despite high score", factors.TestPassRatio, testPassRatioOverrideThreshold),
		}
	}
	if factors.InverseBlastRadius < inverseBlastRadiusOverrideThreshold {
		return Result{
			Decision: domain.DecisionEscalate, SafetyOverrideTripped: true,
			Reason: fmt.Sprintf("inverse_blast_radius %.3f below %.2f: sweeping change", factors.InverseBlastRadius, inverseBlastRadiusOverrideThreshold),
		}
	}
	return Result{Decision: domain.DecisionResolve, Reason: "score and safety overrides clear"}
}

// Apply writes plan's file changes into the working tree rooted at repoRoot.
// It is only ever called by the orchestrator after Decide returned Resolve;
// the gate itself never writes on an escalate verdict.
func Apply(repoRoot string, changes []domain.FileChange) error {
	for _, c := range changes {
		dst, err := resolveInRoot(repoRoot, c.FilePath)
		if err != nil {
			return err
		}
		switch c.ChangeType {
		case domain.ChangeModify, domain.ChangeAdd:
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("resolution: mkdir parent for %s: %w", c.FilePath, err)
			}
			if err := os.WriteFile(dst, []byte(c.Content), 0o644); err != nil {
				return fmt.Errorf("resolution: write %s: %w", c.FilePath, err)
			}
		case domain.ChangeDelete:
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("resolution: delete %s: %w", c.FilePath, err)
			}
		default:
			return fmt.Errorf("resolution: unknown change type %q for %s", c.ChangeType, c.FilePath)
		}
	}
	return nil
}

var ErrPathEscape = fmt.Errorf("resolution: file change path escapes repository root")

func resolveInRoot(root, relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", ErrPathEscape
	}
	joined := filepath.Join(root, relPath)
	cleanRoot := filepath.Clean(root)
	cleanJoined := filepath.Clean(joined)
	if cleanJoined != cleanRoot && !strings.HasPrefix(cleanJoined, cleanRoot+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return cleanJoined, nil
}
