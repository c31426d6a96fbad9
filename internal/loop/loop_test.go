package loop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/llm"
)

type scriptedGenerator struct {
	plans []domain.FixPlan
	errs  []error
	calls int
}

func (g *scriptedGenerator) Analyze(ctx context.Context, attemptIndex int, priorPlan *domain.FixPlan, priorFailureLog string) (domain.FixPlan, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return domain.FixPlan{}, g.errs[i]
	}
	return g.plans[i], nil
}

type scriptedVerifier struct {
	results []domain.VerificationResult
	errs    []error
	calls   int
}

func (v *scriptedVerifier) Verify(ctx context.Context, plan domain.FixPlan) (domain.VerificationResult, error) {
	i := v.calls
	v.calls++
	if i < len(v.errs) && v.errs[i] != nil {
		return domain.VerificationResult{}, v.errs[i]
	}
	return v.results[i], nil
}

func TestLoopOneShotSuccess(t *testing.T) {
	gen := &scriptedGenerator{plans: []domain.FixPlan{{RootCause: "x"}}}
	ver := &scriptedVerifier{results: []domain.VerificationResult{{Success: true}}}

	l := New(gen, ver)
	plan, records, state := l.Run(context.Background())

	require.Equal(t, StateSucceeded, state)
	require.NotNil(t, plan)
	require.Len(t, records, 1)
	require.Equal(t, 1, records[0].AttemptIndex)
}

func TestLoopTwoAttemptConvergence(t *testing.T) {
	gen := &scriptedGenerator{plans: []domain.FixPlan{{RootCause: "wrong"}, {RootCause: "right"}}}
	ver := &scriptedVerifier{results: []domain.VerificationResult{
		{Success: false, CombinedOutput: "1 failed"},
		{Success: true},
	}}

	l := New(gen, ver)
	plan, records, state := l.Run(context.Background())

	require.Equal(t, StateSucceeded, state)
	require.NotNil(t, plan)
	require.Len(t, records, 2)
	require.Equal(t, 1, records[0].AttemptIndex)
	require.Equal(t, 2, records[1].AttemptIndex)
}

func TestLoopExhaustsAfterMaxAttempts(t *testing.T) {
	gen := &scriptedGenerator{plans: []domain.FixPlan{{}, {}, {}}}
	ver := &scriptedVerifier{results: []domain.VerificationResult{
		{Success: false}, {Success: false}, {Success: false},
	}}

	l := New(gen, ver)
	plan, records, state := l.Run(context.Background())

	require.Equal(t, StateExhausted, state)
	require.Nil(t, plan)
	require.Len(t, records, 3)
}

func TestLoopAbortsOnFatalGenerationError(t *testing.T) {
	gen := &scriptedGenerator{plans: []domain.FixPlan{{}}, errs: []error{llm.ErrQuotaExhausted}}
	ver := &scriptedVerifier{}

	l := New(gen, ver)
	plan, records, state := l.Run(context.Background())

	require.Equal(t, StateAborted, state)
	require.Nil(t, plan)
	require.Len(t, records, 1)
	require.Contains(t, records[0].FailureReason, "quota")
}

func TestAttemptIndicesMatchPositionInList(t *testing.T) {
	gen := &scriptedGenerator{plans: []domain.FixPlan{{}, {}, {}}}
	ver := &scriptedVerifier{results: []domain.VerificationResult{
		{Success: false}, {Success: false}, {Success: true},
	}}

	l := New(gen, ver)
	_, records, _ := l.Run(context.Background())
	for i, r := range records {
		require.Equal(t, i+1, r.AttemptIndex)
	}
}
