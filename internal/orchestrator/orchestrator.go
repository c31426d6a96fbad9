// Package orchestrator composes the repository context loader, workflow
// parser, reflective reasoning loop, sandbox verifier, confidence scorer, and
// resolution gate into the single process_incident control flow. It is the
// only package that imports every other core package.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/nightingale-sre/nightingale/internal/agent"
	"github.com/nightingale-sre/nightingale/internal/confidence"
	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/llm"
	"github.com/nightingale-sre/nightingale/internal/loop"
	"github.com/nightingale-sre/nightingale/internal/nlog"
	"github.com/nightingale-sre/nightingale/internal/repocontext"
	"github.com/nightingale-sre/nightingale/internal/resolution"
	"github.com/nightingale-sre/nightingale/internal/sandbox"
	"github.com/nightingale-sre/nightingale/internal/verify"
	"github.com/nightingale-sre/nightingale/internal/workflow"
)

// DefaultModelTag names the reasoning model unless overridden by config, per
// the agents.marathon.model key in SPEC_FULL.md's ambient config section.
const DefaultModelTag = "nightingale-reasoner-marathon"

// Orchestrator is the explicit collaborator composing every core package.
// Nothing about it is a package-level singleton: the CLI constructs one per
// process and injects it with the collaborators it needs.
type Orchestrator struct {
	llmClient        *llm.Client
	logger           *nlog.Logger
	modelTag         string
	maxAttempts      int
	resolveThreshold float64
	gate             *repoGate
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModelTag overrides DefaultModelTag.
func WithModelTag(tag string) Option {
	return func(o *Orchestrator) { o.modelTag = tag }
}

// WithMaxAttempts overrides loop.DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) { o.maxAttempts = n }
}

// WithResolveThreshold overrides resolution.DefaultResolveThreshold.
func WithResolveThreshold(t float64) Option {
	return func(o *Orchestrator) { o.resolveThreshold = t }
}

// New returns an Orchestrator ready to process incidents against llmClient.
func New(llmClient *llm.Client, logger *nlog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llmClient:        llmClient,
		logger:           logger,
		modelTag:         DefaultModelTag,
		maxAttempts:      loop.DefaultMaxAttempts,
		resolveThreshold: resolution.DefaultResolveThreshold,
		gate:             newRepoGate(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sandboxRunnerAdapter satisfies verify.Runner over *sandbox.Sandbox,
// translating sandbox.CommandResult into verify.RunResult so the two
// packages never need to import one another.
type sandboxRunnerAdapter struct {
	sb *sandbox.Sandbox
}

func (a sandboxRunnerAdapter) Run(ctx context.Context, command string) verify.RunResult {
	r := a.sb.Run(ctx, command)
	return verify.RunResult{ExitCode: r.ExitCode, Output: r.Output}
}

// verifierAdapter satisfies loop.Verifier. Each call performs a fresh
// Setup/Apply/Verify/Cleanup cycle against a brand new sandbox so an earlier
// attempt's file mutations never leak into a later one.
type verifierAdapter struct {
	repoPath    string
	sandboxLog  sandbox.Logger
	sandboxRuns *int
}

func (v *verifierAdapter) Verify(ctx context.Context, plan domain.FixPlan) (domain.VerificationResult, error) {
	sb, err := sandbox.New(v.repoPath, sandbox.WithLogger(v.sandboxLog))
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("orchestrator: allocate sandbox: %w", err)
	}
	if err := sb.Setup(); err != nil {
		return domain.VerificationResult{}, err
	}
	defer sb.Cleanup()

	if err := sb.Apply(plan.FileChanges); err != nil {
		return domain.VerificationResult{}, err
	}

	*v.sandboxRuns += len(plan.VerificationCommands)
	result := verify.Verify(ctx, sandboxRunnerAdapter{sb: sb}, plan)
	return result, nil
}

// incidentGenerator adapts *agent.Agent to loop.Generator, closing over the
// per-incident context (event, repository file listing, failing file
// content) that the loop's narrower signature doesn't carry, and falling
// back to the workflow-discovered test commands when a proposed plan omits
// its own verification commands.
type incidentGenerator struct {
	agent               *agent.Agent
	event               domain.IncidentEvent
	repoFiles           []string
	dominantExt         string
	failingFilePath     string
	failingFileContent  string
	fallbackTestCmds    []string
}

func (g *incidentGenerator) Analyze(ctx context.Context, attemptIndex int, priorPlan *domain.FixPlan, priorFailureLog string) (domain.FixPlan, error) {
	plan, err := g.agent.Analyze(ctx, agent.PromptInputs{
		Event:               g.event,
		RepoFiles:           g.repoFiles,
		DominantLanguageExt: g.dominantExt,
		FailingFilePath:     g.failingFilePath,
		FailingFileContent:  g.failingFileContent,
		AttemptIndex:        attemptIndex,
		PriorPlan:           priorPlan,
		PriorFailureLog:     priorFailureLog,
	})
	if err != nil {
		return domain.FixPlan{}, err
	}
	if len(plan.VerificationCommands) == 0 {
		plan.VerificationCommands = g.fallbackTestCmds
	}
	return plan, nil
}

// failingFilePathFromEvent reads the optional "failing_file" metadata key an
// adapter may have set when it had a specific file in hand (a webhook payload
// with a compiler error pointing at one path, for instance). Its absence is
// normal: the agent still gets the last failed step's log text either way.
func failingFilePathFromEvent(event domain.IncidentEvent) string {
	return event.Metadata["failing_file"]
}

// ProcessIncident runs the full pipeline for one incident: load repository
// context, discover test commands, drive the reflective loop, score the
// winning attempt (an exhausted or aborted run scores zero), apply the
// resolution gate, and — only on resolve — mutate the working tree. Failures
// (quota exhaustion, schema validation, sandbox errors) are reflected in the
// returned report's Decision; the returned error is always nil. A call for a
// repository that already has an incident in flight blocks until that
// incident finishes.
func (o *Orchestrator) ProcessIncident(ctx context.Context, event domain.IncidentEvent) (domain.IncidentReport, error) {
	start := time.Now()
	release := o.gate.Acquire(event.RepositoryPath)
	defer release()

	o.logger.IncidentStart(event.ID, event.Kind, event.RepositoryPath)

	loader := repocontext.New(event.RepositoryPath)
	files, err := loader.ListFiles(ctx)
	if err != nil {
		o.logger.Warn("orchestrator: repository context unavailable, continuing with empty file list", map[string]any{
			"incident_id": event.ID, "error": err.Error(),
		})
		files = nil
	}
	dominantExt := repocontext.DominantExtension(files)

	failingPath := failingFilePathFromEvent(event)
	var failingContent string
	if failingPath != "" {
		if content, err := loader.FileContent(ctx, "HEAD", failingPath); err == nil {
			failingContent = content
		}
	}

	parser := workflow.New(event.RepositoryPath)
	fallbackTestCmds, err := parser.GetTestCommands()
	if err != nil {
		fallbackTestCmds = nil
	}

	sandboxRuns := 0
	gen := &incidentGenerator{
		agent:              agent.New(o.llmClient, o.modelTag),
		event:              event,
		repoFiles:          files,
		dominantExt:        dominantExt,
		failingFilePath:    failingPath,
		failingFileContent: failingContent,
		fallbackTestCmds:   fallbackTestCmds,
	}
	ver := &verifierAdapter{repoPath: event.RepositoryPath, sandboxLog: o.logger, sandboxRuns: &sandboxRuns}

	callsBefore := o.llmClient.Metrics()
	plan, records, state := loop.New(gen, ver).WithMaxAttempts(o.maxAttempts).Run(ctx)
	callsAfter := o.llmClient.Metrics()

	metrics := domain.Metrics{
		AttemptCount:    len(records),
		LLMCallCount:    callsAfter.CallCount - callsBefore.CallCount,
		TokenCount:      callsAfter.TokenCount - callsBefore.TokenCount,
		SandboxRunCount: sandboxRuns,
	}

	report := domain.IncidentReport{
		IncidentID: event.ID,
		Attempts:   records,
		Metrics:    metrics,
	}

	switch state {
	case loop.StateAborted:
		// Quota exhaustion or any other fatal generation error forces an
		// escalation with a zero score: there is nothing to evaluate.
		report.Decision = domain.DecisionEscalate
		report.Factors = domain.ConfidenceFactors{}
		report.Score = 0
		o.logger.Decision(event.ID, string(report.Decision), lastFailureReason(records))

	case loop.StateExhausted:
		// Every attempt failed verification: per spec.md §7/§8 the score is
		// forced to zero rather than the last (failing) attempt's weighted
		// composite, which can never actually reach zero on its own
		// (attempt_penalty alone is 0.4 at attempt 3).
		last := records[len(records)-1]
		report.Factors = domain.ConfidenceFactors{}
		report.Score = 0
		report.Decision = domain.DecisionEscalate
		if last.VerificationResult != nil {
			report.WinningResult = last.VerificationResult
		}
		o.logger.Decision(event.ID, string(report.Decision), "attempts exhausted without a passing verification")

	case loop.StateSucceeded:
		last := records[len(records)-1]
		factors, score := o.scoreAttempt(event.ID, last, files)
		report.Factors = factors
		report.Score = score
		report.WinningPlan = plan
		report.WinningResult = last.VerificationResult

		gate := &resolution.Gate{ResolveThreshold: o.resolveThreshold}
		decision := gate.Decide(score, factors)
		report.Decision = decision.Decision

		if decision.Decision == domain.DecisionResolve {
			if err := resolution.Apply(event.RepositoryPath, plan.FileChanges); err != nil {
				report.Decision = domain.DecisionEscalate
				o.logger.Warn("orchestrator: applying resolved plan failed, escalating instead", map[string]any{
					"incident_id": event.ID, "error": err.Error(),
				})
			} else {
				report.Metrics.FilesModified = len(plan.FileChanges)
			}
		}
		o.logger.Decision(event.ID, string(report.Decision), decision.Reason)

	default:
		report.Decision = domain.DecisionEscalate
		o.logger.Decision(event.ID, string(report.Decision), "loop returned an unexpected state")
	}

	report.Metrics.TotalDuration = time.Since(start)
	report.RenderedText = render(report, event)
	return report, nil
}

func (o *Orchestrator) scoreAttempt(incidentID string, record domain.AttemptRecord, files []string) (domain.ConfidenceFactors, float64) {
	if record.Plan == nil || record.VerificationResult == nil {
		return domain.ConfidenceFactors{}, 0
	}
	factors := confidence.Compute(confidence.Input{
		Verification: *record.VerificationResult,
		Plan:         *record.Plan,
		TotalFiles:   len(files),
	})
	score := factors.Score()
	o.logger.ConfidenceBreakdown(incidentID, map[string]float64{
		"test_pass_ratio":        factors.TestPassRatio,
		"inverse_blast_radius":   factors.InverseBlastRadius,
		"attempt_penalty":        factors.AttemptPenalty,
		"risk_modifier":          factors.RiskModifier,
		"self_consistency_score": factors.SelfConsistencyScore,
	}, score)
	return factors, score
}

func lastFailureReason(records []domain.AttemptRecord) string {
	if len(records) == 0 {
		return "aborted"
	}
	return records[len(records)-1].FailureReason
}
