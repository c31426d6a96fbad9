// Package loop implements the reflective multi-attempt reasoning loop as a
// small explicit state machine, not a generic FSM library.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/llm"
)

// State is one of the reflective loop's seven states.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateVerifying
	StateReflecting
	StateSucceeded
	StateExhausted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateVerifying:
		return "verifying"
	case StateReflecting:
		return "reflecting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// DefaultMaxAttempts bounds how many attempts the reflective loop drives
// before giving up.
const DefaultMaxAttempts = 3

// Generator produces a plan for one attempt, given the prior plan and
// failure log when attemptIndex > 1.
type Generator interface {
	Analyze(ctx context.Context, attemptIndex int, priorPlan *domain.FixPlan, priorFailureLog string) (domain.FixPlan, error)
}

// Verifier resets the sandbox, applies a plan's changes, and runs
// verification, returning the result.
type Verifier interface {
	Verify(ctx context.Context, plan domain.FixPlan) (domain.VerificationResult, error)
}

// Loop drives the reflective loop to a terminal state.
type Loop struct {
	generator   Generator
	verifier    Verifier
	maxAttempts int
}

// New returns a Loop with the given collaborators and DefaultMaxAttempts.
func New(generator Generator, verifier Verifier) *Loop {
	return &Loop{generator: generator, verifier: verifier, maxAttempts: DefaultMaxAttempts}
}

// WithMaxAttempts overrides the attempt bound.
func (l *Loop) WithMaxAttempts(n int) *Loop {
	l.maxAttempts = n
	return l
}

// Run drives the state machine from idle to a terminal state, returning the
// winning plan (nil unless the loop reached succeeded) and every attempt
// record, appended exactly once per attempt regardless of terminal state.
func (l *Loop) Run(ctx context.Context) (*domain.FixPlan, []domain.AttemptRecord, State) {
	state := StateIdle
	var records []domain.AttemptRecord
	var priorPlan *domain.FixPlan
	var priorFailureLog string
	attemptIndex := 1

	state = StateGenerating
	var pendingPlan *domain.FixPlan
	var pendingStart time.Time

	for {
		switch state {
		case StateGenerating:
			pendingStart = time.Now()
			plan, err := l.generator.Analyze(ctx, attemptIndex, priorPlan, priorFailureLog)
			if err != nil {
				records = append(records, domain.AttemptRecord{
					AttemptIndex: attemptIndex, StartedAt: pendingStart, EndedAt: time.Now(),
					FailureReason: err.Error(),
				})
				if errors.Is(err, llm.ErrQuotaExhausted) || isFatal(err) {
					state = StateAborted
					continue
				}
				// SchemaValidation or any other generation failure: treated
				// as a failed attempt within the current slot.
				if attemptIndex == l.maxAttempts {
					state = StateExhausted
					continue
				}
				priorFailureLog = err.Error()
				attemptIndex++
				state = StateGenerating
				continue
			}

			priorPlan = &plan
			pendingPlan = &plan
			state = StateVerifying

		case StateVerifying:
			result, err := l.verifier.Verify(ctx, *pendingPlan)
			if err != nil {
				records = append(records, domain.AttemptRecord{
					AttemptIndex: attemptIndex, Plan: pendingPlan,
					StartedAt: pendingStart, EndedAt: time.Now(), FailureReason: err.Error(),
				})
				if attemptIndex == l.maxAttempts {
					state = StateExhausted
					continue
				}
				priorFailureLog = err.Error()
				attemptIndex++
				state = StateGenerating
				continue
			}

			records = append(records, domain.AttemptRecord{
				AttemptIndex: attemptIndex, Plan: pendingPlan, VerificationResult: &result,
				StartedAt: pendingStart, EndedAt: time.Now(),
			})

			if result.Success {
				state = StateSucceeded
				continue
			}

			if attemptIndex == l.maxAttempts {
				state = StateExhausted
				continue
			}
			priorFailureLog = result.CombinedOutput
			state = StateReflecting

		case StateReflecting:
			attemptIndex++
			state = StateGenerating

		case StateSucceeded, StateExhausted, StateAborted:
			return terminalPlan(state, priorPlan), records, state
		}
	}
}

func terminalPlan(state State, priorPlan *domain.FixPlan) *domain.FixPlan {
	if state == StateSucceeded {
		return priorPlan
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, llm.ErrConfiguration)
}
