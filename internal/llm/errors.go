package llm

import "errors"

var (
	// ErrQuotaExhausted is returned after the retry budget is exhausted on a
	// quota or transient error classification.
	ErrQuotaExhausted = errors.New("llm: quota exhausted after retries")

	// ErrSchemaValidation is returned when a structured response could not be
	// coerced to the requested schema within the validation-retry budget.
	ErrSchemaValidation = errors.New("llm: response failed schema validation")

	// ErrConfiguration is returned when no credential is present and record
	// mode is off.
	ErrConfiguration = errors.New("llm: no API key configured and record mode is off")

	// ErrCacheMiss is returned in record mode when a prompt has no cached
	// response.
	ErrCacheMiss = errors.New("llm: record mode is on and no cached response exists for this prompt")
)
