// Package llm is the authenticated, cached, retrying client the reasoning
// agent calls to turn a prompt into either free text or a schema-validated
// structured plan. Transport is raw net/http against a single text
// generation endpoint, built in the request/response shape of a typical
// single-key HTTP completion API rather than any particular vendor SDK.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultEndpoint      = "https://api.nightingale.invalid/v1/generate"
	defaultModelTag      = "nightingale-reasoner"
	maxValidationRetries = 3
	requestTimeout       = 90 * time.Second
)

// APIKeyEnvVar is the environment variable the CLI adapter reads the
// credential from before constructing a Client.
const APIKeyEnvVar = "NIGHTINGALE_API_KEY"

// Client is the authenticated, cached, retrying LLM client. It is process-wide in
// the sense that its rate-limit counters and metrics are shared across
// concurrent incidents, but it is never a package-level global: callers
// construct one and inject it, per the Design Note on explicit collaborators.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	cache      *ResponseCache
	limiter    *rateLimiter
	logger     Logger

	// RecordMode, when true, never contacts the network: a cache miss fails
	// with ErrCacheMiss instead. A field rather than a process-global so
	// tests can construct cache-only clients per incident.
	RecordMode bool

	mu      sync.Mutex
	metrics Metrics
}

// Metrics is the client's own cumulative counters, separate from (but folded
// into) the orchestrator's per-incident domain.Metrics.
type Metrics struct {
	CallCount  int
	TokenCount int
}

// Logger is the minimal logging seam this package depends on, satisfied by
// internal/nlog.Logger without an import cycle.
type Logger interface {
	Warn(msg string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, map[string]any) {}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the default generation endpoint, mainly for tests.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithRPMLimit overrides the default client-side rate limit.
func WithRPMLimit(rpm int) Option {
	return func(c *Client) { c.limiter = newRateLimiter(rpm) }
}

// WithLogger injects a structured logger for non-fatal warnings (integrity
// violations are a sandbox concern, not this one; the client logs cache
// write failures).
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a Client. apiKey may be empty only if RecordMode will be
// set to true before any call.
func New(apiKey string, cache *ResponseCache, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		cache:      cache,
		limiter:    newRateLimiter(defaultRPMLimit),
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Metrics returns a snapshot of cumulative call/token counts.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Client) recordCall(tokens int) {
	c.mu.Lock()
	c.metrics.CallCount++
	c.metrics.TokenCount += tokens
	c.mu.Unlock()
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text             string `json:"text"`
	TokensConsumed   int    `json:"tokens_consumed"`
	Error            string `json:"error,omitempty"`
}

// Generate returns the model's raw text response to prompt, consulting the
// cache first and writing through on a network miss. incidentID is used only
// for logging context.
func (c *Client) Generate(ctx context.Context, prompt, modelTag, incidentID string) (string, error) {
	return c.generate(ctx, prompt, modelTag, incidentID, true)
}

func (c *Client) generate(ctx context.Context, prompt, modelTag, incidentID string, useCache bool) (string, error) {
	if useCache && c.cache != nil {
		if cached, ok := c.cache.Get(prompt); ok {
			return cached, nil
		}
	}

	if c.RecordMode {
		return "", ErrCacheMiss
	}

	if c.apiKey == "" {
		return "", ErrConfiguration
	}

	text, tokens, err := c.callWithRetry(ctx, prompt, modelTag)
	if err != nil {
		return "", err
	}

	c.recordCall(tokens)

	if useCache && c.cache != nil {
		if err := c.cache.Put(prompt, text); err != nil {
			c.logger.Warn("llm: cache write failed", map[string]any{"incident_id": incidentID, "error": err.Error()})
		}
	}

	return text, nil
}

// callWithRetry performs the HTTP round trip, retrying quota/transient
// failures with exponential backoff up to maxRetries.
func (c *Client) callWithRetry(ctx context.Context, prompt, modelTag string) (string, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		c.limiter.wait()

		text, tokens, err := c.doRequest(ctx, prompt, modelTag)
		if err == nil {
			return text, tokens, nil
		}

		class := classifyError(err.Error())
		if class == classFatal {
			return "", 0, err
		}

		lastErr = err
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}
	}
	_ = lastErr
	return "", 0, fmt.Errorf("%w: %v", ErrQuotaExhausted, lastErr)
}

func (c *Client) doRequest(ctx context.Context, prompt, modelTag string) (string, int, error) {
	if modelTag == "" {
		modelTag = defaultModelTag
	}

	body, err := json.Marshal(generateRequest{Model: modelTag, Prompt: prompt})
	if err != nil {
		return "", 0, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-nightingale-version", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("llm: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", 0, fmt.Errorf("llm: %s", parsed.Error)
	}

	return parsed.Text, parsed.TokensConsumed, nil
}

// GenerateStructured appends a schema instruction block to prompt, parses
// the response as JSON against schema, and re-prompts correctively up to
// maxValidationRetries on failure. Cache writes are suppressed for the
// duration of a retry sequence so a corrective re-prompt never overwrites the
// prior cache entry with a still-invalid response.
func (c *Client) GenerateStructured(ctx context.Context, prompt, modelTag, incidentID string) (StructuredPlan, error) {
	fullPrompt := prompt + "\n\n" + structuredInstructionBlock()

	text, err := c.generate(ctx, fullPrompt, modelTag, incidentID, true)
	if err != nil {
		return StructuredPlan{}, err
	}

	plan, parseErr := parseStructuredPlan(text)
	if parseErr == nil {
		return plan, nil
	}

	lastErr := parseErr
	currentPrompt := fullPrompt
	currentText := text
	for retry := 1; retry <= maxValidationRetries; retry++ {
		currentPrompt = correctivePrompt(currentPrompt, currentText, lastErr)

		// Cache disabled during the retry sequence: a corrective re-prompt
		// must never overwrite the original entry for the first prompt hash.
		currentText, err = c.generate(ctx, currentPrompt, modelTag, incidentID, false)
		if err != nil {
			return StructuredPlan{}, err
		}

		plan, lastErr = parseStructuredPlan(currentText)
		if lastErr == nil {
			return plan, nil
		}
	}

	return StructuredPlan{}, fmt.Errorf("%w: %v", ErrSchemaValidation, lastErr)
}

func structuredInstructionBlock() string {
	return "Respond with only valid JSON matching this schema, no prose, no code fences:\n" +
		StructuredResponseSchema +
		"\n\nExample of a correctly-keyed response (use exactly these field names" +
		" — file_path, change_type, content — not file/path/type/action/patch/diff/changes):\n" +
		StructuredResponseExample
}

func correctivePrompt(previous, badResponse string, parseErr error) string {
	return previous + "\n\nYour previous response was invalid JSON for the required schema.\n" +
		"Error: " + parseErr.Error() + "\n" +
		"Previous response was:\n" + badResponse + "\n" +
		"Output only JSON matching the schema above."
}
