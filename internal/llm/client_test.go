package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCacheHitNeverCallsNetwork(t *testing.T) {
	called := false
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"text":"network"}`))
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Put("hello", "cached answer"))

	client := New("key", cache, WithEndpoint(srv.URL))
	text, err := client.Generate(context.Background(), "hello", "", "inc-1")
	require.NoError(t, err)
	require.Equal(t, "cached answer", text)
	require.False(t, called)
}

func TestGenerateNetworkMissWritesThroughCache(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(generateResponse{Text: "fresh: " + req.Prompt, TokensConsumed: 10})
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	client := New("key", cache, WithEndpoint(srv.URL))
	text, err := client.Generate(context.Background(), "prompt-a", "", "inc-1")
	require.NoError(t, err)
	require.Equal(t, "fresh: prompt-a", text)

	cached, ok := cache.Get("prompt-a")
	require.True(t, ok)
	require.Equal(t, text, cached)
	require.Equal(t, 1, client.Metrics().CallCount)
	require.Equal(t, 10, client.Metrics().TokenCount)
}

func TestGenerateRecordModeMissReturnsErrCacheMiss(t *testing.T) {
	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	client := New("", cache)
	client.RecordMode = true

	_, err = client.Generate(context.Background(), "never cached", "", "inc-1")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestGenerateNoAPIKeyReturnsErrConfiguration(t *testing.T) {
	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	client := New("", cache)
	_, err = client.Generate(context.Background(), "anything", "", "inc-1")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestGenerateFatalErrorPropagatesImmediately(t *testing.T) {
	attempts := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid api key"))
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	client := New("key", cache, WithEndpoint(srv.URL))
	_, err = client.Generate(context.Background(), "prompt", "", "inc-1")
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestGenerateStructuredHappyPath(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Text: `{
			"root_cause": "off by one", "rationale": "fix it",
			"files_to_change": [{"file_path": "a.py", "change_type": "modify", "content": "x"}],
			"verification_commands": ["pytest"], "confidence": 0.9, "risk_assessment": "low"
		}`})
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)
	client := New("key", cache, WithEndpoint(srv.URL))

	plan, err := client.GenerateStructured(context.Background(), "diagnose this", "", "inc-1")
	require.NoError(t, err)
	require.Equal(t, "off by one", plan.RootCause)
}

func TestGenerateStructuredRetriesOnInvalidJSONThenSucceeds(t *testing.T) {
	call := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			json.NewEncoder(w).Encode(generateResponse{Text: "not json"})
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Text: `{
			"root_cause": "x", "rationale": "y", "files_to_change": [],
			"verification_commands": [], "confidence": 0.5, "risk_assessment": "low"
		}`})
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)
	client := New("key", cache, WithEndpoint(srv.URL))

	plan, err := client.GenerateStructured(context.Background(), "diagnose this", "", "inc-1")
	require.NoError(t, err)
	require.Equal(t, "x", plan.RootCause)
	require.Equal(t, 2, call)
}

func TestGenerateStructuredExhaustsValidationRetries(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Text: "still not json"})
	})

	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)
	client := New("key", cache, WithEndpoint(srv.URL))

	_, err = client.GenerateStructured(context.Background(), "diagnose this", "", "inc-1")
	require.ErrorIs(t, err, ErrSchemaValidation)
}
