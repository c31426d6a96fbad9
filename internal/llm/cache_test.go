package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseCachePutGetRoundTrip(t *testing.T) {
	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	prompt := "diagnose: assert subtract(2,2) == 1"
	require.NoError(t, cache.Put(prompt, "the fix is..."))

	got, ok := cache.Get(prompt)
	require.True(t, ok)
	require.Equal(t, "the fix is...", got)
}

func TestResponseCacheMissReturnsFalse(t *testing.T) {
	cache, err := NewResponseCache(t.TempDir())
	require.NoError(t, err)

	_, ok := cache.Get("never cached")
	require.False(t, ok)
}

func TestResponseCacheWriteIsIdempotentForSameContent(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewResponseCache(dir)
	require.NoError(t, err)

	prompt := "same prompt"
	require.NoError(t, cache.Put(prompt, "answer"))
	require.NoError(t, cache.Put(prompt, "answer"))

	got, ok := cache.Get(prompt)
	require.True(t, ok)
	require.Equal(t, "answer", got)
}
