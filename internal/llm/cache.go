package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightingale-sre/nightingale/internal/domain"
)

// cacheEntry is the on-disk shape of one cached response, exactly the three
// fields prompt_hash, response, and cached_at.
type cacheEntry struct {
	PromptHash string    `json:"prompt_hash"`
	Response   string    `json:"response"`
	CachedAt   time.Time `json:"cached_at"`
}

// ResponseCache is a content-addressed store of LLM responses keyed by the
// SHA-256 of the exact prompt bytes. Writes are atomic (temp file + rename)
// so a crash mid-write never leaves a corrupt entry behind, and concurrent
// writers to the same key are idempotent as long as they write identical
// content.
type ResponseCache struct {
	dir string
}

// NewResponseCache returns a cache rooted at dir, creating it if needed.
// The directory defaults to ".nightingale_cache" at the call site.
func NewResponseCache(dir string) (*ResponseCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("llm: create cache dir: %w", err)
	}
	return &ResponseCache{dir: dir}, nil
}

func (c *ResponseCache) pathFor(promptHash string) string {
	return filepath.Join(c.dir, promptHash+".json")
}

// Get returns the cached response for prompt, and whether it was present.
func (c *ResponseCache) Get(prompt string) (string, bool) {
	hash := domain.HashPrompt(prompt)
	data, err := os.ReadFile(c.pathFor(hash))
	if err != nil {
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	return entry.Response, true
}

// Put stores response under prompt's hash, atomically replacing any prior
// entry. World-readable, matching the on-disk cache directory's permissions.
func (c *ResponseCache) Put(prompt, response string) error {
	hash := domain.HashPrompt(prompt)
	entry := cacheEntry{
		PromptHash: hash,
		Response:   response,
		CachedAt:   nowFunc(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("llm: marshal cache entry: %w", err)
	}
	return c.atomicWrite(c.pathFor(hash), data)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by an atomic rename, so concurrent writers to the same key never
// observe a partially written entry.
func (c *ResponseCache) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("llm: create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("llm: write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("llm: sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("llm: close temp cache file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("llm: chmod temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("llm: rename temp cache file: %w", err)
	}
	return nil
}

// nowFunc is a seam for deterministic tests.
var nowFunc = time.Now
