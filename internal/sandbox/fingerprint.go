package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nightingale-sre/nightingale/internal/worker"
)

// DefaultIgnoreSet is excluded from every tree fingerprint and copy: the
// version-control directory, Python bytecode caches and the response cache,
// matched against a path's first component. isIgnored additionally always
// excludes the sandbox base itself (never fingerprint your own previous runs)
// and any *.pyc file.
var DefaultIgnoreSet = []string{".git", "__pycache__", ".nightingale_cache"}

func isIgnored(relPath, sandboxBase string, ignore []string) bool {
	first := strings.SplitN(relPath, string(filepath.Separator), 2)[0]
	if first == sandboxBase {
		return true
	}
	for _, ig := range ignore {
		if first == ig {
			return true
		}
	}
	if strings.HasSuffix(relPath, ".pyc") {
		return true
	}
	return false
}

// listTreeFiles returns every regular file under root, relative to root, in
// sorted order, excluding the ignore set.
func listTreeFiles(root, sandboxBase string, ignore []string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if isIgnored(rel, sandboxBase, ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnored(rel, sandboxBase, ignore) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// perFileDigest hashes one file's relative path and content together, so a
// rename-with-same-bytes is distinguishable from a content change.
func perFileDigest(root, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write([]byte(rel))
	h.Write([]byte{0})
	h.Write(data)
	return h.Sum(nil), nil
}

// TreeFingerprint computes the SHA-256 fingerprint of root's tree, excluding
// the ignore set, mixing each relative path then that file's perFileDigest
// (not the raw file bytes) in sorted path order.
// Per-file hashing fans out across the repurposed worker pool; the final mix
// is sequential over the sorted path list so the result is deterministic
// regardless of how the pool schedules work.
func TreeFingerprint(root, sandboxBase string, ignore []string) (string, error) {
	paths, err := listTreeFiles(root, sandboxBase, ignore)
	if err != nil {
		return "", err
	}

	pool := worker.NewPool[[]byte](0)
	results := pool.Process(paths, func(rel string) ([]byte, error) {
		return perFileDigest(root, rel)
	})

	combined := sha256.New()
	for i, rel := range paths {
		if results[i].Err != nil {
			return "", results[i].Err
		}
		combined.Write([]byte(rel))
		combined.Write([]byte{0})
		combined.Write(results[i].Value)
	}
	return hex.EncodeToString(combined.Sum(nil)), nil
}
