package orchestrator

import "sync"

// repoGate serializes incidents against the same repository path while
// letting distinct repositories proceed concurrently: a thin, Go-native
// reading of "one worker per repository identity" without a message-queue
// dependency.
type repoGate struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRepoGate() *repoGate {
	return &repoGate{locks: make(map[string]*sync.Mutex)}
}

func (g *repoGate) lockFor(repoPath string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[repoPath]
	if !ok {
		l = &sync.Mutex{}
		g.locks[repoPath] = l
	}
	return l
}

// Acquire blocks until no other incident is in flight for repoPath, then
// returns a release function the caller must call exactly once.
func (g *repoGate) Acquire(repoPath string) func() {
	l := g.lockFor(repoPath)
	l.Lock()
	return l.Unlock
}
