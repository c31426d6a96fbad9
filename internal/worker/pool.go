// Package worker provides a generic, order-preserving concurrent fan-out
// pool. The sandbox's repository fingerprint hasher uses it to read and hash
// files in parallel; the same Pool is the substrate a queue-backed webhook
// adapter would use for its one-worker-per-repository-identity fan-out, even
// though that adapter itself is out of scope here.
package worker

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result pairs a processed value with its original index to preserve ordering.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool fans out work items to a bounded number of concurrent goroutines
// and collects results preserving the original input order.
type Pool[T any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[T any](concurrency int) *Pool[T] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[T]{concurrency: concurrency}
}

// Process distributes items across an errgroup capped at the pool's
// concurrency, applies fn to each, and returns results in the same order as
// the input slice. Errors from individual items are captured per-result
// rather than aborting the whole batch — fn itself never returns an error to
// the group, so one item's failure never cancels its siblings.
func (p *Pool[T]) Process(items []string, fn func(string) (T, error)) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	workers := p.concurrency
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]Result[T], len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			val, err := fn(item)
			results[i] = Result[T]{Index: i, Value: val, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}
