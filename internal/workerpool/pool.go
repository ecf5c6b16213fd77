// Package workerpool provides a bounded compute pool for classifier
// invocations, so a single slow ML model cannot block the I/O reactor
// (spec §5).
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent compute-bound work (ML classifier forward passes)
// to a fixed number of in-flight slots, shared across requests.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a Pool with the given maximum concurrency. A size <= 0 means
// unbounded (no backpressure applied).
func New(size int64) *Pool {
	if size <= 0 {
		return &Pool{}
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Do runs fn with a pool slot held, blocking until one is available or ctx
// is cancelled. If the pool is unbounded, fn runs immediately.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if p.sem == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, ctx.Err()
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
