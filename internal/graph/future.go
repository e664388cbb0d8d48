package graph

import (
	"context"
	"sync"
)

// CommitResult is what a commit pass settles to: the published Revision on
// success, or the rejection error with the base Revision untouched.
type CommitResult struct {
	Revision *Revision
	Err      error
}

// Future is the deferred handle CommitAsync returns. Many callers may hold
// the same Future when their proposals were coalesced into one pass.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result CommitResult
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// completedFuture returns an already-settled Future, used when there is
// nothing pending to commit.
func completedFuture(r CommitResult) *Future {
	f := newFuture()
	f.complete(r)
	return f
}

func (f *Future) complete(r CommitResult) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

// Done returns a channel closed when the commit settles. Fire-and-forget
// callers can simply drop the Future instead.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the commit settles or ctx is cancelled. Cancellation
// is advisory only: the synchronous resolution pass is not preemptible, so
// a cancelled Wait abandons the result without stopping the pass.
func (f *Future) Wait(ctx context.Context) (CommitResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return CommitResult{}, ctx.Err()
	}
}
