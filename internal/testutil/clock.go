// Package testutil provides deterministic stand-ins for the sources of
// nondeterminism in the graph: branch tokens and sequence counters.
package testutil

import "sync"

// DeterministicClock is a thread-safe monotonic counter that, unlike
// graph.Clock, can be reset. Resetting lets the same scenario run twice
// with identical sequence numbers, which is what golden trace comparison
// needs.
//
// Thread-safety: all methods are safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock starting at 0. The first call to
// Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0. After Reset the next call to Next returns
// 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
