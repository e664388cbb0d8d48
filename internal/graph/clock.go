package graph

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// The graph never orders anything by wall-clock time. Revisions, epochs and
// origin ids are all stamped from Clocks so that replaying the same
// proposals yields the same internal numbering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though commit passes are single-writer by design.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific value.
// Used by tests to pin numbering.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next value and increments the clock.
// Each call returns a unique, strictly increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// originIDs hands out origin ids for the whole process. Origin ids are
// only ever compared for equality, so sharing one counter across graphs
// is safe and keeps Quark self-contained.
var originIDs = NewClock()
