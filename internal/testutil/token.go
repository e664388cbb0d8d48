package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokenGenerator produces "prefix-1", "prefix-2", ... branch
// tokens. Unlike graph.FixedGenerator it never runs out, so it suits
// scenario runs where the number of transactions is not known up front
// (dependency validation opens branches of its own, each consuming a
// token).
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokenGenerator creates a generator with the given prefix.
// An empty prefix defaults to "tok".
func NewSequenceTokenGenerator(prefix string) *SequenceTokenGenerator {
	if prefix == "" {
		prefix = "tok"
	}
	return &SequenceTokenGenerator{prefix: prefix}
}

// Generate returns the next token in the sequence.
// Implements graph.TokenGenerator.
func (g *SequenceTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
