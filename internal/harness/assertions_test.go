package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gantry/internal/testutil"
)

// fabricatedResult builds a two-commit trace without running the engine.
func fabricatedResult() *Result {
	clock := testutil.NewDeterministicClock()
	return &Result{
		Trace: []CommitTrace{
			{Seq: clock.Next(), Entries: map[string]any{
				"a.start": 1,
				"a.end":   5,
			}},
			{Seq: clock.Next(), Entries: map[string]any{
				"a.start":  3,
				"a.end":    7,
				"a.effort": map[string]any{"tombstone": true},
			}},
		},
	}
}

func TestVerifyValue(t *testing.T) {
	result := fabricatedResult()

	require.NoError(t, Verify(result, []Assertion{
		{Type: AssertValue, Ident: "a.start", Value: intPtr(3)},
	}))

	err := Verify(result, []Assertion{
		{Type: AssertValue, Ident: "a.start", Value: intPtr(1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.start = 3, want 1")
}

func TestVerifyValueMissingEntry(t *testing.T) {
	err := Verify(fabricatedResult(), []Assertion{
		{Type: AssertValue, Ident: "ghost.start", Value: intPtr(1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the final snapshot")
}

func TestVerifyTombstone(t *testing.T) {
	result := fabricatedResult()

	require.NoError(t, Verify(result, []Assertion{
		{Type: AssertTombstone, Ident: "a.effort"},
	}))

	err := Verify(result, []Assertion{
		{Type: AssertTombstone, Ident: "a.start"},
	})
	require.Error(t, err)
}

func TestVerifyAbsent(t *testing.T) {
	result := fabricatedResult()

	require.NoError(t, Verify(result, []Assertion{
		{Type: AssertAbsent, Ident: "a.children"},
	}))

	err := Verify(result, []Assertion{
		{Type: AssertAbsent, Ident: "a.start"},
	})
	require.Error(t, err)
}

func TestVerifyCommitCount(t *testing.T) {
	result := fabricatedResult()

	require.NoError(t, Verify(result, []Assertion{
		{Type: AssertCommitCount, Count: 2},
	}))

	err := Verify(result, []Assertion{
		{Type: AssertCommitCount, Count: 5},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 commits, want 5")
}

func TestVerifyCollectsAllFailures(t *testing.T) {
	err := Verify(fabricatedResult(), []Assertion{
		{Type: AssertValue, Ident: "a.start", Value: intPtr(99)},
		{Type: AssertCommitCount, Count: 9},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions[0]")
	assert.Contains(t, err.Error(), "assertions[1]")
}
