package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdent(name string) *Identifier {
	table := NewFieldTable()
	idx := table.Declare(name, 0, nil)
	return newIdentifier("ent", table.Field(idx), nil)
}

func TestQuark_GetOrigin_EstablishesSelf(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.False(t, q.IsOrigin())

	o := q.GetOrigin()
	assert.Same(t, q, o)
	assert.True(t, q.IsOrigin())
	assert.NotZero(t, q.OriginID())
}

func TestQuark_GetOrigin_FreshIDPerChain(t *testing.T) {
	a := newQuark(testIdent("a"), nil)
	b := newQuark(testIdent("b"), nil)
	assert.NotEqual(t, a.GetOrigin().OriginID(), b.GetOrigin().OriginID())
}

func TestQuark_SetValue_RejectsShadowWrite(t *testing.T) {
	orig := newQuark(testIdent("a"), nil)
	require.NoError(t, orig.SetValue(1))

	// The next version starts as a shadow of the established origin.
	shadow := newQuark(orig.ident, orig)
	require.False(t, shadow.IsOrigin())

	err := shadow.SetValue(2)
	require.Error(t, err)
	assert.True(t, IsShadowWriteError(err))

	// The write never landed anywhere.
	assert.Equal(t, 1, orig.GetValue())
	assert.Equal(t, 1, shadow.GetValue(), "shadow lookups defer to the origin")
}

func TestQuark_SetValue_OriginWrites(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.NoError(t, q.SetValue(42))
	assert.Equal(t, 42, q.GetValue())
	assert.True(t, q.HasValue())
}

func TestQuark_GetValue_UnsetIsNil(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	assert.Nil(t, q.GetValue())
	assert.False(t, q.HasValue())
}

func TestQuark_TombStoneIsDistinctFromUnset(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.NoError(t, q.SetValue(TombStone))

	assert.True(t, q.HasValue())
	assert.True(t, IsTombStone(q.GetValue()))
	assert.False(t, IsUnset(q.GetValue()))
}

func TestQuark_BecomeOrigin_FreshOwnershipChain(t *testing.T) {
	orig := newQuark(testIdent("a"), nil)
	require.NoError(t, orig.SetValue(1))
	oldID := orig.OriginID()

	next := newQuark(orig.ident, orig)
	next.BecomeOrigin(func(*Identifier) *Quark { return next })

	assert.True(t, next.IsOrigin())
	assert.NotEqual(t, oldID, next.OriginID(), "promotion starts a new ownership chain")
	require.NoError(t, next.SetValue(2))
	assert.Equal(t, 1, orig.GetValue(), "superseded origin keeps its value for older revisions")
}

func TestQuark_ResetToEpoch_PreservesValueAsFallback(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.NoError(t, q.SetValue(7))
	q.visitedAt = 3
	q.resolvedAt = 3

	q.ResetToEpoch(4)

	assert.Zero(t, q.visitedAt)
	assert.Zero(t, q.resolvedAt)
	assert.False(t, q.HasValue(), "derived state cleared for the new pass")
	v, ok := q.Proposed()
	require.True(t, ok)
	assert.Equal(t, 7, v, "last value survives as the current-or-previous fallback")
	_, explicit := q.ProposedExplicit()
	assert.False(t, explicit, "fallback must not masquerade as a user proposal")
}

func TestQuark_ResetToEpoch_OncePerPass(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.NoError(t, q.SetValue(7))

	q.ResetToEpoch(4)
	require.False(t, q.HasValue())

	// Re-resolved within the same pass; a repeated reset must not wipe it.
	require.NoError(t, q.SetValue(8))
	q.ResetToEpoch(4)
	assert.True(t, q.HasValue())
	assert.Equal(t, 8, q.GetValue())

	// The next pass resets again.
	q.ResetToEpoch(5)
	assert.False(t, q.HasValue())
}

func TestQuark_ResetToEpoch_KeepsExplicitProposal(t *testing.T) {
	q := newQuark(testIdent("a"), nil)
	require.NoError(t, q.SetValue(7))
	q.SetProposed(9)

	q.ResetToEpoch(2)

	v, explicit := q.ProposedExplicit()
	require.True(t, explicit)
	assert.Equal(t, 9, v)
}

// =============================================================================
// Edge liveness
// =============================================================================

func TestQuark_EdgeLiveness_StaleOriginID(t *testing.T) {
	dep := newQuark(testIdent("dep"), nil)
	require.NoError(t, dep.SetValue(1))

	readerIdent := testIdent("reader")
	reader := newQuark(readerIdent, nil)
	require.NoError(t, reader.SetValue(2))
	dep.AddOutgoingTo(reader, EdgeNormal)

	latest := map[*Identifier]*Quark{readerIdent: reader}
	lookup := func(id *Identifier) *Quark { return latest[id] }

	var seen []*Identifier
	dep.EachLiveOutgoing(lookup, func(r *Identifier, _ EdgeKind) { seen = append(seen, r) })
	require.Len(t, seen, 1, "edge to the current reader version is live")

	// Supersede the reader: the recorded edge must now be treated as absent.
	next := newQuark(readerIdent, reader)
	next.BecomeOrigin(lookup)
	latest[readerIdent] = next

	seen = nil
	dep.EachLiveOutgoing(lookup, func(r *Identifier, _ EdgeKind) { seen = append(seen, r) })
	assert.Empty(t, seen, "stale edges are silently dropped, never surfaced")
}

func TestQuark_EdgeLiveness_UnpromotedTargetIsStale(t *testing.T) {
	dep := newQuark(testIdent("dep"), nil)
	require.NoError(t, dep.SetValue(1))

	readerIdent := testIdent("reader")
	committed := newQuark(readerIdent, nil)
	require.NoError(t, committed.SetValue(2))

	// A speculative version that recorded a read but was never promoted,
	// e.g. from a discarded branch.
	speculative := newQuark(readerIdent, committed)
	dep.AddOutgoingTo(speculative, EdgeNormal)

	lookup := func(id *Identifier) *Quark { return committed }
	var seen []*Identifier
	dep.EachLiveOutgoing(lookup, func(r *Identifier, _ EdgeKind) { seen = append(seen, r) })
	assert.Empty(t, seen, "edges recorded by discarded work must not invalidate anyone")
}

func TestQuark_MergePreviousOrigin_AbsorbsLiveEdges(t *testing.T) {
	depIdent := testIdent("dep")
	old := newQuark(depIdent, nil)
	require.NoError(t, old.SetValue(1))

	liveIdent := testIdent("live")
	liveReader := newQuark(liveIdent, nil)
	require.NoError(t, liveReader.SetValue(10))

	staleIdent := testIdent("stale")
	staleReader := newQuark(staleIdent, nil)
	require.NoError(t, staleReader.SetValue(20))

	old.AddOutgoingTo(liveReader, EdgeNormal)
	old.AddOutgoingTo(staleReader, EdgePast)

	latest := map[*Identifier]*Quark{liveIdent: liveReader}
	// stale reader superseded elsewhere
	staleNext := newQuark(staleIdent, staleReader)
	staleNext.BecomeOrigin(func(id *Identifier) *Quark { return latest[id] })
	latest[staleIdent] = staleNext

	next := newQuark(depIdent, old)
	next.BecomeOrigin(func(id *Identifier) *Quark { return latest[id] })

	require.NotNil(t, next.outgoing)
	assert.Contains(t, next.outgoing, liveIdent, "live edge carried to the new origin")
	assert.NotContains(t, next.pastOutgoing, staleIdent, "stale edge pruned during merge")
}

func TestQuark_EachLiveOutgoing_WalksPreviousChain(t *testing.T) {
	depIdent := testIdent("dep")
	v1 := newQuark(depIdent, nil)
	require.NoError(t, v1.SetValue(1))

	readerIdent := testIdent("reader")
	reader := newQuark(readerIdent, nil)
	require.NoError(t, reader.SetValue(5))
	v1.AddOutgoingTo(reader, EdgeNormal)

	// v2 is a shadow version that recorded nothing itself.
	v2 := newQuark(depIdent, v1)

	lookup := func(id *Identifier) *Quark {
		if id == readerIdent {
			return reader
		}
		return v2
	}
	var kinds []EdgeKind
	v2.EachLiveOutgoing(lookup, func(_ *Identifier, k EdgeKind) { kinds = append(kinds, k) })
	require.Len(t, kinds, 1, "traversal crosses shadow boundaries into previous versions")
	assert.Equal(t, EdgeNormal, kinds[0])
}
