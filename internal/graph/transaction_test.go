package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnt is a minimal entity for engine tests.
type testEnt struct {
	node *EntityNode
}

func (e *testEnt) GraphNode() *EntityNode { return e.node }

// intFields declares: base (atomic), double = base*2, plus = double+1,
// lone (atomic, read by nothing), acc = previous(acc) + base.
// Calculation invocation counts are tracked per derived field.
type intFields struct {
	table *FieldTable

	base, double, plus, lone, acc FieldIndex

	doubleCalls, plusCalls, accCalls int
}

func newIntFields() *intFields {
	f := &intFields{table: NewFieldTable()}
	f.base = f.table.Declare("base", 0, nil)
	f.lone = f.table.Declare("lone", 0, nil)
	f.double = f.table.Declare("double", 1, func(ctx *CalcContext) (Value, error) {
		f.doubleCalls++
		ent := ctx.Owner().(*testEnt)
		v, err := ctx.Read(ent.node.Identifier(f.base))
		if err != nil {
			return nil, err
		}
		if IsUnset(v) {
			return nil, nil
		}
		return v.(int) * 2, nil
	})
	f.plus = f.table.Declare("plus", 1, func(ctx *CalcContext) (Value, error) {
		f.plusCalls++
		ent := ctx.Owner().(*testEnt)
		v, err := ctx.Read(ent.node.Identifier(f.double))
		if err != nil {
			return nil, err
		}
		if IsUnset(v) {
			return nil, nil
		}
		return v.(int) + 1, nil
	})
	f.acc = f.table.Declare("acc", 1, func(ctx *CalcContext) (Value, error) {
		f.accCalls++
		ent := ctx.Owner().(*testEnt)
		prev, err := ctx.ReadPrevious(ent.node.Identifier(f.acc))
		if err != nil {
			return nil, err
		}
		cur, err := ctx.Read(ent.node.Identifier(f.base))
		if err != nil {
			return nil, err
		}
		if IsUnset(cur) {
			return nil, nil
		}
		total := cur.(int)
		if !IsUnset(prev) {
			total += prev.(int)
		}
		return total, nil
	})
	f.table.Seal()
	return f
}

func newTestEnt(table *FieldTable, name string) *testEnt {
	e := &testEnt{}
	e.node = NewEntityNode(name, table, e)
	return e
}

func commitOne(t *testing.T, g *Graph) *Revision {
	t.Helper()
	rev, err := g.Commit(context.Background())
	require.NoError(t, err)
	return rev
}

func TestTransaction_CommitResolvesDerivedFields(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 10))

	rev := commitOne(t, g)

	v, ok := rev.Value(e.node.Identifier(f.double))
	require.True(t, ok)
	assert.Equal(t, 20, v)

	v, ok = rev.Value(e.node.Identifier(f.plus))
	require.True(t, ok)
	assert.Equal(t, 21, v)
}

func TestTransaction_ReReadIsIdempotent(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 3))
	commitOne(t, g)

	calls := f.doubleCalls
	tx := g.Branch(Options{})
	v1, err := tx.Read(e.node.Identifier(f.double))
	require.NoError(t, err)
	v2, err := tx.Read(e.node.Identifier(f.double))
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, calls, f.doubleCalls, "a fully resolved identifier is never recomputed on re-read")
	tx.Discard()
}

func TestTransaction_NoSpuriousRecomputation(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 1))
	commitOne(t, g)

	doubles, pluses := f.doubleCalls, f.plusCalls

	// Nothing reads lone: changing it must invoke no calculations at all.
	require.NoError(t, g.Propose(e.node.Identifier(f.lone), 99))
	rev := commitOne(t, g)

	assert.Equal(t, doubles, f.doubleCalls)
	assert.Equal(t, pluses, f.plusCalls)
	v, ok := rev.Value(e.node.Identifier(f.lone))
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestTransaction_InvalidationPropagatesThroughEdges(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 2))
	commitOne(t, g)

	require.NoError(t, g.Propose(e.node.Identifier(f.base), 5))
	rev := commitOne(t, g)

	v, _ := rev.Value(e.node.Identifier(f.double))
	assert.Equal(t, 10, v)
	v, _ = rev.Value(e.node.Identifier(f.plus))
	assert.Equal(t, 11, v)
}

func TestTransaction_ReadPreviousSeesPriorRevisionMidRecompute(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 10))
	rev := commitOne(t, g)

	v, _ := rev.Value(e.node.Identifier(f.acc))
	assert.Equal(t, 10, v)

	// acc reads base live and its own value retrospectively: the pass
	// recomputing acc must still see acc's previous committed value.
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 5))
	rev = commitOne(t, g)

	v, _ = rev.Value(e.node.Identifier(f.acc))
	assert.Equal(t, 15, v)
}

// =============================================================================
// Cycle detection
// =============================================================================

// cycleFields declares a graph whose cyclicity is switchable: sel (atomic),
// a = sel ? b+1 : 1, b = a+1. With sel=false the graph is acyclic.
type cycleFields struct {
	table     *FieldTable
	sel, a, b FieldIndex
}

func newCycleFields() *cycleFields {
	f := &cycleFields{table: NewFieldTable()}
	f.sel = f.table.Declare("sel", 0, nil)
	f.a = f.table.Declare("a", 1, func(ctx *CalcContext) (Value, error) {
		ent := ctx.Owner().(*testEnt)
		sel, err := ctx.Read(ent.node.Identifier(f.sel))
		if err != nil {
			return nil, err
		}
		if sel == true {
			v, err := ctx.Read(ent.node.Identifier(f.b))
			if err != nil {
				return nil, err
			}
			if IsTombStone(v) || IsUnset(v) {
				return 1, nil
			}
			return v.(int) + 1, nil
		}
		return 1, nil
	})
	f.b = f.table.Declare("b", 1, func(ctx *CalcContext) (Value, error) {
		ent := ctx.Owner().(*testEnt)
		v, err := ctx.Read(ent.node.Identifier(f.a))
		if err != nil {
			return nil, err
		}
		if IsUnset(v) {
			return nil, nil
		}
		return v.(int) + 1, nil
	})
	f.table.Seal()
	return f
}

func TestTransaction_CycleDetection_RejectsBranch(t *testing.T) {
	f := newCycleFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.sel), false))
	rev := commitOne(t, g)

	aVal, _ := rev.Value(e.node.Identifier(f.a))
	require.Equal(t, 1, aVal)
	bVal, _ := rev.Value(e.node.Identifier(f.b))
	require.Equal(t, 2, bVal)

	// Hypothesis: would sel=true be cyclic? Test it on a disposable branch.
	tx := g.Branch(Options{OnCycle: CycleThrow})
	require.NoError(t, tx.Propose(e.node.Identifier(f.sel), true))
	_, err := tx.Read(e.node.Identifier(f.b))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Equal(t, StateRejected, tx.State())

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.NotEmpty(t, ge.Chain, "cycle error names the offending identifier chain")

	tx.Discard()

	// The base revision is untouched by the rejected branch.
	assert.Same(t, rev, g.Revision())
	v, _ := g.Revision().Value(e.node.Identifier(f.a))
	assert.Equal(t, 1, v)
}

func TestTransaction_CycleDetection_RejectsCommit(t *testing.T) {
	f := newCycleFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.sel), false))
	before := commitOne(t, g)

	require.NoError(t, g.Propose(e.node.Identifier(f.sel), true))
	_, err := g.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	assert.Same(t, before, g.Revision(), "a rejected commit publishes nothing")
}

func TestTransaction_CycleTombstonePolicy(t *testing.T) {
	f := newCycleFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.sel), false))
	commitOne(t, g)

	tx := g.Branch(Options{OnCycle: CycleTombstone})
	require.NoError(t, tx.Propose(e.node.Identifier(f.sel), true))

	// The read that closes the loop resolves to TombStone and the pass
	// continues instead of rejecting.
	v, err := tx.Read(e.node.Identifier(f.b))
	require.NoError(t, err)
	assert.Equal(t, 2, v) // a sees TombStone for b, yields 1; b = a+1
	assert.Equal(t, StateOpen, tx.State())
	tx.Discard()
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestTransaction_ClosedStateRejectsUse(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)

	tx := g.Branch(Options{})
	tx.Discard()
	assert.Equal(t, StateDiscarded, tx.State())

	err := tx.Propose(e.node.Identifier(f.base), 1)
	require.Error(t, err)
	_, err = tx.Read(e.node.Identifier(f.base))
	require.Error(t, err)
	_, err = tx.Commit()
	require.Error(t, err)
}

func TestTransaction_RemoveEntityDropsEntries(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 4))
	rev := commitOne(t, g)
	require.Equal(t, 4, mustValue(t, rev, e.node.Identifier(f.base)))

	g.RemoveEntity(e)
	rev = commitOne(t, g)

	_, ok := rev.Value(e.node.Identifier(f.base))
	assert.False(t, ok)
	_, ok = rev.Value(e.node.Identifier(f.double))
	assert.False(t, ok)
}

func mustValue(t *testing.T, rev *Revision, id *Identifier) Value {
	t.Helper()
	v, ok := rev.Value(id)
	require.True(t, ok, "expected a value for %s", id.Name())
	return v
}

// =============================================================================
// Edge recording and commit hygiene
// =============================================================================

func TestTransaction_CommitKeepsValuesResolvedBeforeThePass(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)

	tx := g.Branch(Options{AutoCommit: true})
	require.NoError(t, tx.Propose(e.node.Identifier(f.base), 10))

	// Resolved lazily inside the open transaction, before the commit pass.
	v, err := tx.Read(e.node.Identifier(f.double))
	require.NoError(t, err)
	require.Equal(t, 20, v)

	rev, err := g.CommitBranch(tx)
	require.NoError(t, err)

	v, ok := rev.Value(e.node.Identifier(f.double))
	require.True(t, ok, "a value resolved before the pass must survive the commit")
	assert.Equal(t, 20, v)
}

func TestTransaction_BranchReadLeavesPublishedEntriesUntouched(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 2))
	rev := commitOne(t, g)

	baseID := e.node.Identifier(f.base)
	bq, ok := rev.Entry(baseID)
	require.True(t, ok)
	normalBefore, pastBefore := len(bq.outgoing), len(bq.pastOutgoing)

	// A branch recomputing double reads base. Published Revisions are
	// shared across branches and the commit pipeline, so the dependency
	// edge must land on the branch's own overlay version of base.
	tx := g.Branch(Options{})
	require.NoError(t, tx.Invalidate(e.node.Identifier(f.double)))
	_, err := tx.Read(e.node.Identifier(f.double))
	require.NoError(t, err)

	assert.Equal(t, normalBefore, len(bq.outgoing), "published entry gained an edge")
	assert.Equal(t, pastBefore, len(bq.pastOutgoing), "published entry gained a past edge")

	overlay, ok := tx.entries[baseID]
	require.True(t, ok, "the read materialized an overlay version of base")
	assert.True(t, overlay.carriesEdges())
	tx.Discard()
}

func TestTransaction_EdgesOnUnchangedDependencySurviveCommits(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 2))
	commitOne(t, g)

	// This pass recomputes double and reads base without changing it, so
	// the edge is recorded on base's overlay shadow.
	require.NoError(t, g.Invalidate(e.node.Identifier(f.double)))
	commitOne(t, g)

	// The shadow entered the published snapshot; changing base must still
	// reach double through it.
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 7))
	rev := commitOne(t, g)

	v, ok := rev.Value(e.node.Identifier(f.double))
	require.True(t, ok)
	assert.Equal(t, 14, v)
}

func TestTransaction_ReadOfRemovedIdentifierFails(t *testing.T) {
	f := newIntFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)
	require.NoError(t, g.Propose(e.node.Identifier(f.base), 4))
	commitOne(t, g)

	tx := g.Branch(Options{})
	tx.remove(e.node.Identifier(f.base))

	_, err := tx.Read(e.node.Identifier(f.base))
	require.Error(t, err)
	assert.True(t, IsUnknownIdentifierError(err))

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrCodeUnknownIdentifier, ge.Code)
	tx.Discard()
}

// argFields declares sum, whose proposals carry the parts of the value as
// side-channel args; the calculation rebuilds the stored value from them.
type argFields struct {
	table *FieldTable
	sum   FieldIndex
}

func newArgFields() *argFields {
	f := &argFields{table: NewFieldTable()}
	f.sum = f.table.Declare("sum", 1, func(ctx *CalcContext) (Value, error) {
		if _, ok := ctx.Proposed(ctx.Identifier()); ok {
			total := 0
			for _, part := range ctx.ProposedArgs() {
				total += part.(int)
			}
			return total, nil
		}
		return ctx.ReadPrevious(ctx.Identifier())
	})
	f.table.Seal()
	return f
}

func TestTransaction_ProposedArgsReachTheCalculation(t *testing.T) {
	f := newArgFields()
	g := New(WithCommitDelay(0))
	e := newTestEnt(f.table, "e1")
	g.AddEntity(e)

	require.NoError(t, g.Propose(e.node.Identifier(f.sum), 0, 2, 3, 4))
	rev := commitOne(t, g)

	v, ok := rev.Value(e.node.Identifier(f.sum))
	require.True(t, ok)
	assert.Equal(t, 9, v)

	// The next pass sees no proposal and keeps the rebuilt value.
	require.NoError(t, g.Invalidate(e.node.Identifier(f.sum)))
	rev = commitOne(t, g)
	v, ok = rev.Value(e.node.Identifier(f.sum))
	require.True(t, ok)
	assert.Equal(t, 9, v)
}
