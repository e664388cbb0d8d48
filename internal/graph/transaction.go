package graph

import (
	"sort"
)

// State tracks a Transaction through its lifecycle.
type State int

const (
	// StateOpen accepts proposals and lazy reads.
	StateOpen State = iota + 1
	// StateValidating means a commit pass is resolving the dirty set.
	StateValidating
	// StateCommitted means the pass produced a Revision.
	StateCommitted
	// StateRejected means a cycle or calculation error aborted the pass;
	// the base Revision is untouched.
	StateRejected
	// StateDiscarded means the Transaction was abandoned explicitly.
	StateDiscarded
)

// String returns the state name for logs and errors.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// CyclePolicy selects what a Transaction does when resolution closes on
// itself.
type CyclePolicy int

const (
	// CycleThrow rejects the Transaction with a CycleError. This is the
	// default and the mechanism dependency-validity checks rely on.
	CycleThrow CyclePolicy = iota

	// CycleTombstone resolves the read that closed the cycle to TombStone
	// and lets the pass continue.
	CycleTombstone
)

// Options configures a Transaction.
type Options struct {
	// AutoCommit asks the Graph to publish the Transaction's Revision on
	// a successful Commit instead of leaving it speculative.
	AutoCommit bool

	// OnCycle selects the computation-cycle policy.
	OnCycle CyclePolicy
}

// Transaction is a speculative, mutable overlay on top of a base Revision.
//
// While a Transaction is open the base Revision is never mutated; all
// speculative Quarks live in the Transaction's own overlay. A Transaction
// either commits into a new Revision or is discarded with no effect.
//
// Transactions are not safe for concurrent use; the Graph serializes the
// one committing Transaction per project, and disposable branches belong
// to their creating goroutine.
type Transaction struct {
	graph *Graph
	base  *Revision
	opts  Options
	token string
	state State
	epoch int64

	entries map[*Identifier]*Quark
	dirty   map[*Identifier]struct{}
	removed map[*Identifier]struct{}

	// stack is the live resolution path, used to name the identifier
	// chain when a cycle is detected.
	stack []*Identifier
}

func newTransaction(g *Graph, base *Revision, opts Options) *Transaction {
	return &Transaction{
		graph:   g,
		base:    base,
		opts:    opts,
		token:   g.tokens.Generate(),
		state:   StateOpen,
		epoch:   g.epochs.Next(),
		entries: make(map[*Identifier]*Quark),
		dirty:   make(map[*Identifier]struct{}),
		removed: make(map[*Identifier]struct{}),
	}
}

// State returns the lifecycle state.
func (t *Transaction) State() State { return t.state }

// Token returns the branch token identifying this Transaction in journals
// and traces.
func (t *Transaction) Token() string { return t.token }

// Base returns the Revision this Transaction derives from.
func (t *Transaction) Base() *Revision { return t.base }

// latest resolves an identifier to its most recent Quark: the overlay
// version when this Transaction touched it, otherwise the base entry.
// Removed identifiers resolve to nothing, which is what kills their edges.
func (t *Transaction) latest(id *Identifier) *Quark {
	if _, gone := t.removed[id]; gone {
		return nil
	}
	if q, ok := t.entries[id]; ok {
		return q
	}
	if q, ok := t.base.Entry(id); ok {
		return q
	}
	return nil
}

// materialize returns the overlay Quark for id, creating the next version
// (a shadow of the base origin) on first touch.
func (t *Transaction) materialize(id *Identifier) *Quark {
	if q, ok := t.entries[id]; ok {
		return q
	}
	var prev *Quark
	if bq, ok := t.base.Entry(id); ok {
		prev = bq
	}
	q := newQuark(id, prev)
	t.entries[id] = q
	return q
}

// recordEdge notes that resolving reader required reading id. The edge
// lands on the overlay version of id, never on a base-Revision Quark: the
// base is shared across concurrent branches and must stay immutable while
// Transactions run against it.
func (t *Transaction) recordEdge(id *Identifier, reader *Quark, kind EdgeKind) {
	if _, gone := t.removed[id]; gone {
		return
	}
	t.materialize(id).AddOutgoingTo(reader, kind)
}

// Propose records a pending change for an identifier. The extra args are
// the side-channel data the identifier's calculation may need to rebuild
// the proposed value.
func (t *Transaction) Propose(id *Identifier, value Value, args ...Value) error {
	if t.state != StateOpen {
		return &GraphError{Code: ErrCodeClosed, Message: "propose on " + t.state.String() + " transaction", Identifier: id.Name()}
	}
	q := t.materialize(id)
	q.SetProposed(value, args...)
	t.markDirty(id)
	return nil
}

// Invalidate marks an identifier as potentially stale without proposing a
// value, forcing its calculation to rerun on the next pass. Callers use
// this when a proposal elsewhere changes an input the identifier's last
// resolution never read, so no recorded edge covers the dependency (a
// proposal fast path records no reads).
func (t *Transaction) Invalidate(id *Identifier) error {
	if t.state != StateOpen {
		return &GraphError{Code: ErrCodeClosed, Message: "invalidate on " + t.state.String() + " transaction", Identifier: id.Name()}
	}
	t.markDirty(id)
	return nil
}

// markDirty adds id to the invalidated set and propagates through live
// outgoing edges: every identifier whose last committed resolution read id
// becomes potentially invalidated too. Quarks already touched in this
// Transaction get their visitation marks reset so the next read recomputes.
func (t *Transaction) markDirty(id *Identifier) {
	if _, ok := t.dirty[id]; ok {
		return
	}
	t.dirty[id] = struct{}{}
	if q, ok := t.entries[id]; ok {
		q.ResetToEpoch(t.epoch)
	}
	if q := t.latest(id); q != nil {
		q.EachLiveOutgoing(t.latest, func(reader *Identifier, _ EdgeKind) {
			t.markDirty(reader)
		})
	}
}

func (t *Transaction) isDirty(id *Identifier) bool {
	_, ok := t.dirty[id]
	return ok
}

// remove schedules an identifier's departure: its entry is dropped from
// the committed snapshot and every live reader is invalidated so the next
// pass recomputes without it.
func (t *Transaction) remove(id *Identifier) {
	if q := t.latest(id); q != nil {
		q.EachLiveOutgoing(t.latest, func(reader *Identifier, _ EdgeKind) {
			t.markDirty(reader)
		})
	}
	t.removed[id] = struct{}{}
	delete(t.dirty, id)
	delete(t.entries, id)
}

// Read resolves an identifier's value inside this Transaction, lazily
// recomputing anything the proposals invalidated. A detected cycle under
// the CycleThrow policy rejects the Transaction. Reading an identifier that
// left the graph in this Transaction fails with UNKNOWN_IDENTIFIER;
// calculations degrade such reads to unset instead.
func (t *Transaction) Read(id *Identifier) (Value, error) {
	if t.state != StateOpen && t.state != StateValidating {
		return nil, &GraphError{Code: ErrCodeClosed, Message: "read on " + t.state.String() + " transaction", Identifier: id.Name()}
	}
	if _, gone := t.removed[id]; gone {
		return nil, &GraphError{Code: ErrCodeUnknownIdentifier, Message: "identifier has left the graph", Identifier: id.Name()}
	}
	return t.resolve(id)
}

// resolve is the pull evaluator: return a fresh value if one exists,
// otherwise run the calculation, recursing into dependencies as it reads
// them.
func (t *Transaction) resolve(id *Identifier) (Value, error) {
	if _, gone := t.removed[id]; gone {
		return nil, nil
	}

	q, touched := t.entries[id]
	if !touched {
		// Untouched and not invalidated: the base snapshot answers.
		if !t.isDirty(id) {
			if bq, ok := t.base.Entry(id); ok && bq.HasValue() {
				return bq.GetValue(), nil
			}
			if id.Atomic() {
				return nil, nil
			}
			// Derived and never resolved anywhere: fall through and
			// compute a first value.
		}
		q = t.materialize(id)
	}

	if q.resolvedAt == t.epoch {
		return q.GetValue(), nil
	}
	if !t.isDirty(id) && q.HasValue() {
		return q.GetValue(), nil
	}
	if q.visitedAt == t.epoch {
		return t.onCycle(id)
	}
	q.visitedAt = t.epoch

	t.stack = append(t.stack, id)
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()

	var v Value
	if id.Atomic() {
		if pv, ok := q.Proposed(); ok {
			v = pv
		} else if bq, ok := t.base.Entry(id); ok && bq.HasValue() {
			v = bq.GetValue()
		}
	} else {
		ctx := &CalcContext{tx: t, ident: id, quark: q}
		var err error
		v, err = id.Field().Calc(ctx)
		if err != nil {
			if t.state == StateValidating || IsCycleError(err) {
				t.state = StateRejected
			}
			return nil, err
		}
	}

	if v == nil {
		// Unset stays unset; only real values and TombStone are written.
		q.resolvedAt = t.epoch
		return nil, nil
	}

	q.BecomeOrigin(t.latest)
	if err := q.SetValue(v); err != nil {
		t.state = StateRejected
		return nil, err
	}
	q.resolvedAt = t.epoch
	return v, nil
}

// onCycle applies the Transaction's cycle policy. Under CycleThrow the
// Transaction is rejected and the error names the identifier chain from
// the first visit to the read that closed the loop.
func (t *Transaction) onCycle(id *Identifier) (Value, error) {
	if t.opts.OnCycle == CycleTombstone {
		return TombStone, nil
	}
	start := 0
	for i, sid := range t.stack {
		if sid == id {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(t.stack)-start+1)
	for _, sid := range t.stack[start:] {
		chain = append(chain, sid.Name())
	}
	chain = append(chain, id.Name())
	t.state = StateRejected
	return nil, NewCycleError(chain)
}

// Commit runs the validation pass over the invalidated set and produces
// the successor Revision. On any error - cycle detection included - the
// Transaction is rejected and none of its Quarks escape.
//
// The returned Revision is not published; the Graph does that so that
// publication stays atomic and serialized.
func (t *Transaction) Commit() (*Revision, error) {
	if t.state != StateOpen {
		return nil, &GraphError{Code: ErrCodeClosed, Message: "commit on " + t.state.String() + " transaction"}
	}
	t.state = StateValidating
	t.epoch = t.graph.epochs.Next()

	// Fresh recomputation pass over the invalidated set: clear marks and
	// derived state, keeping prior values reachable for current-or-previous
	// reads. Entries outside the dirty set keep what lazy reads resolved;
	// nothing they depend on changed, or they would be in the set.
	for id := range t.dirty {
		if q, ok := t.entries[id]; ok {
			q.ResetToEpoch(t.epoch)
		}
	}

	for _, id := range t.dirtyOrder() {
		if _, err := t.resolve(id); err != nil {
			t.state = StateRejected
			return nil, err
		}
	}

	// Finalize: origins holding values enter the snapshot. A shadow that
	// only recorded dependency edges enters too, after absorbing the live
	// edges of the versions it supersedes, so later passes keep finding
	// the readers of an entry whose value never changed.
	overlay := make(map[*Identifier]*Quark, len(t.entries))
	for id, q := range t.entries {
		switch {
		case q.IsOrigin() && q.hasValue:
		case !q.IsOrigin() && q.carriesEdges():
			q.MergePreviousOrigin(t.latest)
		default:
			continue
		}
		q.finalize()
		overlay[id] = q
	}
	rev := t.base.next(t.graph.revs.Next(), t.token, overlay, t.removed)
	t.state = StateCommitted
	return rev, nil
}

// dirtyOrder returns the invalidated identifiers ordered by (level, name)
// so passes are deterministic. Pull evaluation makes the order a
// preference, not a correctness requirement.
func (t *Transaction) dirtyOrder() []*Identifier {
	ids := make([]*Identifier, 0, len(t.dirty))
	for id := range t.dirty {
		if _, gone := t.removed[id]; gone {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if ids[a].Level() != ids[b].Level() {
			return ids[a].Level() < ids[b].Level()
		}
		return ids[a].Name() < ids[b].Name()
	})
	return ids
}

// Discard abandons the Transaction. Safe to call in any state; only an
// open Transaction changes state, so a rejected branch keeps reporting
// why it died.
func (t *Transaction) Discard() {
	if t.state == StateOpen {
		t.state = StateDiscarded
	}
}
