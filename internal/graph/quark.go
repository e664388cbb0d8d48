package graph

// EdgeKind distinguishes dependency edge flavors.
type EdgeKind int

const (
	// EdgeNormal marks a read of the live value inside the same pass.
	EdgeNormal EdgeKind = iota

	// EdgePast marks a retrospective read (current-or-previous): the
	// reader looked at history, not the value being recomputed.
	EdgePast
)

// Quark is one version of an identifier's value within a Revision or
// Transaction.
//
// Exactly one Quark per version chain owns the value: the origin. A Quark
// whose origin pointer leads elsewhere is a shadow - it answers lookups by
// deferring but holds no authoritative data, and writing through it fails
// with an INVALID_SHADOW_WRITE error.
//
// A Quark is superseded, never mutated, once its Revision is published.
// The `previous` pointer chains versions until commit finalization cuts
// the chain; superseded versions stay alive only while some Revision still
// references them.
type Quark struct {
	ident *Identifier

	// value is the committed value. hasValue distinguishes a genuine nil
	// from "not yet resolved".
	value    Value
	hasValue bool

	// proposed is the pending candidate value. proposedExplicit is true
	// for values set by Propose and false for the fallback that
	// ResetToEpoch preserves so current-or-previous reads keep working
	// mid-recomputation.
	proposed         Value
	hasProposed      bool
	proposedExplicit bool
	proposedArgs     []Value

	// origin points at the authoritative Quark of this version chain.
	// nil means not yet established; == this Quark means authoritative.
	origin   *Quark
	previous *Quark

	// originID identifies the unbroken chain of origin ownership. Edges
	// recorded against an older ownership chain fail the liveness check
	// and are treated as absent.
	originID int64

	// outgoing maps reader identifier -> the reader's Quark at the time
	// the reader's calculation read this entry. pastOutgoing is the same
	// for retrospective reads.
	outgoing     map[*Identifier]*Quark
	pastOutgoing map[*Identifier]*Quark

	// visitedAt / resolvedAt are epoch stamps for cycle detection.
	// resetAt stamps the pass that last reset this entry, so a pass
	// resets each entry at most once.
	visitedAt  int64
	resolvedAt int64
	resetAt    int64
}

// newQuark creates the next version of an identifier's entry. When prev is
// non-nil the new Quark starts life as a shadow of prev's origin, so
// lookups keep answering with the last authoritative value until the new
// version is promoted.
func newQuark(ident *Identifier, prev *Quark) *Quark {
	q := &Quark{ident: ident, previous: prev}
	if prev != nil {
		q.origin = prev.originQuark()
	}
	return q
}

// Identifier returns the identifier this Quark versions.
func (q *Quark) Identifier() *Identifier { return q.ident }

// Previous returns the Quark this one supersedes.
func (q *Quark) Previous() *Quark { return q.previous }

// originQuark resolves the origin pointer without establishing one.
// Returns nil when no origin exists yet anywhere in the chain.
func (q *Quark) originQuark() *Quark {
	o := q.origin
	for o != nil && o.origin != o {
		o = o.origin
	}
	return o
}

// GetOrigin returns the authoritative Quark for this version chain. If no
// origin exists yet, this Quark establishes itself as origin with a fresh
// originID.
func (q *Quark) GetOrigin() *Quark {
	if o := q.originQuark(); o != nil {
		return o
	}
	q.origin = q
	q.originID = originIDs.Next()
	return q
}

// IsOrigin reports whether this Quark is the authoritative entry.
func (q *Quark) IsOrigin() bool { return q.origin == q }

// OriginID returns the ownership-chain id, or 0 when no origin has been
// established through this Quark.
func (q *Quark) OriginID() int64 {
	if o := q.originQuark(); o != nil {
		return o.originID
	}
	return 0
}

// SetValue writes the value. It fails with an INVALID_SHADOW_WRITE error
// when called on a Quark that is not the origin of its chain; shadows must
// never be written through, or the wrong version would silently become
// authoritative.
func (q *Quark) SetValue(v Value) error {
	if q.origin == nil {
		q.GetOrigin()
	}
	if !q.IsOrigin() {
		return NewShadowWriteError(q.ident.Name())
	}
	q.value = v
	q.hasValue = true
	return nil
}

// GetValue returns the origin's value, or nil while unresolved.
func (q *Quark) GetValue() Value {
	o := q.originQuark()
	if o == nil || !o.hasValue {
		return nil
	}
	return o.value
}

// HasValue reports whether the origin holds a resolved value.
func (q *Quark) HasValue() bool {
	o := q.originQuark()
	return o != nil && o.hasValue
}

// SetProposed records a pending candidate value with optional side-channel
// arguments the calculation may need to rebuild it.
func (q *Quark) SetProposed(v Value, args ...Value) {
	q.proposed = v
	q.hasProposed = true
	q.proposedExplicit = true
	q.proposedArgs = args
}

// Proposed returns the pending candidate value, explicit or fallback.
func (q *Quark) Proposed() (Value, bool) {
	return q.proposed, q.hasProposed
}

// ProposedExplicit returns the pending value only when it was set by a
// proposal, not preserved as a recomputation fallback.
func (q *Quark) ProposedExplicit() (Value, bool) {
	if !q.proposedExplicit {
		return nil, false
	}
	return q.proposed, true
}

// ProposedArgs returns the side-channel arguments of the pending proposal.
func (q *Quark) ProposedArgs() []Value { return q.proposedArgs }

// ResetToEpoch prepares the Quark for the recomputation pass identified by
// epoch: clears visitation marks and derived state. When this Quark is
// itself an origin, the last value is preserved as a fallback proposed
// value so that current-or-previous reads still answer mid-recomputation.
// A second call within the same pass is a no-op, so a value resolved after
// the reset is not wiped by a later invalidation of the same entry.
func (q *Quark) ResetToEpoch(epoch int64) {
	if q.resetAt == epoch {
		return
	}
	q.resetAt = epoch
	q.visitedAt = 0
	q.resolvedAt = 0
	if q.IsOrigin() && q.hasValue {
		if !q.hasProposed {
			q.proposed = q.value
			q.hasProposed = true
			q.proposedExplicit = false
		}
		q.value = nil
		q.hasValue = false
	}
}

// AddOutgoingTo records that resolving target required reading this entry.
// The edge is stored here, on the entry that was read, because that is the
// direction invalidation flows: when this identifier changes, target must
// be revisited.
func (q *Quark) AddOutgoingTo(target *Quark, kind EdgeKind) {
	switch kind {
	case EdgePast:
		if q.pastOutgoing == nil {
			q.pastOutgoing = make(map[*Identifier]*Quark)
		}
		q.pastOutgoing[target.ident] = target
	default:
		if q.outgoing == nil {
			q.outgoing = make(map[*Identifier]*Quark)
		}
		q.outgoing[target.ident] = target
	}
}

// latestLookup resolves an identifier to its latest Quark in the enclosing
// Revision or Transaction. Edge liveness is always judged against it.
type latestLookup func(*Identifier) *Quark

// edgeLive reports whether a recorded edge target still represents the
// current version of its identifier: the stored Quark must have become an
// origin and its originID must match the latest entry's ownership chain.
// Everything else - targets from discarded Transactions, superseded
// versions - is a stale edge and is treated as absent.
func edgeLive(target *Quark, latest latestLookup) bool {
	if target.originID == 0 {
		return false
	}
	cur := latest(target.ident)
	return cur != nil && target.originID == cur.OriginID()
}

// EachLiveOutgoing walks this version chain across shadow boundaries and
// visits every outgoing edge (normal and past) that is still live relative
// to latest. Readers are visited once even when several versions recorded
// them.
func (q *Quark) EachLiveOutgoing(latest latestLookup, fn func(reader *Identifier, kind EdgeKind)) {
	seen := make(map[*Identifier]struct{})
	visit := func(edges map[*Identifier]*Quark, kind EdgeKind) {
		for reader, target := range edges {
			if _, dup := seen[reader]; dup {
				continue
			}
			if edgeLive(target, latest) {
				seen[reader] = struct{}{}
				fn(reader, kind)
			}
		}
	}
	for v := q; v != nil; v = v.previous {
		visit(v.outgoing, EdgeNormal)
		visit(v.pastOutgoing, EdgePast)
	}
}

// BecomeOrigin promotes this Quark to the authoritative entry of its
// chain under a fresh originID and absorbs the previous origin's still-live
// state via MergePreviousOrigin. Promoting an origin is a no-op.
func (q *Quark) BecomeOrigin(latest latestLookup) {
	if q.IsOrigin() {
		return
	}
	q.origin = q
	q.originID = originIDs.Next()
	q.MergePreviousOrigin(latest)
}

// MergePreviousOrigin absorbs the outgoing edges of the versions this
// Quark supersedes - only those still live per the originID check against
// latest - so that reverse invalidation keeps finding readers after the
// version chain moves here. Superseded versions are read, never written:
// published Revisions share their Quarks across concurrent branches.
// Edges recorded on this version win over inherited ones.
func (q *Quark) MergePreviousOrigin(latest latestLookup) {
	for v := q.previous; v != nil; v = v.previous {
		for reader, target := range v.outgoing {
			if reader == q.ident {
				continue
			}
			if _, own := q.outgoing[reader]; own {
				continue
			}
			if edgeLive(target, latest) {
				q.AddOutgoingTo(target, EdgeNormal)
			}
		}
		for reader, target := range v.pastOutgoing {
			if reader == q.ident {
				continue
			}
			if _, own := q.pastOutgoing[reader]; own {
				continue
			}
			if edgeLive(target, latest) {
				q.AddOutgoingTo(target, EdgePast)
			}
		}
	}
}

// carriesEdges reports whether any dependency edges were recorded on this
// version itself, ignoring the chain it supersedes.
func (q *Quark) carriesEdges() bool {
	return len(q.outgoing) > 0 || len(q.pastOutgoing) > 0
}

// finalize strips transient state after a successful commit: proposal
// bookkeeping, visitation marks, and the previous chain. Cutting previous
// lets superseded versions be reclaimed once no Revision references them.
func (q *Quark) finalize() {
	q.proposed = nil
	q.hasProposed = false
	q.proposedExplicit = false
	q.proposedArgs = nil
	q.visitedAt = 0
	q.resolvedAt = 0
	q.resetAt = 0
	q.previous = nil
}
