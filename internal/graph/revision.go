package graph

// Revision is an immutable, fully-resolved snapshot: every identifier maps
// to its latest origin Quark, and every edge reachable from it was
// validated acyclic when the producing Transaction committed.
//
// Revisions are produced only by committing a Transaction and are never
// mutated afterwards; the Graph supersedes them atomically.
type Revision struct {
	seq     int64
	token   string
	entries map[*Identifier]*Quark
}

// emptyRevision is the root every Graph starts from.
func emptyRevision() *Revision {
	return &Revision{entries: make(map[*Identifier]*Quark)}
}

// Seq returns the revision's monotonic sequence number. The root revision
// is 0.
func (r *Revision) Seq() int64 { return r.seq }

// Token returns the branch token of the Transaction that produced this
// revision, empty for the root.
func (r *Revision) Token() string { return r.token }

// Entry returns the latest origin Quark for id, if the identifier is part
// of this snapshot.
func (r *Revision) Entry(id *Identifier) (*Quark, bool) {
	q, ok := r.entries[id]
	return q, ok
}

// Value returns the committed value of id. ok is false when the
// identifier is unknown to this snapshot or never resolved.
func (r *Revision) Value(id *Identifier) (Value, bool) {
	q, ok := r.entries[id]
	if !ok || !q.HasValue() {
		return nil, false
	}
	return q.GetValue(), true
}

// Len returns the number of identifiers in the snapshot.
func (r *Revision) Len() int { return len(r.entries) }

// Each visits every (identifier, Quark) pair. Iteration order is
// unspecified; callers needing determinism must sort.
func (r *Revision) Each(fn func(id *Identifier, q *Quark)) {
	for id, q := range r.entries {
		fn(id, q)
	}
}

// next builds the successor snapshot: a copy of this revision's mapping
// with the overlay's finalized entries written over it and removed
// identifiers dropped.
func (r *Revision) next(seq int64, token string, overlay map[*Identifier]*Quark, removed map[*Identifier]struct{}) *Revision {
	entries := make(map[*Identifier]*Quark, len(r.entries)+len(overlay))
	for id, q := range r.entries {
		if _, gone := removed[id]; gone {
			continue
		}
		entries[id] = q
	}
	for id, q := range overlay {
		if _, gone := removed[id]; gone {
			continue
		}
		entries[id] = q
	}
	return &Revision{seq: seq, token: token, entries: entries}
}
