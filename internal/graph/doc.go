// Package graph implements the Gantry incremental computation graph.
//
// The graph is a versioned, lazily-evaluated dataflow engine: fields of a
// model are declared as identifiers (atomic slots or pure calculations over
// other identifiers), and the engine decides what must be recomputed, in
// what order, when a set of proposals is committed.
//
// ARCHITECTURE:
//
// Pull-based evaluation:
// Nothing is recomputed eagerly. A read inside a Transaction resolves the
// requested identifier depth-first, recursing into its dependencies as the
// calculation asks for them. Identifiers that nothing reads are never
// recomputed, even when they are nominally downstream of a change.
//
// Versioned entries:
// Each identifier's value lives in a Quark - one immutable-once-published
// version of the value. Writers never mutate a published Quark; a
// Transaction supersedes it with a new version whose `previous` pointer
// forms the version chain. Exactly one Quark per version chain is the
// origin (the authoritative holder of the value); the rest are shadows
// that defer to it. Writing through a shadow is a contract violation.
//
// Epoch-based cycle detection:
// Before a calculation runs, its Quark is stamped with the Transaction's
// current epoch. Hitting a stamped-but-unresolved Quark again within the
// same epoch means the resolution path closed on itself, and the
// Transaction is rejected with a CycleError naming the identifier chain.
// This costs O(1) per edge instead of a separate graph traversal.
//
// Stale-edge liveness:
// Dependency edges are recorded on the Quark that was read, pointing at
// the reader. An edge is live only while the reader Quark's originID
// matches the originID of the latest Quark for that identifier. Edges left
// behind by discarded Transactions or superseded versions fail this check
// and are silently treated as absent - that is the mechanism, not a
// failure mode.
//
// Commit discipline:
// All events of one commit pass are resolved against a single base
// Revision, and the published Revision pointer is swapped atomically.
// Readers see the fully old or the fully new snapshot, never a mix.
// Commits for one Graph are strictly serialized.
package graph
