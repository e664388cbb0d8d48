package graph

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCommitDelay is the debounce window for CommitAsync. Proposals
// arriving within the window coalesce into a single recomputation pass.
const DefaultCommitDelay = 10 * time.Millisecond

// Graph owns the published Revision and the commit pipeline for one
// project's worth of entities.
//
// Reads of the published Revision are lock-free (atomic pointer load) and
// may run from any goroutine. Mutation is single-writer: proposals
// accumulate in one pending Transaction, and commit passes are strictly
// serialized - a commit requested while another is in flight runs only
// after the current one settles.
type Graph struct {
	logger *slog.Logger
	tokens TokenGenerator
	delay  time.Duration

	epochs Clock
	revs   Clock

	published atomic.Pointer[Revision]

	// mu guards the pending overlay state below. commitMu serializes
	// commit passes and is never held while mu is taken first elsewhere.
	mu       sync.Mutex
	commitMu sync.Mutex
	pending  *Transaction
	future   *Future
	timer    *time.Timer

	entities map[Entity]struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// WithTokenGenerator overrides branch-token generation, typically with a
// FixedGenerator in tests.
func WithTokenGenerator(tg TokenGenerator) Option {
	return func(g *Graph) { g.tokens = tg }
}

// WithCommitDelay overrides the CommitAsync debounce window. Zero commits
// on the next scheduler tick without coalescing time.
func WithCommitDelay(d time.Duration) Option {
	return func(g *Graph) { g.delay = d }
}

// New creates a Graph with an empty root Revision.
func New(opts ...Option) *Graph {
	g := &Graph{
		logger:   slog.Default(),
		tokens:   UUIDv7Generator{},
		delay:    DefaultCommitDelay,
		entities: make(map[Entity]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.published.Store(emptyRevision())
	return g
}

// Revision returns the currently published snapshot. The returned Revision
// is immutable and safe to read from any goroutine.
func (g *Graph) Revision() *Revision {
	return g.published.Load()
}

// AddEntity joins a model instance's identifiers to the graph. All of the
// entity's identifiers are seeded into the pending invalidated set so the
// next commit resolves them for the first time.
func (g *Graph) AddEntity(e Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node := e.GraphNode()
	if _, ok := g.entities[e]; ok {
		return
	}
	g.entities[e] = struct{}{}
	tx := g.pendingLocked()
	for _, id := range node.Identifiers() {
		tx.markDirty(id)
	}
	g.logger.Debug("entity joined graph", "entity", node.Name(), "identifiers", len(node.Identifiers()))
}

// RemoveEntity schedules the entity's identifiers to leave the graph: the
// next commit drops their entries and revisits everything that read them.
func (g *Graph) RemoveEntity(e Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node := e.GraphNode()
	if _, ok := g.entities[e]; !ok {
		return
	}
	delete(g.entities, e)
	tx := g.pendingLocked()
	for _, id := range node.Identifiers() {
		tx.remove(id)
	}
	g.logger.Debug("entity left graph", "entity", node.Name())
}

// Propose registers a pending change on the accumulating Transaction. The
// change becomes visible to readers only when the coalescing commit pass
// publishes.
func (g *Graph) Propose(id *Identifier, value Value, args ...Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingLocked().Propose(id, value, args...)
}

// Invalidate marks an identifier stale on the accumulating Transaction
// without proposing a value. See Transaction.Invalidate.
func (g *Graph) Invalidate(id *Identifier) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingLocked().Invalidate(id)
}

// ReadCurrentOrProposed is the synchronous display read used outside any
// branch: the explicitly proposed value when one is pending, otherwise the
// published committed value, otherwise nil.
func (g *Graph) ReadCurrentOrProposed(id *Identifier) Value {
	g.mu.Lock()
	if g.pending != nil {
		if q, ok := g.pending.entries[id]; ok {
			if v, has := q.ProposedExplicit(); has {
				g.mu.Unlock()
				return v
			}
		}
	}
	g.mu.Unlock()
	v, _ := g.Revision().Value(id)
	return v
}

// Branch opens a disposable speculative Transaction on the published
// Revision. The typical use is hypothesis testing: install a change, read
// the downstream identifiers, interpret a CycleError as "this change would
// be cyclic", then Discard regardless of outcome.
//
// A branch created with AutoCommit may be handed to CommitBranch to
// publish; everything else stays invisible to the Graph.
func (g *Graph) Branch(opts Options) *Transaction {
	return newTransaction(g, g.Revision(), opts)
}

// CommitBranch publishes a branch's Revision, failing when the branch was
// not opened with AutoCommit or its base Revision has been superseded.
func (g *Graph) CommitBranch(tx *Transaction) (*Revision, error) {
	if !tx.opts.AutoCommit {
		return nil, &GraphError{Code: ErrCodeClosed, Message: "branch was not opened with AutoCommit"}
	}
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	if tx.base != g.Revision() {
		return nil, &GraphError{Code: ErrCodeStaleBase, Message: "branch base revision has been superseded"}
	}
	rev, err := tx.Commit()
	if err != nil {
		return nil, err
	}
	g.published.Store(rev)
	return rev, nil
}

// CommitAsync schedules the pending proposals for a commit pass after the
// debounce window and returns the deferred result. Proposals that arrive
// before the window closes join the same pass and share the same Future.
// With nothing pending, the returned Future is already settled on the
// current Revision.
func (g *Graph) CommitAsync() *Future {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return completedFuture(CommitResult{Revision: g.Revision()})
	}
	if g.future == nil {
		g.future = newFuture()
	}
	if g.timer == nil {
		g.timer = time.AfterFunc(g.delay, g.commitPending)
	}
	return g.future
}

// Commit flushes the pending proposals immediately and waits for the pass
// to settle.
func (g *Graph) Commit(ctx context.Context) (*Revision, error) {
	g.mu.Lock()
	if g.pending == nil {
		rev := g.Revision()
		g.mu.Unlock()
		return rev, nil
	}
	if g.future == nil {
		g.future = newFuture()
	}
	fut := g.future
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	g.commitPending()
	res, err := fut.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return res.Revision, res.Err
}

// pendingLocked returns the accumulating Transaction, creating one over
// the published Revision on first use. Caller holds mu.
func (g *Graph) pendingLocked() *Transaction {
	if g.pending == nil {
		g.pending = newTransaction(g, g.Revision(), Options{})
	}
	return g.pending
}

// commitPending runs one serialized commit pass over the pending
// Transaction and settles its Future. Safe to call concurrently with the
// debounce timer; whichever caller takes the pending state does the work.
func (g *Graph) commitPending() {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	g.mu.Lock()
	tx, fut := g.pending, g.future
	g.pending, g.future, g.timer = nil, nil, nil
	g.mu.Unlock()

	if tx == nil {
		if fut != nil {
			fut.complete(CommitResult{Revision: g.Revision()})
		}
		return
	}
	if fut == nil {
		fut = newFuture()
	}
	if tx.base != g.Revision() {
		// A branch published between accumulation and this pass.
		fut.complete(CommitResult{Err: &GraphError{Code: ErrCodeStaleBase, Message: "pending base revision has been superseded"}})
		return
	}

	rev, err := tx.Commit()
	if err != nil {
		g.logger.Warn("commit rejected", "token", tx.Token(), "error", err)
		fut.complete(CommitResult{Err: err})
		return
	}
	g.published.Store(rev)
	g.logger.Debug("revision published", "seq", rev.Seq(), "token", rev.Token(), "entries", rev.Len())
	fut.complete(CommitResult{Revision: rev})
}
