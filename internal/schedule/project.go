package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
)

// Project is the domain facade over one graph: it owns the task set,
// guards dependency edits with cycle validation, and exposes typed
// accessors over the published revision.
type Project struct {
	name  string
	graph *graph.Graph

	mu         sync.Mutex
	tasks      map[string]*Task
	milestones map[string]*Milestone
	parents    map[*Task]*Task
}

// NewProject creates an empty project. Graph options (logger, commit
// delay, token generator) pass through.
func NewProject(name string, opts ...graph.Option) *Project {
	return &Project{
		name:       name,
		graph:      graph.New(opts...),
		tasks:      make(map[string]*Task),
		milestones: make(map[string]*Milestone),
		parents:    make(map[*Task]*Task),
	}
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// Graph exposes the underlying graph for traces and direct proposals.
func (p *Project) Graph() *graph.Graph { return p.graph }

// AddTask creates a task, joins it to the graph, and returns it. Task
// names are unique within a project.
func (p *Project) AddTask(name string) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tasks[name]; exists {
		return nil, fmt.Errorf("task %q already exists in project %q", name, p.name)
	}
	t := NewTask(name)
	p.tasks[name] = t
	p.graph.AddEntity(t)
	return t, nil
}

// Task looks a task up by name.
func (p *Project) Task(name string) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[name]
	return t, ok
}

// Tasks returns the task set. Iteration order is unspecified.
func (p *Project) Tasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	return out
}

// RemoveTask detaches a task: its identifiers leave the graph on the
// next commit and every reader recomputes without it.
func (p *Project) RemoveTask(t *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tasks[t.Name()]; !ok {
		return fmt.Errorf("task %q is not in project %q", t.Name(), p.name)
	}
	delete(p.tasks, t.Name())
	delete(p.parents, t)
	p.graph.RemoveEntity(t)
	return nil
}

// AddMilestone creates a milestone and joins it to the graph.
func (p *Project) AddMilestone(name string) (*Milestone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.milestones[name]; exists {
		return nil, fmt.Errorf("milestone %q already exists in project %q", name, p.name)
	}
	m := NewMilestone(name)
	p.milestones[name] = m
	p.graph.AddEntity(m)
	return m, nil
}

// Milestone looks a milestone up by name.
func (p *Project) Milestone(name string) (*Milestone, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.milestones[name]
	return m, ok
}

// SetStart proposes a new start date. With keep-duration semantics the
// end slides to start + duration on the next commit.
//
// The setters invalidate the derived corners of the date triangle
// explicitly: a field whose last resolution was answered by a proposal
// recorded no reads, so no edge covers the dependency.
func (p *Project) SetStart(t HasDates, d dates.Day) error {
	if err := p.graph.Propose(t.StartIdent(), d); err != nil {
		return err
	}
	return p.graph.Invalidate(t.EndIdent())
}

// SetEnd proposes a new end date. The duration is re-derived against the
// unchanged start on the next commit.
func (p *Project) SetEnd(t HasDates, d dates.Day) error {
	if err := p.graph.Propose(t.EndIdent(), d); err != nil {
		return err
	}
	return p.graph.Invalidate(t.DurationIdent())
}

// SetDuration proposes a new duration in days. The end slides on the
// next commit.
func (p *Project) SetDuration(t HasDates, days int) error {
	if err := p.graph.Propose(t.DurationIdent(), days); err != nil {
		return err
	}
	return p.graph.Invalidate(t.EndIdent())
}

// SetPercentDone proposes a leaf task's completion percentage.
func (p *Project) SetPercentDone(t *Task, pct int) error {
	return p.graph.Propose(t.PercentDoneIdent(), pct)
}

// Assign proposes the task's full assignment list.
func (p *Project) Assign(t *Task, assignments []Assignment) error {
	if err := p.graph.Propose(t.AssignmentsIdent(), assignments); err != nil {
		return err
	}
	return p.graph.Invalidate(t.EffortIdent())
}

// SetParent reparents a task: the child leaves its old parent's child
// list and joins the new one. A nil parent makes the task top-level.
func (p *Project) SetParent(child, parent *Task) error {
	p.mu.Lock()
	old := p.parents[child]
	if parent == nil {
		delete(p.parents, child)
	} else {
		p.parents[child] = parent
	}
	p.mu.Unlock()

	if old != nil {
		kept := removeTask(p.childrenOf(old), child)
		if err := p.graph.Propose(old.ChildrenIdent(), kept); err != nil {
			return err
		}
		if err := p.invalidateRollups(old); err != nil {
			return err
		}
	}
	if parent != nil {
		next := append(p.childrenOf(parent), child)
		if err := p.graph.Propose(parent.ChildrenIdent(), next); err != nil {
			return err
		}
		return p.invalidateRollups(parent)
	}
	return nil
}

// invalidateRollups marks a summary's derived fields stale after a child
// list change.
func (p *Project) invalidateRollups(parent *Task) error {
	for _, id := range []*graph.Identifier{
		parent.StartIdent(), parent.EndIdent(),
		parent.DurationIdent(), parent.PercentDoneIdent(),
	} {
		if err := p.graph.Invalidate(id); err != nil {
			return err
		}
	}
	return nil
}

// Link adds pred as a predecessor of succ after validating that the edge
// would not close a dependency cycle. On success the new predecessor
// list is proposed on the accumulating transaction; a CycleError leaves
// the project untouched.
func (p *Project) Link(pred, succ *Task) error {
	preds := p.predecessorsOf(succ)
	for _, existing := range preds {
		if existing == pred {
			return nil
		}
	}
	next := append(preds, pred)
	if err := p.ValidateDependency(succ, next); err != nil {
		return err
	}
	if err := p.graph.Propose(succ.PredecessorsIdent(), next); err != nil {
		return err
	}
	return p.invalidateDates(succ)
}

// Unlink removes pred from succ's predecessor list. The successor keeps
// its dates when the list empties; it only reschedules while it still
// has predecessors.
func (p *Project) Unlink(pred, succ *Task) error {
	if err := p.graph.Propose(succ.PredecessorsIdent(), removeTask(p.predecessorsOf(succ), pred)); err != nil {
		return err
	}
	return p.invalidateDates(succ)
}

// LinkMilestone makes a milestone trail a task's end, with the same
// cycle guard as Link.
func (p *Project) LinkMilestone(pred *Task, m *Milestone) error {
	preds, _ := p.graph.ReadCurrentOrProposed(m.PredecessorsIdent()).([]*Task)
	for _, existing := range preds {
		if existing == pred {
			return nil
		}
	}
	next := append(preds, pred)
	branch := p.graph.Branch(graph.Options{OnCycle: graph.CycleThrow})
	if err := branch.Propose(m.PredecessorsIdent(), next); err != nil {
		branch.Discard()
		return err
	}
	if err := branch.Invalidate(m.StartIdent()); err != nil {
		branch.Discard()
		return err
	}
	if _, err := branch.Read(m.EndIdent()); err != nil {
		branch.Discard()
		return err
	}
	branch.Discard()
	if err := p.graph.Propose(m.PredecessorsIdent(), next); err != nil {
		return err
	}
	return p.invalidateDates(m)
}

// invalidateDates marks an entity's date fields stale after a dependency
// change.
func (p *Project) invalidateDates(t HasDates) error {
	if err := p.graph.Invalidate(t.StartIdent()); err != nil {
		return err
	}
	return p.graph.Invalidate(t.EndIdent())
}

// ValidateDependency checks whether succ could take the given
// predecessor list without making the schedule cyclic. The hypothesis
// runs on a disposable branch over the published revision: install the
// list, pull succ's end date, and interpret a CycleError as "would be
// cyclic". The branch is discarded either way, so the published state
// and the accumulating transaction never see the hypothesis.
func (p *Project) ValidateDependency(succ *Task, preds []*Task) error {
	branch := p.graph.Branch(graph.Options{OnCycle: graph.CycleThrow})
	defer branch.Discard()
	if err := branch.Propose(succ.PredecessorsIdent(), preds); err != nil {
		return err
	}
	// The hypothetical list is a new input the last resolution never
	// read; force the date fields to recompute under it.
	if err := branch.Invalidate(succ.StartIdent()); err != nil {
		return err
	}
	if err := branch.Invalidate(succ.EndIdent()); err != nil {
		return err
	}
	if _, err := branch.Read(succ.EndIdent()); err != nil {
		return err
	}
	return nil
}

// TryLink checks whether linking pred as a predecessor of succ would be
// accepted, without proposing anything. The hypothesis runs on a
// disposable branch over the published revision, so call it after the
// real dependencies have committed.
func (p *Project) TryLink(pred, succ *Task) error {
	preds := p.predecessorsOf(succ)
	for _, existing := range preds {
		if existing == pred {
			return nil
		}
	}
	return p.ValidateDependency(succ, append(preds, pred))
}

// Commit flushes pending proposals and waits for the recomputation pass.
func (p *Project) Commit(ctx context.Context) (*graph.Revision, error) {
	return p.graph.Commit(ctx)
}

// CommitAsync schedules a debounced commit pass; proposals arriving
// within the window coalesce into the same pass.
func (p *Project) CommitAsync() *graph.Future {
	return p.graph.CommitAsync()
}

// Start reads a task's committed (or explicitly proposed) start date.
func (p *Project) Start(t HasDates) (dates.Day, bool) {
	return asDay(p.graph.ReadCurrentOrProposed(t.StartIdent()))
}

// End reads a task's committed (or explicitly proposed) end date. The
// end is exclusive: a successor may start on this day.
func (p *Project) End(t HasDates) (dates.Day, bool) {
	return asDay(p.graph.ReadCurrentOrProposed(t.EndIdent()))
}

// Duration reads a task's committed (or explicitly proposed) duration.
func (p *Project) Duration(t HasDates) (int, bool) {
	n, ok := p.graph.ReadCurrentOrProposed(t.DurationIdent()).(int)
	return n, ok
}

// PercentDone reads a task's committed completion percentage.
func (p *Project) PercentDone(t *Task) (int, bool) {
	n, ok := p.graph.ReadCurrentOrProposed(t.PercentDoneIdent()).(int)
	return n, ok
}

// Effort reads a task's committed effort in resource-days. A task with
// no assignments has explicitly no effort and reports false.
func (p *Project) Effort(t *Task) (int, bool) {
	v := p.graph.ReadCurrentOrProposed(t.EffortIdent())
	if graph.IsTombStone(v) {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// predecessorsOf reads succ's current-or-proposed predecessor list.
func (p *Project) predecessorsOf(succ *Task) []*Task {
	tasks, _ := p.graph.ReadCurrentOrProposed(succ.PredecessorsIdent()).([]*Task)
	return tasks
}

// childrenOf reads a parent's current-or-proposed child list.
func (p *Project) childrenOf(parent *Task) []*Task {
	tasks, _ := p.graph.ReadCurrentOrProposed(parent.ChildrenIdent()).([]*Task)
	return tasks
}

func removeTask(list []*Task, t *Task) []*Task {
	out := make([]*Task, 0, len(list))
	for _, x := range list {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}
