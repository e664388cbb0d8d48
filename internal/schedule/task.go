package schedule

import (
	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
)

// HasDates is the capability of carrying a scheduled date span.
type HasDates interface {
	StartIdent() *graph.Identifier
	EndIdent() *graph.Identifier
	DurationIdent() *graph.Identifier
}

// HasDependencies is the capability of depending on other tasks.
type HasDependencies interface {
	PredecessorsIdent() *graph.Identifier
}

// HasAssignments is the capability of carrying resource assignments.
type HasAssignments interface {
	AssignmentsIdent() *graph.Identifier
	EffortIdent() *graph.Identifier
}

// Assignment allocates a resource to a task at some percentage of its
// time. Units are whole percent: 100 is full-time.
type Assignment struct {
	Resource string
	Units    int
}

// Task is a schedulable unit of work: dates, dependencies, assignments,
// and a completion rollup when it has children.
type Task struct {
	name string
	node *graph.EntityNode
}

// compile-time capability checks
var (
	_ HasDates        = (*Task)(nil)
	_ HasDependencies = (*Task)(nil)
	_ HasAssignments  = (*Task)(nil)
	_ graph.Entity    = (*Task)(nil)
)

// NewTask creates a task and its identifier bindings. The task is not part
// of any graph until a Project adds it.
func NewTask(name string) *Task {
	t := &Task{name: name}
	t.node = graph.NewEntityNode(name, taskFields.table, t)
	return t
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// GraphNode implements graph.Entity.
func (t *Task) GraphNode() *graph.EntityNode { return t.node }

func (t *Task) StartIdent() *graph.Identifier    { return t.node.Identifier(taskFields.start) }
func (t *Task) EndIdent() *graph.Identifier      { return t.node.Identifier(taskFields.end) }
func (t *Task) DurationIdent() *graph.Identifier { return t.node.Identifier(taskFields.duration) }
func (t *Task) PredecessorsIdent() *graph.Identifier {
	return t.node.Identifier(taskFields.predecessors)
}
func (t *Task) ChildrenIdent() *graph.Identifier    { return t.node.Identifier(taskFields.children) }
func (t *Task) PercentDoneIdent() *graph.Identifier { return t.node.Identifier(taskFields.percentDone) }
func (t *Task) AssignmentsIdent() *graph.Identifier { return t.node.Identifier(taskFields.assignments) }
func (t *Task) EffortIdent() *graph.Identifier      { return t.node.Identifier(taskFields.effort) }

// milestoneFieldSet declares the Milestone type: a zero-length marker with
// dependencies but no assignments or rollups.
type milestoneFieldSet struct {
	table        *graph.FieldTable
	predecessors graph.FieldIndex
	start        graph.FieldIndex
	end          graph.FieldIndex
	duration     graph.FieldIndex
}

// Assigned in init for the same reason as taskFields: the milestone
// calculations index the table through Milestone methods.
var milestoneFields *milestoneFieldSet

func init() { milestoneFields = buildMilestoneFields() }

func buildMilestoneFields() *milestoneFieldSet {
	f := &milestoneFieldSet{table: graph.NewFieldTable()}
	f.predecessors = f.table.Declare("predecessors", levelStructure, nil)
	f.start = f.table.Declare("start", levelDates, calcMilestoneStart)
	f.end = f.table.Declare("end", levelDates, calcMilestoneEnd)
	f.duration = f.table.Declare("duration", levelDates, func(*graph.CalcContext) (graph.Value, error) {
		return 0, nil
	})
	f.table.Seal()
	return f
}

func calcMilestoneStart(ctx *graph.CalcContext) (graph.Value, error) {
	m := ctx.Owner().(*Milestone)
	if v, ok := ctx.Proposed(m.StartIdent()); ok {
		return v, nil
	}
	preds, err := readTasks(ctx, m.PredecessorsIdent())
	if err != nil {
		return nil, err
	}
	latest, any := dates.Day(0), false
	for _, p := range preds {
		d, ok, err := readDay(ctx, p.EndIdent())
		if err != nil {
			return nil, err
		}
		if ok && (!any || d > latest) {
			latest, any = d, true
		}
	}
	if any {
		return latest, nil
	}
	prev, err := ctx.ReadPrevious(m.StartIdent())
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// A milestone spans nothing: the end is the start.
func calcMilestoneEnd(ctx *graph.CalcContext) (graph.Value, error) {
	m := ctx.Owner().(*Milestone)
	v, err := ctx.Read(m.StartIdent())
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Milestone is a zero-length scheduling marker. It carries dates and
// dependencies but no assignments: capability composition instead of an
// inheritance chain.
type Milestone struct {
	name string
	node *graph.EntityNode
}

var (
	_ HasDates        = (*Milestone)(nil)
	_ HasDependencies = (*Milestone)(nil)
	_ graph.Entity    = (*Milestone)(nil)
)

// NewMilestone creates a milestone and its identifier bindings.
func NewMilestone(name string) *Milestone {
	m := &Milestone{name: name}
	m.node = graph.NewEntityNode(name, milestoneFields.table, m)
	return m
}

// Name returns the milestone's name.
func (m *Milestone) Name() string { return m.name }

// GraphNode implements graph.Entity.
func (m *Milestone) GraphNode() *graph.EntityNode { return m.node }

func (m *Milestone) StartIdent() *graph.Identifier { return m.node.Identifier(milestoneFields.start) }
func (m *Milestone) EndIdent() *graph.Identifier   { return m.node.Identifier(milestoneFields.end) }
func (m *Milestone) DurationIdent() *graph.Identifier {
	return m.node.Identifier(milestoneFields.duration)
}
func (m *Milestone) PredecessorsIdent() *graph.Identifier {
	return m.node.Identifier(milestoneFields.predecessors)
}
