package schedule

import (
	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
)

// Resolution levels: structural lists settle first, then dates, then
// rollups that aggregate over dates.
const (
	levelStructure = 0
	levelDates     = 1
	levelRollups   = 2
)

// taskFieldSet holds the field indices of the Task type. One table is
// built at package initialization and shared by every Task instance.
type taskFieldSet struct {
	table *graph.FieldTable

	predecessors graph.FieldIndex
	children     graph.FieldIndex
	assignments  graph.FieldIndex
	start        graph.FieldIndex
	end          graph.FieldIndex
	duration     graph.FieldIndex
	percentDone  graph.FieldIndex
	effort       graph.FieldIndex
}

// taskFields is assigned in init, not in its declaration: the calculations
// reach identifiers through Task methods, which index this table back, and
// that reference loop is an initialization cycle when the table is built
// as part of the variable's initializer.
var taskFields *taskFieldSet

func init() { taskFields = buildTaskFields() }

func buildTaskFields() *taskFieldSet {
	f := &taskFieldSet{table: graph.NewFieldTable()}
	f.predecessors = f.table.Declare("predecessors", levelStructure, nil)
	f.children = f.table.Declare("children", levelStructure, nil)
	f.assignments = f.table.Declare("assignments", levelStructure, nil)
	f.start = f.table.Declare("start", levelDates, calcStart)
	f.end = f.table.Declare("end", levelDates, calcEnd)
	f.duration = f.table.Declare("duration", levelDates, calcDuration)
	f.percentDone = f.table.Declare("percentDone", levelRollups, calcPercentDone)
	f.effort = f.table.Declare("effort", levelRollups, calcEffort)
	f.table.Seal()
	return f
}

// calcStart resolves a task's start date:
//  1. an explicit proposal wins;
//  2. a summary task starts when its earliest child starts;
//  3. a task with predecessors starts when the latest one ends;
//  4. otherwise the previous start is kept.
func calcStart(ctx *graph.CalcContext) (graph.Value, error) {
	task := ctx.Owner().(*Task)
	if v, ok := ctx.Proposed(task.StartIdent()); ok {
		return v, nil
	}

	children, err := readTasks(ctx, task.ChildrenIdent())
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		earliest, any := dates.Day(0), false
		for _, c := range children {
			d, ok, err := readDay(ctx, c.StartIdent())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if !any || d < earliest {
				earliest, any = d, true
			}
		}
		if any {
			return earliest, nil
		}
		return nil, nil
	}

	preds, err := readTasks(ctx, task.PredecessorsIdent())
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		latest, any := dates.Day(0), false
		for _, p := range preds {
			d, ok, err := readDay(ctx, p.EndIdent())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if !any || d > latest {
				latest, any = d, true
			}
		}
		if any {
			return latest, nil
		}
	}

	prev, err := ctx.ReadPrevious(task.StartIdent())
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// calcEnd resolves a task's end date: an explicit proposal wins, a summary
// ends when its last child ends, otherwise end = start + duration.
func calcEnd(ctx *graph.CalcContext) (graph.Value, error) {
	task := ctx.Owner().(*Task)
	if v, ok := ctx.Proposed(task.EndIdent()); ok {
		return v, nil
	}

	children, err := readTasks(ctx, task.ChildrenIdent())
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		latest, any := dates.Day(0), false
		for _, c := range children {
			d, ok, err := readDay(ctx, c.EndIdent())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if !any || d > latest {
				latest, any = d, true
			}
		}
		if any {
			return latest, nil
		}
		return nil, nil
	}

	start, ok, err := readDay(ctx, task.StartIdent())
	if err != nil || !ok {
		return nil, err
	}
	dur, ok, err := readInt(ctx, task.DurationIdent())
	if err != nil || !ok {
		return nil, err
	}
	return dates.Add(start, dur), nil
}

// calcDuration implements the keep-duration precedence:
//  1. an explicit proposal wins;
//  2. when the end was proposed (and the start was not), the duration is
//     re-derived from the proposed end - this is the only edit that
//     changes a leaf's duration implicitly;
//  3. a summary spans its children;
//  4. otherwise the previous duration is kept, which is what makes a
//     start-only change slide the end instead of squeezing the task.
func calcDuration(ctx *graph.CalcContext) (graph.Value, error) {
	task := ctx.Owner().(*Task)
	if v, ok := ctx.Proposed(task.DurationIdent()); ok {
		return v, nil
	}

	if endV, endProposed := ctx.Proposed(task.EndIdent()); endProposed {
		if _, startProposed := ctx.Proposed(task.StartIdent()); !startProposed {
			end, ok := asDay(endV)
			if !ok {
				return nil, nil
			}
			start, hasStart, err := readDay(ctx, task.StartIdent())
			if err != nil || !hasStart {
				return nil, err
			}
			return dates.Diff(start, end), nil
		}
	}

	children, err := readTasks(ctx, task.ChildrenIdent())
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		start, okS, err := readDay(ctx, task.StartIdent())
		if err != nil {
			return nil, err
		}
		end, okE, err := readDay(ctx, task.EndIdent())
		if err != nil {
			return nil, err
		}
		if okS && okE {
			return dates.Diff(start, end), nil
		}
		return nil, nil
	}

	prev, err := ctx.ReadPrevious(task.DurationIdent())
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// calcPercentDone rolls completion up the task tree: a summary reports the
// duration-weighted mean of its children; a leaf reports its proposal, or
// keeps whatever it last reported.
func calcPercentDone(ctx *graph.CalcContext) (graph.Value, error) {
	task := ctx.Owner().(*Task)
	if v, ok := ctx.Proposed(task.PercentDoneIdent()); ok {
		return v, nil
	}

	children, err := readTasks(ctx, task.ChildrenIdent())
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		prev, err := ctx.ReadPrevious(task.PercentDoneIdent())
		if err != nil {
			return nil, err
		}
		if graph.IsUnset(prev) {
			return 0, nil
		}
		return prev, nil
	}

	weighted, total := 0, 0
	for _, c := range children {
		pct, okP, err := readInt(ctx, c.PercentDoneIdent())
		if err != nil {
			return nil, err
		}
		dur, okD, err := readInt(ctx, c.DurationIdent())
		if err != nil {
			return nil, err
		}
		if !okP || !okD || dur <= 0 {
			continue
		}
		weighted += pct * dur
		total += dur
	}
	if total == 0 {
		return 0, nil
	}
	return weighted / total, nil
}

// calcEffort derives assigned effort in resource-days: duration times the
// sum of assignment units. A task with no assignments explicitly has no
// effort, which is a TombStone, not an unset value.
func calcEffort(ctx *graph.CalcContext) (graph.Value, error) {
	task := ctx.Owner().(*Task)
	v, err := ctx.Read(task.AssignmentsIdent())
	if err != nil {
		return nil, err
	}
	assignments, _ := v.([]Assignment)
	if len(assignments) == 0 {
		return graph.TombStone, nil
	}
	dur, ok, err := readInt(ctx, task.DurationIdent())
	if err != nil || !ok {
		return nil, err
	}
	units := 0
	for _, a := range assignments {
		units += a.Units
	}
	return dur * units / 100, nil
}

// readTasks reads a task-list identifier, tolerating unset.
func readTasks(ctx *graph.CalcContext, id *graph.Identifier) ([]*Task, error) {
	v, err := ctx.Read(id)
	if err != nil {
		return nil, err
	}
	tasks, _ := v.([]*Task)
	return tasks, nil
}

// readDay reads a day-valued identifier. ok is false when unset or
// tombstoned.
func readDay(ctx *graph.CalcContext, id *graph.Identifier) (dates.Day, bool, error) {
	v, err := ctx.Read(id)
	if err != nil {
		return 0, false, err
	}
	d, ok := asDay(v)
	return d, ok, nil
}

// readInt reads an int-valued identifier. ok is false when unset or
// tombstoned.
func readInt(ctx *graph.CalcContext, id *graph.Identifier) (int, bool, error) {
	v, err := ctx.Read(id)
	if err != nil {
		return 0, false, err
	}
	n, ok := v.(int)
	return n, ok, nil
}

func asDay(v graph.Value) (dates.Day, bool) {
	switch d := v.(type) {
	case dates.Day:
		return d, true
	case int:
		return dates.Day(d), true
	default:
		return 0, false
	}
}
