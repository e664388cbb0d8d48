package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
	"github.com/roach88/gantry/internal/schedule"
	"github.com/roach88/gantry/internal/testutil"
)

// Run builds the scenario's project, applies every step with a commit in
// between, and returns the collected commit trace. Branch tokens come from
// a sequence generator, so a rerun of the same scenario produces the same
// tokens.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	opts := []graph.Option{
		graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		graph.WithTokenGenerator(testutil.NewSequenceTokenGenerator(scenario.Name)),
	}

	p, err := scenario.Project.Build(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: build: %w", scenario.Name, err)
	}

	result := &Result{Project: p}
	result.Trace = append(result.Trace, traceCommit(p))

	for i, step := range scenario.Steps {
		if step.ExpectCycle {
			if err := runExpectedCycle(ctx, p, &step); err != nil {
				return nil, fmt.Errorf("scenario %q: steps[%d] %s: %w", scenario.Name, i, step.Op, err)
			}
			continue
		}
		if err := applyStep(p, &step); err != nil {
			return nil, fmt.Errorf("scenario %q: steps[%d] %s: %w", scenario.Name, i, step.Op, err)
		}
		if _, err := p.Commit(ctx); err != nil {
			return nil, fmt.Errorf("scenario %q: steps[%d] %s: commit: %w", scenario.Name, i, step.Op, err)
		}
		result.Trace = append(result.Trace, traceCommit(p))
	}
	return result, nil
}

// runExpectedCycle applies an edit that must be rejected as cyclic. The
// rejection can surface at edit time (link validation) or at commit time;
// either way the published schedule must stay as it was.
func runExpectedCycle(ctx context.Context, p *schedule.Project, step *Step) error {
	err := applyStep(p, step)
	if err == nil {
		_, err = p.Commit(ctx)
	}
	if err == nil {
		return fmt.Errorf("expected a dependency cycle, but the edit was accepted")
	}
	if !graph.IsCycleError(err) {
		return err
	}
	return nil
}

// traceCommit snapshots the currently published revision.
func traceCommit(p *schedule.Project) CommitTrace {
	rev := p.Graph().Revision()
	return CommitTrace{
		Seq:     rev.Seq(),
		Token:   rev.Token(),
		Entries: p.Snapshot(),
	}
}

// applyStep dispatches one edit onto the project.
func applyStep(p *schedule.Project, step *Step) error {
	task, ok := p.Task(step.Task)
	if !ok {
		return fmt.Errorf("unknown task %q", step.Task)
	}

	switch step.Op {
	case OpSetStart:
		return p.SetStart(task, dates.Day(*step.Value))
	case OpSetEnd:
		return p.SetEnd(task, dates.Day(*step.Value))
	case OpSetDuration:
		return p.SetDuration(task, *step.Value)
	case OpSetPercentDone:
		return p.SetPercentDone(task, *step.Value)
	case OpAssign:
		assignments := make([]schedule.Assignment, len(step.Assignments))
		for i, a := range step.Assignments {
			assignments[i] = schedule.Assignment{Resource: a.Resource, Units: a.Units}
		}
		return p.Assign(task, assignments)
	case OpLink:
		target, ok := p.Task(step.Target)
		if !ok {
			return fmt.Errorf("unknown task %q", step.Target)
		}
		return p.Link(target, task)
	case OpUnlink:
		target, ok := p.Task(step.Target)
		if !ok {
			return fmt.Errorf("unknown task %q", step.Target)
		}
		return p.Unlink(target, task)
	case OpSetParent:
		target, ok := p.Task(step.Target)
		if !ok {
			return fmt.Errorf("unknown task %q", step.Target)
		}
		return p.SetParent(task, target)
	case OpRemoveTask:
		return p.RemoveTask(task)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}
