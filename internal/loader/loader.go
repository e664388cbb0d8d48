// Package loader reads project files from YAML, validates them against an
// embedded CUE schema, and builds a committed schedule.Project from them.
package loader

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/gantry/internal/dates"
	"github.com/roach88/gantry/internal/graph"
	"github.com/roach88/gantry/internal/schedule"
)

//go:embed schema.cue
var schemaCUE string

// ProjectFile is the decoded form of a project document.
type ProjectFile struct {
	Name         string           `yaml:"name"`
	Tasks        []TaskSpec       `yaml:"tasks"`
	Dependencies []DependencySpec `yaml:"dependencies"`
	Milestones   []MilestoneSpec  `yaml:"milestones"`

	// TryDependencies are hypothetical edges: they are cycle-checked
	// against the built schedule on disposable branches but never added.
	TryDependencies []DependencySpec `yaml:"try_dependencies"`
}

// TaskSpec describes one task. Optional fields stay nil when absent, so a
// zero is distinguishable from "not given".
type TaskSpec struct {
	Name        string           `yaml:"name"`
	Parent      string           `yaml:"parent"`
	Start       *int             `yaml:"start"`
	End         *int             `yaml:"end"`
	Duration    *int             `yaml:"duration"`
	PercentDone *int             `yaml:"percent_done"`
	Assignments []AssignmentSpec `yaml:"assignments"`
}

// AssignmentSpec allocates a resource to a task.
type AssignmentSpec struct {
	Resource string `yaml:"resource"`
	Units    int    `yaml:"units"`
}

// DependencySpec orders two tasks: "to" cannot start before "from" ends.
type DependencySpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MilestoneSpec is a zero-length marker, optionally trailing a task.
type MilestoneSpec struct {
	Name  string `yaml:"name"`
	After string `yaml:"after"`
}

// Load reads and validates a project file.
func Load(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	return Parse(data)
}

// Parse validates a project document against the schema and decodes it.
func Parse(data []byte) (*ProjectFile, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode project file: %w", err)
	}
	return &pf, nil
}

// validateSchema unifies the decoded document with the embedded schema.
func validateSchema(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid project file: %w", err)
	}
	return nil
}

// Build turns a validated project file into a committed Project. Task
// order in the file is preserved for parent and dependency resolution;
// the single commit at the end either publishes the whole schedule or
// rejects it, cyclic dependency chains included.
func (pf *ProjectFile) Build(ctx context.Context, opts ...graph.Option) (*schedule.Project, error) {
	p := schedule.NewProject(pf.Name, opts...)

	tasks := make(map[string]*schedule.Task, len(pf.Tasks))
	for _, spec := range pf.Tasks {
		t, err := p.AddTask(spec.Name)
		if err != nil {
			return nil, err
		}
		tasks[spec.Name] = t
	}

	for _, spec := range pf.Tasks {
		t := tasks[spec.Name]
		if spec.Parent != "" {
			parent, ok := tasks[spec.Parent]
			if !ok {
				return nil, fmt.Errorf("task %q: unknown parent %q", spec.Name, spec.Parent)
			}
			if err := p.SetParent(t, parent); err != nil {
				return nil, err
			}
		}
		if spec.Start != nil {
			if err := p.SetStart(t, dates.Day(*spec.Start)); err != nil {
				return nil, err
			}
		}
		if spec.Duration != nil {
			if err := p.SetDuration(t, *spec.Duration); err != nil {
				return nil, err
			}
		}
		if spec.End != nil {
			if err := p.SetEnd(t, dates.Day(*spec.End)); err != nil {
				return nil, err
			}
		}
		if spec.PercentDone != nil {
			if err := p.SetPercentDone(t, *spec.PercentDone); err != nil {
				return nil, err
			}
		}
		if len(spec.Assignments) > 0 {
			assignments := make([]schedule.Assignment, len(spec.Assignments))
			for i, a := range spec.Assignments {
				assignments[i] = schedule.Assignment{Resource: a.Resource, Units: a.Units}
			}
			if err := p.Assign(t, assignments); err != nil {
				return nil, err
			}
		}
	}

	for _, dep := range pf.Dependencies {
		from, ok := tasks[dep.From]
		if !ok {
			return nil, fmt.Errorf("dependency: unknown task %q", dep.From)
		}
		to, ok := tasks[dep.To]
		if !ok {
			return nil, fmt.Errorf("dependency: unknown task %q", dep.To)
		}
		if err := p.Link(from, to); err != nil {
			return nil, fmt.Errorf("dependency %s -> %s: %w", dep.From, dep.To, err)
		}
	}

	for _, spec := range pf.Milestones {
		m, err := p.AddMilestone(spec.Name)
		if err != nil {
			return nil, err
		}
		if spec.After != "" {
			after, ok := tasks[spec.After]
			if !ok {
				return nil, fmt.Errorf("milestone %q: unknown task %q", spec.Name, spec.After)
			}
			if err := p.LinkMilestone(after, m); err != nil {
				return nil, fmt.Errorf("milestone %q: %w", spec.Name, err)
			}
		}
	}

	// One pass publishes everything; a dependency cycle that link-time
	// validation could not see against the empty base is rejected here.
	if _, err := p.Commit(ctx); err != nil {
		return nil, fmt.Errorf("build project %q: %w", pf.Name, err)
	}

	// Hypothetical edges are checked against the published schedule on
	// disposable branches and never added.
	for _, dep := range pf.TryDependencies {
		from, ok := tasks[dep.From]
		if !ok {
			return nil, fmt.Errorf("try dependency: unknown task %q", dep.From)
		}
		to, ok := tasks[dep.To]
		if !ok {
			return nil, fmt.Errorf("try dependency: unknown task %q", dep.To)
		}
		if err := p.TryLink(from, to); err != nil {
			return nil, fmt.Errorf("try dependency %s -> %s: %w", dep.From, dep.To, err)
		}
	}
	return p, nil
}
