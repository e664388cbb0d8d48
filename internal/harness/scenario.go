package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gantry/internal/loader"
)

// Scenario defines one scheduling test case: an initial project, a
// sequence of edits, and assertions over the final schedule.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is the initial project document, in the same form the
	// loader accepts.
	Project loader.ProjectFile `yaml:"project"`

	// Steps are edits applied after the initial build. Each step is
	// followed by a commit, so every step contributes one trace entry.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final committed snapshot.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single edit between commits.
type Step struct {
	// Op names the edit:
	//   set_start, set_end, set_duration, set_percent_done - Value required
	//   assign                                             - Assignments required
	//   link, unlink                                       - Task (successor) and Target (predecessor)
	//   set_parent                                         - Task (child) and Target (parent)
	//   remove_task                                        - Task only
	Op string `yaml:"op"`

	// Task names the task the edit applies to.
	Task string `yaml:"task"`

	// Target names the second task for link, unlink and set_parent.
	Target string `yaml:"target,omitempty"`

	// Value carries the day or integer for the set_* ops.
	Value *int `yaml:"value,omitempty"`

	// Assignments carries the resource allocations for assign.
	Assignments []loader.AssignmentSpec `yaml:"assignments,omitempty"`

	// ExpectCycle marks an edit that must be rejected as cyclic. The
	// step contributes no commit; the schedule must be left untouched.
	ExpectCycle bool `yaml:"expect_cycle,omitempty"`
}

// Assertion validates the final snapshot.
type Assertion struct {
	// Type specifies the assertion:
	//   value        - entry Ident equals Value
	//   tombstone    - entry Ident is an explicit tombstone
	//   absent       - entry Ident does not appear in the snapshot
	//   commit_count - the trace has exactly Count commits
	Type string `yaml:"type"`

	// Ident is the "<task>.<field>" entry name (value, tombstone, absent).
	Ident string `yaml:"ident,omitempty"`

	// Value is the expected integer (value).
	Value *int `yaml:"value,omitempty"`

	// Count is the expected number of commits (commit_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertValue       = "value"
	AssertTombstone   = "tombstone"
	AssertAbsent      = "absent"
	AssertCommitCount = "commit_count"
)

// Step op constants.
const (
	OpSetStart       = "set_start"
	OpSetEnd         = "set_end"
	OpSetDuration    = "set_duration"
	OpSetPercentDone = "set_percent_done"
	OpAssign         = "assign"
	OpLink           = "link"
	OpUnlink         = "unlink"
	OpSetParent      = "set_parent"
	OpRemoveTask     = "remove_task"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	if s.Task == "" {
		return fmt.Errorf("steps[%d]: task is required", index)
	}
	switch s.Op {
	case OpSetStart, OpSetEnd, OpSetDuration, OpSetPercentDone:
		if s.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for %s", index, s.Op)
		}
	case OpAssign:
		if len(s.Assignments) == 0 {
			return fmt.Errorf("steps[%d]: assignments is required for assign", index)
		}
	case OpLink, OpUnlink, OpSetParent:
		if s.Target == "" {
			return fmt.Errorf("steps[%d]: target is required for %s", index, s.Op)
		}
	case OpRemoveTask:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertValue:
		if a.Ident == "" {
			return fmt.Errorf("assertions[%d]: ident is required for value", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for value", index)
		}
	case AssertTombstone, AssertAbsent:
		if a.Ident == "" {
			return fmt.Errorf("assertions[%d]: ident is required for %s", index, a.Type)
		}
	case AssertCommitCount:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive for commit_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
