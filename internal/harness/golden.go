package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gantry/internal/canonical"
)

// TraceSnapshot is the canonical form of a scenario run, the shape that
// golden files store. Tokens are excluded: dependency validation opens
// branches that consume tokens, so token numbering reflects validation
// internals rather than scheduling behavior.
type TraceSnapshot struct {
	ScenarioName string
	Commits      []CommitTrace
}

// toCanonicalMap flattens the snapshot into the map form canonical.Marshal
// accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	commits := make([]any, len(s.Commits))
	for i, c := range s.Commits {
		commits[i] = map[string]any{
			"seq":     c.Seq,
			"entries": c.Entries,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"commits":       commits,
	}
}

// Marshal serializes the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return canonical.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario, verifies its assertions, and compares
// the commit trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := Verify(result, scenario.Assertions); err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Commits:      result.Trace,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
