package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gantry/internal/journal"
)

const testProject = `
name: demo
tasks:
  - name: design
    start: 1
    duration: 4
  - name: build
    duration: 3
dependencies:
  - from: design
    to: build
`

const cyclicProject = `
name: demo
tasks:
  - name: a
    duration: 1
  - name: b
    duration: 1
dependencies:
  - from: a
    to: b
  - from: b
    to: a
`

// writeProjectFile drops a project document into a temp dir.
func writeProjectFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeCommand runs the root command with args and captures both streams.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunBuildsSchedule(t *testing.T) {
	path := writeProjectFile(t, testProject)

	stdout, _, err := executeCommand("run", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Project: demo")
	assert.Contains(t, stdout, "design.start = 1")
	assert.Contains(t, stdout, "design.end = 5")
	assert.Contains(t, stdout, "build.start = 5", "successor starts at predecessor end")
	assert.Contains(t, stdout, "build.end = 8")
}

func TestRunJSONOutput(t *testing.T) {
	path := writeProjectFile(t, testProject)

	stdout, _, err := executeCommand("--format", "json", "run", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo", data["project"])
	assert.NotEmpty(t, data["token"])

	entries, ok := data["entries"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5, entries["build.start"])
}

func TestRunJournalsRevision(t *testing.T) {
	path := writeProjectFile(t, testProject)
	dbPath := filepath.Join(t.TempDir(), "gantry.db")

	stdout, _, err := executeCommand("run", path, "--journal", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Fingerprint: ")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	records, err := j.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].Entries["design.start"])
	assert.Len(t, records[0].Fingerprint, 64)
}

func TestRunRejectsCyclicProject(t *testing.T) {
	path := writeProjectFile(t, cyclicProject)

	stdout, _, err := executeCommand("run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeCycle)
}

func TestRunRejectsInvalidFile(t *testing.T) {
	path := writeProjectFile(t, "tasks:\n  - name: a\n")

	_, _, err := executeCommand("run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunMissingFileIsCommandError(t *testing.T) {
	_, _, err := executeCommand("run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
