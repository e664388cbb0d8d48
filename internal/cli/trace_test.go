package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gantry/internal/journal"
)

// seedJournal writes two commits for trace tests to read back.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gantry.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	_, err = j.Append(ctx, 1, "tok-1", map[string]any{"a.start": 1, "a.end": 5})
	require.NoError(t, err)
	_, err = j.Append(ctx, 2, "tok-2", map[string]any{"a.start": 2, "a.end": 6})
	require.NoError(t, err)
	return path
}

func TestTraceListsCommits(t *testing.T) {
	path := seedJournal(t)

	stdout, _, err := executeCommand("trace", "--journal", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "[1] token=tok-1")
	assert.Contains(t, stdout, "[2] token=tok-2")
	assert.Contains(t, stdout, "a.start = 1")
	assert.Contains(t, stdout, "Commits: 2, entries: 4")
}

func TestTraceSingleCommit(t *testing.T) {
	path := seedJournal(t)

	stdout, _, err := executeCommand("trace", "--journal", path, "--seq", "2")
	require.NoError(t, err)

	assert.Contains(t, stdout, "[2] token=tok-2")
	assert.NotContains(t, stdout, "tok-1")
	assert.Contains(t, stdout, "Commits: 1")
}

func TestTraceJSONOutput(t *testing.T) {
	path := seedJournal(t)

	stdout, _, err := executeCommand("--format", "json", "trace", "--journal", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	commits, ok := data["commits"].([]any)
	require.True(t, ok)
	assert.Len(t, commits, 2)
}

func TestTraceUnknownSeq(t *testing.T) {
	path := seedJournal(t)

	_, _, err := executeCommand("trace", "--journal", path, "--seq", "99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	stdout, _, err := executeCommand("trace", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No commits journaled.")
}

func TestTraceVerboseKeepsFullFingerprint(t *testing.T) {
	assert.Equal(t, "abcd", truncateFingerprint("abcd", false))
	long := "0123456789abcdef0123456789abcdef"
	assert.Equal(t, "01234567...89abcdef", truncateFingerprint(long, false))
	assert.Equal(t, long, truncateFingerprint(long, true))
}
