package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/gantry/internal/journal"
	"github.com/roach88/gantry/internal/schedule"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Seq     int64 // optional - show a single commit
}

// TraceRecord is one journaled commit in trace output.
type TraceRecord struct {
	Seq         int64          `json:"seq"`
	Token       string         `json:"token"`
	Fingerprint string         `json:"fingerprint"`
	Entries     map[string]any `json:"entries"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Commits []TraceRecord `json:"commits"`
	Stats   TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalCommits int `json:"total_commits"`
	TotalEntries int `json:"total_entries"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled revisions",
		Long: `Inspect the commit journal written by run --journal.

Each journaled commit carries its sequence number, branch token, content
fingerprint and the published entries. Entries render in sorted order so
two traces of the same journal compare byte for byte.

Examples:
  gantry trace --journal ./gantry.db
  gantry trace --journal ./gantry.db --seq 3
  gantry trace --journal ./gantry.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "show only the commit with this sequence number")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var records []journal.Record
	if opts.Seq > 0 {
		rec, err := j.Get(ctx, opts.Seq)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("commit %d not found", opts.Seq), err)
		}
		records = []journal.Record{rec}
	} else {
		records, err = j.List(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
	}

	result := TraceResult{Commits: make([]TraceRecord, 0, len(records))}
	for _, rec := range records {
		result.Commits = append(result.Commits, TraceRecord{
			Seq:         rec.Seq,
			Token:       rec.Token,
			Fingerprint: rec.Fingerprint,
			Entries:     rec.Entries,
		})
		result.Stats.TotalEntries += len(rec.Entries)
	}
	result.Stats.TotalCommits = len(result.Commits)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if len(result.Commits) == 0 {
		fmt.Fprintln(w, "No commits journaled.")
		return nil
	}

	for _, rec := range result.Commits {
		fmt.Fprintf(w, "[%d] token=%s\n", rec.Seq, rec.Token)
		fmt.Fprintf(w, "    fingerprint=%s\n", truncateFingerprint(rec.Fingerprint, verbose))
		for _, key := range schedule.SnapshotKeys(rec.Entries) {
			fmt.Fprintf(w, "    %s = %v\n", key, rec.Entries[key])
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Commits: %d, entries: %d\n", result.Stats.TotalCommits, result.Stats.TotalEntries)
	return nil
}

// truncateFingerprint shortens fingerprints for scanning; verbose keeps the
// full digest.
func truncateFingerprint(fp string, verbose bool) string {
	if verbose || len(fp) <= 16 {
		return fp
	}
	return fp[:8] + "..." + fp[len(fp)-8:]
}
