package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gantry/internal/graph"
	"github.com/roach88/gantry/internal/journal"
	"github.com/roach88/gantry/internal/loader"
	"github.com/roach88/gantry/internal/schedule"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string
}

// RunResult is the payload emitted after a successful build.
type RunResult struct {
	Project     string         `json:"project"`
	Seq         int64          `json:"seq"`
	Token       string         `json:"token"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Entries     map[string]any `json:"entries"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <project-file>",
		Short: "Build and publish a schedule from a project file",
		Long: `Build a schedule from a YAML project file.

The project file is validated against the embedded schema, every task,
dependency and milestone is proposed onto a fresh graph, and a single
commit publishes the computed schedule. With --journal the published
revision is appended to a SQLite journal for later inspection.

Example:
  gantry run ./project.yaml
  gantry run ./project.yaml --journal ./gantry.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (optional)")

	return cmd
}

func runBuild(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	pf, err := loader.Load(path)
	if err != nil {
		if isReadFailure(err) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read project file", err)
		}
		_ = formatter.Error(ErrCodeParse, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid project file", err)
	}
	formatter.VerboseLog("Loaded project %q with %d task(s)", pf.Name, len(pf.Tasks))

	p, err := pf.Build(cmd.Context(), graph.WithLogger(buildLogger(opts.RootOptions, cmd)))
	if err != nil {
		if graph.IsCycleError(err) {
			_ = formatter.Error(ErrCodeCycle, err.Error(), nil)
			return WrapExitError(ExitFailure, "dependency cycle", err)
		}
		_ = formatter.Error(ErrCodeBuild, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build project", err)
	}

	rev := p.Graph().Revision()
	result := RunResult{
		Project: p.Name(),
		Seq:     rev.Seq(),
		Token:   rev.Token(),
		Entries: p.Snapshot(),
	}

	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()

		rec, err := j.Append(cmd.Context(), result.Seq, result.Token, result.Entries)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to journal revision", err)
		}
		result.Fingerprint = rec.Fingerprint
		formatter.VerboseLog("Journaled revision %d as %s", rec.Seq, rec.Fingerprint)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputRunText(cmd, result)
}

// buildLogger routes graph logging to stderr, debug level when verbose.
func buildLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// isReadFailure reports whether err came from reading the file rather
// than validating its contents.
func isReadFailure(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}

func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Project: %s\n", result.Project)
	fmt.Fprintf(w, "Revision: seq=%d token=%s\n", result.Seq, result.Token)
	if result.Fingerprint != "" {
		fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	}
	for _, key := range schedule.SnapshotKeys(result.Entries) {
		fmt.Fprintf(w, "  %s = %v\n", key, result.Entries[key])
	}
	return nil
}
