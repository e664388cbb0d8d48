package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/gantry/internal/graph"
	"github.com/roach88/gantry/internal/loader"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Project    string `json:"project,omitempty"`
	Tasks      int    `json:"tasks"`
	Milestones int    `json:"milestones"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-file>",
		Short: "Validate a project file without publishing it",
		Long: `Validate a YAML project file without keeping the result.

The file is checked against the embedded schema, then built onto a
throwaway graph so reference errors and dependency cycles surface with
the same rules a real run would apply. Hypothetical try_dependencies
entries are cycle-checked on disposable branches without being added.
Nothing is journaled.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
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
	formatter.VerboseLog("Schema accepted %q: %d task(s), %d dependency(ies)", pf.Name, len(pf.Tasks), len(pf.Dependencies))

	// Build onto a throwaway graph. Cycles only become visible when the
	// whole dependency set is committed together.
	if _, err := pf.Build(cmd.Context(), graph.WithLogger(buildLogger(opts, cmd))); err != nil {
		code := ErrCodeBuild
		if graph.IsCycleError(err) {
			code = ErrCodeCycle
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "project is invalid", err)
	}

	result := ValidationResult{
		Valid:      true,
		Project:    pf.Name,
		Tasks:      len(pf.Tasks),
		Milestones: len(pf.Milestones),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	formatter.VerboseLog("Project %q builds cleanly", pf.Name)
	return formatter.Success("Project file is valid")
}
