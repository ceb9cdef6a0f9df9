package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/macrodesk-labs/macrodesk/internal/workspace"
)

// RunOptions holds the flags for the run command.
type RunOptions struct {
	// Loads are file or file=role specs loaded before the template runs.
	Loads []string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <template-id> [arg...]",
		Short: "Run a template and render its rows",
		Long: `Run a template by ID, passing positional arguments for its parameters.

Arguments are SQL expressions, so quote string values: macrodesk run
top_customers 'date ''2024-01-01''' 25. Parameters with defaults may be
omitted from the right.

Use --load to pull data files in first, optionally binding a role:

  macrodesk run revenue_by_region --load sales.csv=orders`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRun(cmd.Context(), cmdCtx, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Loads, "load", nil, "load a data file first (file or file=role, repeatable)")

	return cmd
}

func runRun(ctx context.Context, cmdCtx *CommandContext, id string, args []string, opts *RunOptions) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	for _, spec := range opts.Loads {
		path, role := splitLoadSpec(spec)
		if _, err := s.Workspace.LoadFile(ctx, path, workspace.LoadOptions{Role: role}); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	// Loads settle activation in the background; waiting here keeps the
	// invocation from racing its own CREATE MACRO.
	s.Activation.Wait()

	rows, err := s.Invoke(ctx, id, args)
	if err != nil {
		return err
	}
	defer rows.Close()

	return r.Results(rows)
}

// splitLoadSpec parses a --load value of the form file or file=role.
func splitLoadSpec(spec string) (path, role string) {
	if p, r, ok := strings.Cut(spec, "="); ok {
		return p, r
	}
	return spec, ""
}
