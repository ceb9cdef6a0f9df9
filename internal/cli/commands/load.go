package commands

import (
	"context"
	"fmt"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/macrodesk-labs/macrodesk/internal/view"
	"github.com/macrodesk-labs/macrodesk/internal/workspace"
	"github.com/spf13/cobra"
)

// LoadOptions holds options for the load command.
type LoadOptions struct {
	Role   string // bind this role to the loaded table
	Table  string // override the derived table name
	NoBind bool   // skip the auto-bind heuristic
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	opts := &LoadOptions{}

	cmd := &cobra.Command{
		Use:   "load <file>...",
		Short: "Load data files into the workspace",
		Long: `Load CSV, Parquet, or JSON files into workspace tables.

Each file becomes a table named after the file stem. When the table name
matches a catalog role, that role is bound automatically and every template
depending on it becomes runnable. Use --as to bind a specific role instead,
or --no-bind to load without touching bindings.`,
		Example: `  # Load a file; auto-bind when the name matches a role
  macrodesk load data/orders.csv

  # Load several files at once
  macrodesk load data/*.parquet

  # Load under an explicit role
  macrodesk load q2_export.csv --as orders

  # Load without binding anything
  macrodesk load scratch.json --no-bind`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Table != "" && len(args) > 1 {
				return fmt.Errorf("--table applies to a single file, got %d", len(args))
			}
			if opts.Role != "" && len(args) > 1 {
				return fmt.Errorf("--as applies to a single file, got %d", len(args))
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runLoad(cmd.Context(), cmdCtx, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "as", "", "Bind this catalog role to the loaded table")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Table name (default: derived from the file stem)")
	cmd.Flags().BoolVar(&opts.NoBind, "no-bind", false, "Load without binding any role")

	return cmd
}

// loadReport is the JSON shape of a load run.
type loadReport struct {
	Loaded       []*workspace.LoadResult `json:"loaded"`
	Availability view.Availability       `json:"availability"`
}

func runLoad(ctx context.Context, cmdCtx *CommandContext, files []string, opts *LoadOptions) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	results := make([]*workspace.LoadResult, 0, len(files))
	for _, path := range files {
		res, err := s.Workspace.LoadFile(ctx, path, workspace.LoadOptions{
			Table:      opts.Table,
			Role:       opts.Role,
			NoAutoBind: opts.NoBind,
		})
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	// Bindings settle activation in the background; wait so the summary
	// below reflects the loads.
	s.Activation.Wait()
	sum := s.View.Summary(s.Snapshot())

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(loadReport{Loaded: results, Availability: sum})
	}

	styles := r.Styles()
	for _, res := range results {
		r.Printf("Loaded %s (%d rows, %d columns)\n", res.Table, res.Rows, res.Columns)
		if res.Role != "" {
			r.Println(styles.Muted.Render(fmt.Sprintf("  bound role %s", res.Role)))
		}
	}
	r.Println()
	r.Printf("%d of %d templates runnable\n", sum.Satisfied, sum.Total)

	return nil
}
