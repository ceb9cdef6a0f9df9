package commands

import (
	"context"
	"fmt"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List workspace tables",
		Long: `List the tables currently loaded in the workspace, with row counts
and the catalog role bound to each.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runTables(cmd.Context(), cmdCtx)
		},
	}
}

func runTables(ctx context.Context, cmdCtx *CommandContext) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	tables, err := s.Workspace.Tables(ctx)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(tables)
	}

	if len(tables) == 0 {
		r.Println("No tables loaded. Use 'macrodesk load <file>' to add one.")
		return nil
	}

	header := []string{"table", "rows", "role"}
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		role := t.Role
		if role == "" {
			role = "-"
		}
		rows = append(rows, []string{t.Name, fmt.Sprintf("%d", t.Rows), role})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.MarkdownTable(header, rows)
		return nil
	}
	r.Table(header, rows)
	return nil
}
