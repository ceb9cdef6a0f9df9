package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <template-id> <file> [arg...]",
		Short: "Run a template and write its rows to a file",
		Long: `Run a template and export the result set with DuckDB's COPY statement.
The output format follows the file extension: .csv, .parquet, or .json.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runExport(cmd.Context(), cmdCtx, args[0], args[1], args[2:])
		},
	}
}

func runExport(ctx context.Context, cmdCtx *CommandContext, id, path string, args []string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	opts, err := copyOptions(path)
	if err != nil {
		return err
	}

	call, err := s.CallFor(ctx, id, args)
	if err != nil {
		return err
	}

	quoted := strings.ReplaceAll(path, "'", "''")
	stmt := fmt.Sprintf("COPY (%s) TO '%s' (%s)", call, quoted, opts)
	if err := s.DB.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("exporting %s: %w", id, err)
	}

	r.Success(fmt.Sprintf("Exported %s to %s", id, path))
	return nil
}

// copyOptions picks the DuckDB COPY options for a file by extension.
func copyOptions(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "FORMAT CSV, HEADER", nil
	case ".parquet":
		return "FORMAT PARQUET", nil
	case ".json":
		return "FORMAT JSON, ARRAY true", nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use .csv, .parquet, or .json)", filepath.Ext(path))
	}
}
