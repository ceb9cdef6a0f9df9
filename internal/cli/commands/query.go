package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against the workspace database",
		Long: `Run SQL directly against the workspace DuckDB database.

Loaded tables and activated macros are both visible, so templates can be
called by hand: SELECT * FROM revenue_by_region(10). With the default
in-memory database, combine query with load in a single serve session or
point --database at a file to keep tables around.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  macrodesk query "SELECT * FROM orders LIMIT 5"

  # List tables in the database
  macrodesk query tables

  # Show the schema of a table
  macrodesk query schema orders

  # Pipe SQL in
  echo "SELECT 42 AS answer" | macrodesk query

  # Interactive mode
  macrodesk query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand())
	cmd.AddCommand(newQuerySchemaCommand())

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Determine SQL source
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		// Read from stdin (piped input)
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd.Context(), cmdCtx)
	}

	return executeAndRenderQuery(cmd.Context(), cmdCtx, sqlQuery)
}

// executeAndRenderQuery executes a query and renders results, properly
// closing rows with defer.
func executeAndRenderQuery(ctx context.Context, cmdCtx *CommandContext, query string) error {
	rows, err := cmdCtx.Session.DB.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return cmdCtx.Renderer.Results(rows)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the workspace database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return executeAndRenderQuery(cmd.Context(), cmdCtx, rawTablesSQL)
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the schema of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return executeAndRenderQuery(cmd.Context(), cmdCtx, fmt.Sprintf("DESCRIBE %s", args[0]))
		},
	}
}

// rawTablesSQL lists base tables without the noise of system schemas.
const rawTablesSQL = `
	SELECT table_name AS name, estimated_size AS rows, column_count AS columns
	FROM duckdb_tables()
	WHERE NOT internal
	ORDER BY table_name
`

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
