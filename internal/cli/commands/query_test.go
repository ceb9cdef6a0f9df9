package commands

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrodesk-labs/macrodesk/internal/cli/config"
	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	clitestutil "github.com/macrodesk-labs/macrodesk/internal/cli/testutil"
)

func TestExecuteAndRenderQuery_Table(t *testing.T) {
	tr := clitestutil.NewTestRendererTable()
	cmdCtx, mock := newTestContext(t, tr)

	mock.ExpectQuery(`SELECT 42 AS answer`).
		WillReturnRows(sqlmock.NewRows([]string{"answer"}).AddRow(42))

	require.NoError(t, executeAndRenderQuery(context.Background(), cmdCtx, "SELECT 42 AS answer"))

	out := tr.Output()
	assert.Contains(t, out, "answer")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(1 rows)")
}

func TestExecuteAndRenderQuery_CSV(t *testing.T) {
	tr := clitestutil.NewTestRenderer(output.ModeCSV, false)
	cmdCtx, mock := newTestContext(t, tr)

	mock.ExpectQuery(`SELECT region, total FROM summary`).
		WillReturnRows(sqlmock.NewRows([]string{"region", "total"}).
			AddRow("east", 10).
			AddRow("west", 20))

	require.NoError(t, executeAndRenderQuery(context.Background(), cmdCtx, "SELECT region, total FROM summary"))

	lines := strings.Split(strings.TrimSpace(tr.Output()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "region,total", lines[0])
	assert.Equal(t, "east,10", lines[1])
}

func TestExecuteAndRenderQuery_Failure(t *testing.T) {
	tr := clitestutil.NewTestRendererTable()
	cmdCtx, mock := newTestContext(t, tr)

	mock.ExpectQuery(`SELECT broken`).WillReturnError(assert.AnError)

	err := executeAndRenderQuery(context.Background(), cmdCtx, "SELECT broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed")
}

func TestRawTablesSQL_SkipsInternalTables(t *testing.T) {
	assert.Contains(t, rawTablesSQL, "duckdb_tables()")
	assert.Contains(t, rawTablesSQL, "WHERE NOT internal")
}

func TestReplHistoryPath(t *testing.T) {
	tests := []struct {
		name     string
		database string
		want     string
	}{
		{name: "in-memory", database: ":memory:", want: ".macrodesk_history"},
		{name: "unset", database: "", want: ".macrodesk_history"},
		{name: "file-backed", database: "/data/desk.duckdb", want: "/data/.macrodesk_history"},
		{name: "relative file", database: "desk.duckdb", want: ".macrodesk_history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdCtx := &CommandContext{Cfg: &config.Config{DatabasePath: tt.database}}
			assert.Equal(t, tt.want, replHistoryPath(cmdCtx))
		})
	}
}

func TestHandleDotCommand(t *testing.T) {
	tr := clitestutil.NewTestRendererTable()
	cmdCtx, mock := newTestContext(t, tr)
	ctx := context.Background()

	t.Run("help", func(t *testing.T) {
		tr.Reset()
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".help"))
		assert.Contains(t, tr.Output(), ".schema <name>")
	})

	t.Run("quit", func(t *testing.T) {
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".quit"))
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".exit"))
	})

	t.Run("schema without argument", func(t *testing.T) {
		tr.Reset()
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".schema"))
		assert.Contains(t, tr.ErrorOutput(), "Usage: .schema <table>")
	})

	t.Run("schema", func(t *testing.T) {
		tr.Reset()
		mock.ExpectQuery(`DESCRIBE uploads`).
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type"}).AddRow("id", "BIGINT"))
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".schema uploads"))
		assert.Contains(t, tr.Output(), "BIGINT")
	})

	t.Run("roles", func(t *testing.T) {
		tr.Reset()
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".roles"))
		assert.Contains(t, tr.Output(), "orders")
	})

	t.Run("templates", func(t *testing.T) {
		tr.Reset()
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".templates"))
		assert.Contains(t, tr.Output(), "region_totals")
	})

	t.Run("unknown", func(t *testing.T) {
		tr.Reset()
		assert.True(t, handleDotCommand(ctx, cmdCtx, ".nope"))
		assert.Contains(t, tr.ErrorOutput(), "Unknown command: .nope")
	})
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sql")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.False(t, isTerminal(f))
}
