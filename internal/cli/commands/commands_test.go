package commands

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrodesk-labs/macrodesk/internal/catalog"
	"github.com/macrodesk-labs/macrodesk/internal/cli/config"
	clitestutil "github.com/macrodesk-labs/macrodesk/internal/cli/testutil"
	"github.com/macrodesk-labs/macrodesk/internal/duck"
	"github.com/macrodesk-labs/macrodesk/internal/session"
	"github.com/macrodesk-labs/macrodesk/internal/testutil"
)

func strPtr(s string) *string { return &s }

// testCatalog declares two roles and three macros: engine_clock is
// dependency-free, region_totals unlocks with orders alone, order_pairs
// needs both roles.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Role{
			{Name: "orders", Description: "Order rows", Category: "sales", Columns: []string{"region", "amount"}},
			{Name: "customers", Description: "Customer rows", Category: "sales"},
		},
		[]catalog.Macro{
			{
				ID:       "region_totals",
				Title:    "Revenue by region",
				Category: "sales",
				Needs:    []string{"orders"},
				Params:   []catalog.Param{{Name: "min_total", Type: "number", Default: strPtr("0")}},
				Body:     "SELECT region, SUM(amount) AS total FROM {{orders}} GROUP BY region HAVING SUM(amount) >= [[min_total]]",
			},
			{
				ID:       "order_pairs",
				Title:    "Orders joined to customers",
				Category: "sales",
				Needs:    []string{"orders", "customers"},
				Body:     "SELECT * FROM {{orders}} o JOIN {{customers}} c ON o.customer_id = c.id",
			},
			{
				ID:    "engine_clock",
				Title: "Engine clock",
				Body:  "SELECT now() AS ts",
			},
		},
	)
	require.NoError(t, err)
	return cat
}

// newTestContext assembles a session over a mock database driver and wires
// it into a CommandContext that renders into the given test buffers.
func newTestContext(t *testing.T, tr *clitestutil.TestRenderer) (*CommandContext, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)

	// engine_clock has no role needs and activates during Assemble.
	mock.ExpectExec(`CREATE OR REPLACE MACRO engine_clock\(\) AS TABLE SELECT now\(\) AS ts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := session.Assemble(context.Background(), session.Parts{
		DB:      duck.Wrap(db, nil),
		Catalog: testCatalog(t),
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectExec(`DROP MACRO`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectClose()
		_ = s.Close(context.Background())
		_ = db.Close()
	})

	return &CommandContext{
		Cfg:      config.GetConfig(context.Background()),
		Logger:   testutil.NewTestLogger(t),
		Session:  s,
		Renderer: tr.Renderer,
	}, mock
}

func TestNewLoadCommand(t *testing.T) {
	cmd := NewLoadCommand()

	assert.Equal(t, "load <file>...", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"as", "table", "no-bind"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewBindCommand(t *testing.T) {
	cmd := NewBindCommand()

	assert.Equal(t, "bind <role> <table>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestNewUnbindCommand(t *testing.T) {
	cmd := NewUnbindCommand()

	assert.Equal(t, "unbind <role>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewRolesCommand(t *testing.T) {
	cmd := NewRolesCommand()

	assert.Equal(t, "roles", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewTablesCommand(t *testing.T) {
	cmd := NewTablesCommand()

	assert.Equal(t, "tables", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewRmCommand(t *testing.T) {
	cmd := NewRmCommand()

	assert.Equal(t, "rm [table]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("all"), "--all flag should exist")
}

func TestNewRenameCommand(t *testing.T) {
	cmd := NewRenameCommand()

	assert.Equal(t, "rename <old> <new>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewTemplatesCommand(t *testing.T) {
	cmd := NewTemplatesCommand()

	assert.Equal(t, "templates", cmd.Use)
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"all", "search"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewShowCommand(t *testing.T) {
	cmd := NewShowCommand()

	assert.Equal(t, "show <template-id>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run <template-id> [arg...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("load"), "--load flag should exist")
}

func TestNewExportCommand(t *testing.T) {
	cmd := NewExportCommand()

	assert.Equal(t, "export <template-id> <file> [arg...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()

	assert.Equal(t, "query [SQL]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("input"), "--input flag should exist")

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "tables")
	assert.Contains(t, names, "schema")
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}
