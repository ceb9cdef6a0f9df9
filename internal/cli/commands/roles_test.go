package commands

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/macrodesk-labs/macrodesk/internal/cli/testutil"
	"github.com/macrodesk-labs/macrodesk/internal/view"
)

func TestRunRoles_Table(t *testing.T) {
	tr := clitestutil.NewTestRendererTable()
	cmdCtx, _ := newTestContext(t, tr)

	require.NoError(t, runRoles(cmdCtx))

	out := tr.Output()
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "region, amount")
	assert.Contains(t, out, "1 of 3 templates runnable (33%)")
}

func TestRunRoles_ShowsBindings(t *testing.T) {
	tr := clitestutil.NewTestRendererTable()
	cmdCtx, mock := newTestContext(t, tr)

	mock.ExpectExec(`CREATE OR REPLACE MACRO region_totals`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	cmdCtx.Session.Bindings.Bind("orders", "q2_orders")
	cmdCtx.Session.Activation.Wait()

	require.NoError(t, runRoles(cmdCtx))

	out := tr.Output()
	assert.Contains(t, out, "q2_orders")
	assert.Contains(t, out, "2 of 3 templates runnable (67%)")
}

func TestRunRoles_JSON(t *testing.T) {
	tr := clitestutil.NewTestRendererJSON()
	cmdCtx, _ := newTestContext(t, tr)

	require.NoError(t, runRoles(cmdCtx))

	var usages []view.RoleUsage
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &usages))
	require.Len(t, usages, 2)
	assert.Equal(t, "orders", usages[0].Role.Name)
	assert.Equal(t, 2, usages[0].MacroCount)
	assert.False(t, usages[0].Bound)
	assert.Equal(t, "customers", usages[1].Role.Name)
	assert.Equal(t, 1, usages[1].MacroCount)
}
