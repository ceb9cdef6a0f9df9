package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrodesk-labs/macrodesk/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Role{
			{Name: "facts", Description: "Fact table"},
			{Name: "dims"},
			{Name: "events"},
		},
		nil,
	)
	require.NoError(t, err)
	return cat
}

// recorder collects events for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) handler() Handler {
	return func(ev Event) { r.events = append(r.events, ev) }
}

func TestBind_RecordsAndNotifies(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "uploaded_table_7")

	assert.True(t, tbl.IsBound("facts"))
	table, ok := tbl.BoundTable("facts")
	require.True(t, ok)
	assert.Equal(t, "uploaded_table_7", table)

	role, ok := tbl.RoleFor("uploaded_table_7")
	require.True(t, ok)
	assert.Equal(t, "facts", role)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, KindBind, ev.Kind)
	assert.Equal(t, "facts", ev.Role)
	assert.Equal(t, "uploaded_table_7", ev.Table)
	assert.False(t, ev.HadPrev, "first bind has no previous value")
}

func TestBind_OverwriteCarriesPrevious(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "t1")
	tbl.Bind("facts", "t2")

	table, _ := tbl.BoundTable("facts")
	assert.Equal(t, "t2", table)

	_, ok := tbl.RoleFor("t1")
	assert.False(t, ok, "old table should no longer resolve to a role")

	require.Len(t, rec.events, 2)
	ev := rec.events[1]
	assert.Equal(t, KindBind, ev.Kind)
	assert.True(t, ev.HadPrev)
	assert.Equal(t, "t1", ev.Prev)
	assert.Equal(t, "t2", ev.Table)
}

func TestBind_TableUniqueness(t *testing.T) {
	// Binding a table that is already bound to another role unbinds that
	// role first, as its own event, so a table never backs two roles.
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "shared")
	tbl.Bind("dims", "shared")

	assert.False(t, tbl.IsBound("facts"), "facts should have lost the shared table")
	assert.True(t, tbl.IsBound("dims"))

	role, ok := tbl.RoleFor("shared")
	require.True(t, ok)
	assert.Equal(t, "dims", role)

	require.Len(t, rec.events, 3)
	assert.Equal(t, KindBind, rec.events[0].Kind)
	assert.Equal(t, "facts", rec.events[0].Role)
	assert.Equal(t, KindUnbind, rec.events[1].Kind, "steal emits an unbind for the losing role first")
	assert.Equal(t, "facts", rec.events[1].Role)
	assert.Equal(t, "shared", rec.events[1].Prev)
	assert.Equal(t, KindBind, rec.events[2].Kind)
	assert.Equal(t, "dims", rec.events[2].Role)
}

func TestUnbind(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "t1")
	assert.True(t, tbl.Unbind("facts"))
	assert.False(t, tbl.IsBound("facts"))

	require.Len(t, rec.events, 2)
	ev := rec.events[1]
	assert.Equal(t, KindUnbind, ev.Kind)
	assert.Equal(t, "facts", ev.Role)
	assert.Equal(t, "t1", ev.Prev)
	assert.Empty(t, ev.Table)

	// Second unbind is a no-op with no notification.
	assert.False(t, tbl.Unbind("facts"))
	assert.Len(t, rec.events, 2)
}

func TestUnbindTable(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	tbl.Bind("facts", "uploaded_table_7")

	role, ok := tbl.UnbindTable("uploaded_table_7")
	require.True(t, ok)
	assert.Equal(t, "facts", role)
	assert.False(t, tbl.IsBound("facts"))

	_, ok = tbl.UnbindTable("uploaded_table_7")
	assert.False(t, ok, "second removal finds nothing")
}

func TestRebindTable(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "old_name")

	role, ok := tbl.RebindTable("old_name", "new_name")
	require.True(t, ok)
	assert.Equal(t, "facts", role)

	table, _ := tbl.BoundTable("facts")
	assert.Equal(t, "new_name", table)

	require.Len(t, rec.events, 2)
	ev := rec.events[1]
	assert.Equal(t, KindBind, ev.Kind, "rename follows the bind path")
	assert.Equal(t, "new_name", ev.Table)
	assert.True(t, ev.HadPrev)
	assert.Equal(t, "old_name", ev.Prev)

	_, ok = tbl.RebindTable("old_name", "whatever")
	assert.False(t, ok, "old name no longer resolves")
}

func TestAutoBind(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(tbl *Table)
		candidate string
		wantRole  string
		wantOK    bool
	}{
		{
			name:      "exact match",
			candidate: "facts",
			wantRole:  "facts",
			wantOK:    true,
		},
		{
			name:      "exact match is case-insensitive",
			candidate: "FACTS",
			wantRole:  "facts",
			wantOK:    true,
		},
		{
			name:      "exact match overwrites existing binding",
			setup:     func(tbl *Table) { tbl.Bind("facts", "elsewhere") },
			candidate: "Facts",
			wantRole:  "facts",
			wantOK:    true,
		},
		{
			name:      "candidate contains role name",
			candidate: "uploaded_facts_2024",
			wantRole:  "facts",
			wantOK:    true,
		},
		{
			name:      "role name contains candidate",
			candidate: "fact",
			wantRole:  "facts",
			wantOK:    true,
		},
		{
			name:      "substring match does not steal an existing binding",
			setup:     func(tbl *Table) { tbl.Bind("facts", "explicit_choice") },
			candidate: "uploaded_facts_2024",
			wantOK:    false,
		},
		{
			name:      "no match",
			candidate: "mystery_blob",
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := New(testCatalog(t), nil)
			if tt.setup != nil {
				tt.setup(tbl)
			}

			role, ok := tbl.AutoBind(tt.candidate)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRole, role)
				bound, _ := tbl.BoundTable(tt.wantRole)
				assert.Equal(t, tt.candidate, bound, "role should be bound to the candidate as given")
			}
		})
	}
}

func TestClear(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	tbl.Bind("facts", "t1")
	tbl.Bind("dims", "t2")
	tbl.Bind("events", "t3")

	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	n := tbl.Clear()
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, tbl.Count())
	assert.Empty(t, tbl.Snapshot())

	require.Len(t, rec.events, 3, "one unbind per previously bound role")
	seen := map[string]string{}
	for _, ev := range rec.events {
		assert.Equal(t, KindUnbind, ev.Kind)
		assert.True(t, ev.HadPrev)
		seen[ev.Role] = ev.Prev
	}
	assert.Equal(t, map[string]string{"facts": "t1", "dims": "t2", "events": "t3"}, seen)

	assert.Equal(t, 0, tbl.Clear(), "clearing an empty table is a no-op")
}

func TestSnapshotIsACopy(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	tbl.Bind("facts", "t1")

	snap := tbl.Snapshot()
	snap["facts"] = "mutated"
	snap["dims"] = "injected"

	table, _ := tbl.BoundTable("facts")
	assert.Equal(t, "t1", table)
	assert.False(t, tbl.IsBound("dims"))
}

func TestBoundAndUnboundRoles(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	tbl.Bind("events", "e")
	tbl.Bind("dims", "d")

	assert.Equal(t, []string{"dims", "events"}, tbl.BoundRoles(), "bound roles are sorted")

	unbound := tbl.UnboundRoles()
	require.Len(t, unbound, 1)
	assert.Equal(t, "facts", unbound[0].Name)
	assert.Equal(t, "Fact table", unbound[0].Description, "metadata travels with the role")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	tbl := New(testCatalog(t), nil)

	first := &recorder{}
	second := &recorder{}
	unsubFirst := tbl.Subscribe(first.handler())
	tbl.Subscribe(second.handler())

	tbl.Bind("facts", "t1")
	unsubFirst()
	tbl.Bind("dims", "t2")

	assert.Len(t, first.events, 1, "unsubscribed handler stops receiving")
	assert.Len(t, second.events, 2)

	// Unsubscribe is idempotent.
	unsubFirst()
	tbl.Bind("events", "t3")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 3)
}

func TestDispatch_PanicIsolation(t *testing.T) {
	tbl := New(testCatalog(t), nil)

	rec := &recorder{}
	tbl.Subscribe(func(Event) { panic("bad handler") })
	tbl.Subscribe(rec.handler())

	assert.NotPanics(t, func() { tbl.Bind("facts", "t1") })
	assert.Len(t, rec.events, 1, "later handlers still run after a panic")
	assert.True(t, tbl.IsBound("facts"))
}

func TestDispatch_OrderMatchesMutationOrder(t *testing.T) {
	tbl := New(testCatalog(t), nil)
	rec := &recorder{}
	tbl.Subscribe(rec.handler())

	tbl.Bind("facts", "t1")
	tbl.Bind("dims", "t2")
	tbl.Unbind("facts")

	require.Len(t, rec.events, 3)
	assert.Equal(t, "facts", rec.events[0].Role)
	assert.Equal(t, "dims", rec.events[1].Role)
	assert.Equal(t, KindUnbind, rec.events[2].Kind)
}

func TestHandlerSeesStateIncludingChange(t *testing.T) {
	tbl := New(testCatalog(t), nil)

	var sawBound bool
	tbl.Subscribe(func(ev Event) {
		if ev.Kind == KindBind {
			// The handler observes the mutation already applied via the
			// event payload; direct reads would deadlock by contract.
			sawBound = ev.Table == "t1"
		}
	})

	tbl.Bind("facts", "t1")
	assert.True(t, sawBound)
}
