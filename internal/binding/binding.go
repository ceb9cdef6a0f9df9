// Package binding maintains the mutable role-to-table binding state for a
// session. It maps abstract table roles from the catalog to concrete table
// names the query engine can resolve, and notifies subscribers synchronously
// on every change.
package binding

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/macrodesk-labs/macrodesk/internal/catalog"
)

// Kind distinguishes the two binding change events.
type Kind int

const (
	// KindBind means a role was bound to a table (possibly replacing a
	// previous table).
	KindBind Kind = iota
	// KindUnbind means a role lost its binding.
	KindUnbind
)

func (k Kind) String() string {
	if k == KindBind {
		return "bind"
	}
	return "unbind"
}

// Event describes one binding change. For bind events Table holds the new
// concrete table; for unbind events Table is empty. Prev holds the table the
// role was bound to before the change, with HadPrev false when the role was
// previously unbound.
type Event struct {
	Kind    Kind
	Role    string
	Table   string
	Prev    string
	HadPrev bool
}

// Handler receives binding change events. Handlers run synchronously while
// the table's lock is held: they must return quickly and must not call back
// into the Table (including the unsubscribe function), or they will deadlock.
type Handler func(Event)

type subscriber struct {
	id int
	fn Handler
}

// Table is the role binding table. All methods are safe for concurrent use.
//
// The table enforces that a concrete table name is bound to at most one role
// at a time: binding a table that is already bound to a different role first
// unbinds that role, with its own unbind event, before the new binding is
// recorded.
type Table struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	logger  *slog.Logger

	byRole  map[string]string // role -> concrete table
	byTable map[string]string // concrete table -> role
	subs    []subscriber
	nextID  int
}

// New creates an empty binding table over the given catalog. The catalog is
// consulted by AutoBind and UnboundRoles; Bind itself accepts any role name.
func New(cat *catalog.Catalog, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Table{
		catalog: cat,
		logger:  logger,
		byRole:  make(map[string]string),
		byTable: make(map[string]string),
	}
}

// Bind records or overwrites the binding for role. It never fails: the
// concrete table is not checked for existence. Subscribers are notified
// before Bind returns. If table was bound to a different role, that role is
// unbound first and its unbind event precedes the bind event.
func (t *Table) Bind(role, table string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindLocked(role, table)
}

// Unbind removes the binding for role if present and reports whether a
// binding was removed. Unbinding an unbound role is a silent no-op.
func (t *Table) Unbind(role string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.byRole[role]
	if !ok {
		return false
	}
	delete(t.byRole, role)
	delete(t.byTable, prev)
	t.dispatch(Event{Kind: KindUnbind, Role: role, Prev: prev, HadPrev: true})
	return true
}

// UnbindTable removes the binding whose concrete table is table, returning
// the role that was bound to it. Used when a table is dropped by its own
// name rather than through its role.
func (t *Table) UnbindTable(table string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	role, ok := t.byTable[table]
	if !ok {
		return "", false
	}
	delete(t.byRole, role)
	delete(t.byTable, table)
	t.dispatch(Event{Kind: KindUnbind, Role: role, Prev: table, HadPrev: true})
	return role, true
}

// RebindTable moves the binding for oldTable to newTable, following the same
// path as Bind so subscribers see a bind event carrying the previous table.
// It returns the affected role, or false if no role was bound to oldTable.
func (t *Table) RebindTable(oldTable, newTable string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	role, ok := t.byTable[oldTable]
	if !ok {
		return "", false
	}
	t.bindLocked(role, newTable)
	return role, true
}

// AutoBind tries to find a role for a freshly arrived table name. An exact
// case-insensitive match on a role name wins and may overwrite that role's
// existing binding. Otherwise a case-insensitive substring containment in
// either direction matches, but only for roles that are not already bound,
// so a fuzzy match never steals an explicit binding. Roles are tried in
// catalog declaration order. Returns the bound role, or false if none
// matched.
func (t *Table) AutoBind(table string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lc := strings.ToLower(table)

	for _, r := range t.catalog.Roles() {
		if strings.ToLower(r.Name) == lc {
			t.bindLocked(r.Name, table)
			return r.Name, true
		}
	}

	for _, r := range t.catalog.Roles() {
		if _, bound := t.byRole[r.Name]; bound {
			continue
		}
		rn := strings.ToLower(r.Name)
		if strings.Contains(lc, rn) || strings.Contains(rn, lc) {
			t.bindLocked(r.Name, table)
			return r.Name, true
		}
	}

	return "", false
}

// Clear unbinds every bound role, emitting one unbind event per role in
// lexical role order, exactly as if Unbind had been called for each. It
// returns the number of roles unbound.
func (t *Table) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	roles := make([]string, 0, len(t.byRole))
	for r := range t.byRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	for _, r := range roles {
		prev := t.byRole[r]
		delete(t.byRole, r)
		delete(t.byTable, prev)
		t.dispatch(Event{Kind: KindUnbind, Role: r, Prev: prev, HadPrev: true})
	}
	return len(roles)
}

// IsBound reports whether role currently has a binding.
func (t *Table) IsBound(role string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byRole[role]
	return ok
}

// BoundTable returns the concrete table bound to role.
func (t *Table) BoundTable(role string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	table, ok := t.byRole[role]
	return table, ok
}

// RoleFor returns the role bound to the given concrete table.
func (t *Table) RoleFor(table string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	role, ok := t.byTable[table]
	return role, ok
}

// Snapshot returns a copy of the current role-to-table map.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.byRole))
	for role, table := range t.byRole {
		out[role] = table
	}
	return out
}

// BoundRoles returns the currently bound role names in lexical order.
func (t *Table) BoundRoles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.byRole))
	for r := range t.byRole {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// UnboundRoles returns the catalog roles that have no binding, in catalog
// declaration order, with their full metadata.
func (t *Table) UnboundRoles() []catalog.Role {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []catalog.Role
	for _, r := range t.catalog.Roles() {
		if _, bound := t.byRole[r.Name]; !bound {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of bound roles.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byRole)
}

// Subscribe registers a change handler and returns a function that removes
// it. Handlers are invoked in subscription order. The unsubscribe function
// is idempotent.
func (t *Table) Subscribe(fn Handler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subs = append(t.subs, subscriber{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// bindLocked records role -> table and dispatches events. Caller holds mu.
func (t *Table) bindLocked(role, table string) {
	if other, ok := t.byTable[table]; ok && other != role {
		delete(t.byRole, other)
		delete(t.byTable, table)
		t.dispatch(Event{Kind: KindUnbind, Role: other, Prev: table, HadPrev: true})
	}

	prev, had := t.byRole[role]
	if had {
		delete(t.byTable, prev)
	}
	t.byRole[role] = table
	t.byTable[table] = role
	t.dispatch(Event{Kind: KindBind, Role: role, Table: table, Prev: prev, HadPrev: had})
}

// dispatch delivers an event to every subscriber in order. A panicking
// handler is logged and skipped so the remaining handlers still run.
// Caller holds mu.
func (t *Table) dispatch(ev Event) {
	for _, s := range t.subs {
		t.notify(s.fn, ev)
	}
}

func (t *Table) notify(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("binding handler panicked",
				"event", ev.Kind.String(),
				"role", ev.Role,
				"panic", r)
		}
	}()
	fn(ev)
}
