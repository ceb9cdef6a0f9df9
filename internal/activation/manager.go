// Package activation keeps the query engine's registered macros in sync with
// the binding table. It owns the authoritative set of currently active macro
// IDs: a macro is activated (defined against the engine) once all of its
// dependency roles are bound, and deactivated (dropped) when a dependency
// binding disappears.
//
// Engine statements run in the background. Statements for the same macro ID
// are strictly serialized in the order the triggering changes occurred, so a
// quick unbind-then-rebind can never leave a stale drop racing a newer
// define. Statements for distinct IDs may overlap.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/macrodesk-labs/macrodesk/internal/binding"
	"github.com/macrodesk-labs/macrodesk/internal/catalog"
	"github.com/macrodesk-labs/macrodesk/internal/sqlgen"
)

// ErrClosed is returned by operations invoked after Close.
var ErrClosed = errors.New("activation manager is closed")

// Executor runs SQL statements against the query engine.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Config holds manager configuration.
type Config struct {
	// Executor is the engine connection used for define and drop statements.
	Executor Executor
	// Bindings is the binding table the manager subscribes to.
	Bindings *binding.Table
	// Catalog supplies the macro definitions.
	Catalog *catalog.Catalog
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Manager reacts to binding changes and keeps engine-side macro definitions
// current. All methods are safe for concurrent use.
type Manager struct {
	exec     Executor
	bindings *binding.Table
	catalog  *catalog.Catalog
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	tails  map[string]chan struct{} // per-macro chain of in-flight operations
	closed bool

	wg          sync.WaitGroup
	unsubscribe func()
}

// New creates a manager and subscribes it to the binding table. The manager
// starts with every macro inactive; call ActivateAllSatisfied to sweep
// macros whose roles are already bound.
func New(cfg Config) (*Manager, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("activation: executor is required")
	}
	if cfg.Bindings == nil {
		return nil, fmt.Errorf("activation: binding table is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("activation: catalog is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Manager{
		exec:     cfg.Executor,
		bindings: cfg.Bindings,
		catalog:  cfg.Catalog,
		logger:   logger,
		active:   make(map[string]struct{}),
		tails:    make(map[string]chan struct{}),
	}
	m.unsubscribe = cfg.Bindings.Subscribe(m.handleEvent)

	logger.Debug("activation manager initialized", "macros", cfg.Catalog.MacroCount())
	return m, nil
}

// ActivateIfSatisfied defines the macro against the engine if all of its
// dependency roles are currently bound, and reports whether it ended up
// active. An unsatisfied macro is not an error: the call returns (false,
// nil) and the macro stays inactive. Engine rejections are logged and
// likewise yield (false, nil); only an unknown macro ID is an error.
func (m *Manager) ActivateIfSatisfied(ctx context.Context, id string) (bool, error) {
	if _, ok := m.catalog.Macro(id); !ok {
		return false, fmt.Errorf("unknown macro %q", id)
	}

	var activated bool
	done, ok := m.submit(id, func() { activated = m.activateOp(ctx, id) })
	if !ok {
		return false, ErrClosed
	}
	<-done
	return activated, nil
}

// Deactivate drops the macro from the engine and removes it from the active
// set. Removal from the active set happens regardless of whether the drop
// statement succeeded: a macro whose dependencies are gone must not be
// reported active even if the engine-side cleanup failed. Returns whether
// the macro was active before the call.
func (m *Manager) Deactivate(ctx context.Context, id string) (bool, error) {
	if _, ok := m.catalog.Macro(id); !ok {
		return false, fmt.Errorf("unknown macro %q", id)
	}

	var wasActive bool
	done, ok := m.submit(id, func() { wasActive = m.deactivateOp(ctx, id) })
	if !ok {
		return false, ErrClosed
	}
	<-done
	return wasActive, nil
}

// Reactivate drops and redefines the macro as one serialized operation, so
// its definition is regenerated against the current bindings. Reports
// whether the macro is active afterwards.
func (m *Manager) Reactivate(ctx context.Context, id string) (bool, error) {
	if _, ok := m.catalog.Macro(id); !ok {
		return false, fmt.Errorf("unknown macro %q", id)
	}

	var activated bool
	done, ok := m.submit(id, func() {
		m.deactivateOp(ctx, id)
		activated = m.activateOp(ctx, id)
	})
	if !ok {
		return false, ErrClosed
	}
	<-done
	return activated, nil
}

// ActivateAllSatisfied sweeps every catalog macro through
// ActivateIfSatisfied and returns how many are active afterwards. Used once
// at startup and after bulk rebinding.
func (m *Manager) ActivateAllSatisfied(ctx context.Context) int {
	count := 0
	for _, mac := range m.catalog.Macros() {
		activated, err := m.ActivateIfSatisfied(ctx, mac.ID)
		if err != nil {
			return count
		}
		if activated {
			count++
		}
	}
	return count
}

// PendingMacro pairs an inactive macro with the roles still missing for it.
// An empty Missing list means the macro is satisfied but its activation has
// not completed (or was rejected by the engine).
type PendingMacro struct {
	Macro   catalog.Macro
	Missing []string
}

// Pending returns every inactive macro with its missing roles, in catalog
// declaration order.
func (m *Manager) Pending() []PendingMacro {
	snap := m.bindings.Snapshot()

	var out []PendingMacro
	for _, mac := range m.catalog.Macros() {
		if m.IsActive(mac.ID) {
			continue
		}
		sat := sqlgen.Validate(mac, snap)
		out = append(out, PendingMacro{Macro: mac, Missing: sat.Missing})
	}
	return out
}

// IsActive reports whether the macro ID is in the active set.
func (m *Manager) IsActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// ActiveIDs returns the active macro IDs in lexical order.
func (m *Manager) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Wait blocks until every operation submitted so far has completed. Binding
// mutations return before their engine work runs, so callers that need the
// engine state settled (tests, shutdown paths) wait here.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close unsubscribes from the binding table, drains in-flight operations,
// and drops every macro that is still active. Safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.wg.Wait()

	for _, id := range m.ActiveIDs() {
		m.deactivateOp(ctx, id)
	}

	m.logger.Debug("activation manager closed")
	return nil
}

// handleEvent is the binding table subscription callback. It runs while the
// binding lock is held, so it only enqueues work: a bind event schedules an
// activation attempt for every macro needing the role, an unbind event
// schedules a deactivation for those that are active. The per-ID chains
// preserve the event order for each macro.
func (m *Manager) handleEvent(ev binding.Event) {
	for _, mac := range m.catalog.MacrosNeeding(ev.Role) {
		id := mac.ID
		switch ev.Kind {
		case binding.KindBind:
			m.submitAsync(id, func() { m.activateOp(context.Background(), id) })
		case binding.KindUnbind:
			m.submitAsync(id, func() {
				// Re-checked inside the serialized op: an activation queued
				// ahead of this op may have flipped the macro active.
				if m.IsActive(id) {
					m.deactivateOp(context.Background(), id)
				}
			})
		}
	}
}

// submit appends an operation to the macro's chain and returns a channel
// closed when the operation finishes. Operations for one ID run strictly in
// submission order; chains for different IDs proceed independently.
func (m *Manager) submit(id string, fn func()) (<-chan struct{}, bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false
	}
	prev := m.tails[id]
	done := make(chan struct{})
	m.tails[id] = done
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		fn()
	}()

	return done, true
}

func (m *Manager) submitAsync(id string, fn func()) {
	if _, ok := m.submit(id, fn); !ok {
		m.logger.Debug("operation dropped, manager closed", "macro", id)
	}
}

// activateOp generates and executes the macro definition if the macro is
// satisfied against the current bindings. Runs inside the ID's chain.
func (m *Manager) activateOp(ctx context.Context, id string) bool {
	mac, ok := m.catalog.Macro(id)
	if !ok {
		return false
	}

	snap := m.bindings.Snapshot()
	sat := sqlgen.Validate(mac, snap)
	if !sat.Satisfied {
		m.logger.Debug("macro not activated", "macro", id, "missing", sat.Missing)
		return false
	}

	stmt, err := sqlgen.DefinitionSQL(mac, snap)
	if err != nil {
		m.logger.Error("macro definition generation failed", "macro", id, "error", err)
		return false
	}

	if err := m.exec.Exec(ctx, stmt); err != nil {
		m.logger.Warn("macro activation rejected by engine", "macro", id, "error", err)
		return false
	}

	m.mu.Lock()
	m.active[id] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("macro activated", "macro", id)
	return true
}

// deactivateOp removes the macro from the active set and attempts the drop,
// falling back to the generic drop syntax if the table-macro form is
// rejected. The set removal is unconditional. Runs inside the ID's chain.
func (m *Manager) deactivateOp(ctx context.Context, id string) bool {
	m.mu.Lock()
	_, wasActive := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()

	if err := m.exec.Exec(ctx, sqlgen.DropSQL(id)); err != nil {
		if err2 := m.exec.Exec(ctx, sqlgen.DropSQLFallback(id)); err2 != nil {
			m.logger.Warn("macro drop failed", "macro", id, "error", err2)
		}
	}

	m.logger.Debug("macro deactivated", "macro", id, "was_active", wasActive)
	return wasActive
}
