// Package session assembles the pieces of a running macrodesk instance: the
// embedded engine, the template catalog, the role bindings, the activation
// manager, and the workspace. Every collaborator is passed in explicitly;
// nothing here is process-global, so two sessions can coexist in one process
// (the CLI does exactly that in tests).
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/macrodesk-labs/macrodesk/internal/activation"
	"github.com/macrodesk-labs/macrodesk/internal/binding"
	"github.com/macrodesk-labs/macrodesk/internal/catalog"
	"github.com/macrodesk-labs/macrodesk/internal/duck"
	"github.com/macrodesk-labs/macrodesk/internal/sqlgen"
	"github.com/macrodesk-labs/macrodesk/internal/view"
	"github.com/macrodesk-labs/macrodesk/internal/workspace"
)

// Config holds everything needed to open a session from scratch.
type Config struct {
	// CatalogDir is the directory holding roles.yaml and the *.sql templates.
	CatalogDir string
	// DatabasePath is the engine database file; empty means in-memory.
	DatabasePath string
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Parts are pre-built session dependencies. Open assembles them from Config;
// tests assemble them around a mock engine.
type Parts struct {
	DB      *duck.DB
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

// Session owns one engine connection and the reactive machinery around it.
type Session struct {
	DB         *duck.DB
	Catalog    *catalog.Catalog
	Bindings   *binding.Table
	Activation *activation.Manager
	Workspace  *workspace.Workspace
	View       *view.View

	logger *slog.Logger
}

// Open loads the catalog, connects to the engine, and assembles a session.
// Templates without table dependencies are activated before Open returns;
// everything else activates as roles get bound.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cat, err := catalog.NewLoader(cfg.CatalogDir, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	db, err := duck.Open(ctx, duck.Config{Path: cfg.DatabasePath, Logger: logger})
	if err != nil {
		return nil, err
	}

	s, err := Assemble(ctx, Parts{DB: db, Catalog: cat, Logger: logger})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Assemble wires a session from pre-built parts. The caller keeps ownership
// of the DB handle on error; on success the session owns it.
func Assemble(ctx context.Context, p Parts) (*Session, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("session: database handle is required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("session: catalog is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bindings := binding.New(p.Catalog, logger)

	mgr, err := activation.New(activation.Config{
		Executor: p.DB,
		Bindings: bindings,
		Catalog:  p.Catalog,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(workspace.Config{
		DB:       p.DB,
		Bindings: bindings,
		Logger:   logger,
	})
	if err != nil {
		_ = mgr.Close(ctx)
		return nil, err
	}

	s := &Session{
		DB:         p.DB,
		Catalog:    p.Catalog,
		Bindings:   bindings,
		Activation: mgr,
		Workspace:  ws,
		View:       view.New(p.Catalog),
		logger:     logger,
	}

	// Templates with no table dependencies are satisfied from the start.
	if n := mgr.ActivateAllSatisfied(ctx); n > 0 {
		logger.Info("templates active at startup", "count", n)
	}

	return s, nil
}

// Snapshot returns the current role bindings.
func (s *Session) Snapshot() map[string]string {
	return s.Bindings.Snapshot()
}

// CallFor returns the SELECT statement that runs a template with the given
// positional argument expressions. Inactive templates are activated on the
// fly when their bindings allow; otherwise the error names the missing roles.
func (s *Session) CallFor(ctx context.Context, id string, args []string) (string, error) {
	mac, ok := s.Catalog.Macro(id)
	if !ok {
		return "", fmt.Errorf("unknown template %q", id)
	}

	if !s.Activation.IsActive(id) {
		activated, err := s.Activation.ActivateIfSatisfied(ctx, id)
		if err != nil {
			return "", err
		}
		if !activated {
			sat := sqlgen.Validate(mac, s.Bindings.Snapshot())
			return "", fmt.Errorf("template %s is not runnable: missing roles %v", id, sat.Missing)
		}
	}

	return sqlgen.CallSQL(mac, args)
}

// Invoke runs a template by ID and returns the result rows.
func (s *Session) Invoke(ctx context.Context, id string, args []string) (*sql.Rows, error) {
	call, err := s.CallFor(ctx, id, args)
	if err != nil {
		return nil, err
	}
	return s.DB.Query(ctx, call)
}

// Close drains the activation manager, drops its macros, and closes the
// engine connection.
func (s *Session) Close(ctx context.Context) error {
	return errors.Join(
		s.Activation.Close(ctx),
		s.DB.Close(),
	)
}
