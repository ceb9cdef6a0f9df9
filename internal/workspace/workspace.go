// Package workspace manages the concrete tables a session's files are loaded
// into. It turns file lifecycle events (loaded, renamed, removed) into engine
// DDL plus the matching role-binding updates, so macro activation follows the
// table population automatically.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/binding"
	"github.com/macrodesk-labs/macrodesk/internal/duck"
)

// Config holds workspace dependencies.
type Config struct {
	DB       *duck.DB
	Bindings *binding.Table
	Logger   *slog.Logger
}

// Workspace loads files into engine tables and keeps the binding table in
// step with table existence.
type Workspace struct {
	db       *duck.DB
	bindings *binding.Table
	logger   *slog.Logger
}

// New creates a workspace.
func New(cfg Config) (*Workspace, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("workspace: database handle is required")
	}
	if cfg.Bindings == nil {
		return nil, fmt.Errorf("workspace: binding table is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workspace{db: cfg.DB, bindings: cfg.Bindings, logger: logger}, nil
}

// LoadOptions adjusts how a file becomes a table.
type LoadOptions struct {
	// Table overrides the table name derived from the file stem.
	Table string
	// Role binds this role to the new table instead of auto-binding.
	Role string
	// NoAutoBind skips the role auto-bind heuristic entirely.
	NoAutoBind bool
}

// LoadResult describes a loaded table.
type LoadResult struct {
	Table   string `json:"table"`
	Rows    int64  `json:"rows"`
	Columns int    `json:"columns"`
	// Role is the role now bound to the table, empty when none matched.
	Role string `json:"role,omitempty"`
}

// LoadFile reads a CSV, Parquet, or JSON file into a table named after the
// file stem (sanitized to a SQL identifier), replacing any previous table of
// that name. Unless opts say otherwise, the new table is offered to the
// binding table's auto-bind heuristic; the binding outcome is reported, never
// forced.
func (w *Workspace) LoadFile(ctx context.Context, path string, opts LoadOptions) (*LoadResult, error) {
	reader, err := readerClause(path)
	if err != nil {
		return nil, err
	}

	table := opts.Table
	if table == "" {
		table = TableName(path)
	}
	if table == "" {
		return nil, fmt.Errorf("cannot derive a table name from %q", path)
	}

	//nolint:gosec // G201: table is a sanitized identifier, reader embeds a quoted path
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", table, reader)
	if err := w.db.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}

	res := &LoadResult{Table: table}
	if meta, err := w.db.TableMetadata(ctx, table); err == nil {
		res.Rows = meta.RowCount
		res.Columns = len(meta.Columns)
	}

	switch {
	case opts.Role != "":
		w.bindings.Bind(opts.Role, table)
		res.Role = opts.Role
	case !opts.NoAutoBind:
		if role, ok := w.bindings.AutoBind(table); ok {
			res.Role = role
		}
	}

	w.logger.Info("file loaded",
		"file", filepath.Base(path),
		"table", table,
		"rows", res.Rows,
		"role", res.Role)

	return res, nil
}

// Rename renames a table and propagates the rename to its role binding, so
// dependent macros are regenerated against the new name. Returns the affected
// role, if any.
func (w *Workspace) Rename(ctx context.Context, oldName, newName string) (string, error) {
	//nolint:gosec // G201: identifiers come from the session's own tables
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", oldName, newName)
	if err := w.db.Exec(ctx, stmt); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", oldName, err)
	}

	role, _ := w.bindings.RebindTable(oldName, newName)
	w.logger.Info("table renamed", "from", oldName, "to", newName, "role", role)
	return role, nil
}

// Remove drops a table and unbinds whichever role pointed at it. Returns the
// role that lost its binding, if any.
func (w *Workspace) Remove(ctx context.Context, table string) (string, error) {
	//nolint:gosec // G201: identifiers come from the session's own tables
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
	if err := w.db.Exec(ctx, stmt); err != nil {
		return "", fmt.Errorf("failed to drop %s: %w", table, err)
	}

	role, _ := w.bindings.UnbindTable(table)
	w.logger.Info("table removed", "table", table, "role", role)
	return role, nil
}

// RemoveAll drops every workspace table and clears all bindings. Returns the
// number of tables dropped.
func (w *Workspace) RemoveAll(ctx context.Context) (int, error) {
	tables, err := w.db.Tables(ctx)
	if err != nil {
		return 0, err
	}
	for _, table := range tables {
		//nolint:gosec // G201: identifiers come from information_schema
		if err := w.db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return 0, fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	w.bindings.Clear()
	w.logger.Info("workspace cleared", "tables", len(tables))
	return len(tables), nil
}

// TableInfo annotates a live table with its size and bound role.
type TableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
	Role string `json:"role,omitempty"`
}

// Tables lists the current workspace tables with row counts and the role
// bound to each, alphabetically.
func (w *Workspace) Tables(ctx context.Context) ([]TableInfo, error) {
	names, err := w.db.Tables(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{Name: name}
		if count, err := w.db.RowCount(ctx, name); err == nil {
			info.Rows = count
		}
		if role, ok := w.bindings.RoleFor(name); ok {
			info.Role = role
		}
		out = append(out, info)
	}
	return out, nil
}

// Loadable reports whether the workspace knows how to ingest the file.
func Loadable(path string) bool {
	_, err := readerClause(path)
	return err == nil
}

// readerClause picks the DuckDB table function for a file by extension.
func readerClause(path string) (string, error) {
	quoted := strings.ReplaceAll(path, "'", "''")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return fmt.Sprintf("read_csv_auto('%s', header=true)", quoted), nil
	case ".parquet":
		return fmt.Sprintf("read_parquet('%s')", quoted), nil
	case ".json", ".jsonl", ".ndjson":
		return fmt.Sprintf("read_json_auto('%s')", quoted), nil
	default:
		return "", fmt.Errorf("unsupported file type %q (csv, parquet, json)", filepath.Ext(path))
	}
}

// TableName derives a SQL identifier from a file path: the stem, lowercased,
// with every non-identifier character collapsed to an underscore and a
// leading underscore added when the stem starts with a digit.
func TableName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ToLower(stem)

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
