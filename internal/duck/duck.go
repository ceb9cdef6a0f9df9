// Package duck wraps the single embedded DuckDB connection shared by the
// whole session. It exposes statement execution for the activation manager
// and the table helpers the workspace layer needs; macrodesk never pools or
// multiplexes connections.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// MemoryPath opens an in-memory database.
const MemoryPath = ":memory:"

// Config holds connection settings.
type Config struct {
	// Path is the database file; empty or ":memory:" means in-memory.
	Path string
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// DB is the session's query engine handle. Safe for concurrent use; the
// underlying *sql.DB serializes access to the embedded engine.
type DB struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open connects to DuckDB at cfg.Path and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	path := cfg.Path
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &DB{db: db, path: path, logger: logger}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	logger.Debug("duckdb opened", "path", path)

	return d, nil
}

// Wrap builds a DB around an existing handle. Used by tests to substitute a
// mock driver.
func Wrap(db *sql.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{db: db, path: MemoryPath, logger: logger}
}

// Path returns the database location the handle was opened with.
func (d *DB) Path() string { return d.path }

// InMemory reports whether the database lives only in process memory.
func (d *DB) InMemory() bool { return d.path == MemoryPath }

// Ping verifies that the engine is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("database connection not established")
	}
	return d.db.PingContext(ctx)
}

// Close closes the connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	d.logger.Debug("closing duckdb connection")
	return d.db.Close()
}

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	if d.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows. The caller owns the rows and
// must check rows.Err() after iterating.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryRow executes a single-row query.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Column describes one table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Position int    `json:"position"`
}

// TableMetadata holds schema and size information for one table.
type TableMetadata struct {
	Schema   string   `json:"schema"`
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// Tables lists the base tables in the main schema, alphabetically.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}

// TableExists reports whether a base table with the given name exists in the
// main schema.
func (d *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := d.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_name = ?
	`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// RowCount counts the rows of a table.
func (d *DB) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	//nolint:gosec // G201: table names come from information_schema or validated identifiers
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := d.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return count, nil
}

// TableMetadata retrieves column and row-count metadata for a table.
// Accepts schema-qualified names; unqualified names resolve to main.
func (d *DB) TableMetadata(ctx context.Context, table string) (*TableMetadata, error) {
	schema := "main"
	name := table
	if parts := strings.Split(table, "."); len(parts) == 2 {
		schema = parts[0]
		name = parts[1]
	}

	rows, err := d.Query(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	meta := &TableMetadata{Schema: schema, Name: name, Columns: columns}

	// Row count is informational; a failure degrades to 0 rather than
	// failing the whole lookup.
	if count, err := d.RowCount(ctx, schema+"."+name); err == nil {
		meta.RowCount = count
	}

	return meta, nil
}
