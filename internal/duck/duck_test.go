package duck

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Wrap(db, nil), mock
}

func TestExec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr bool
		errMsg    string
	}{
		{
			name: "exec success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE OR REPLACE MACRO summary").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE OR REPLACE MACRO summary() AS TABLE SELECT 1",
		},
		{
			name: "exec with engine error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DROP MACRO TABLE").WillReturnError(assert.AnError)
			},
			sql:       "DROP MACRO TABLE IF EXISTS summary",
			expectErr: true,
			errMsg:    "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newMockDB(t)
			tt.setupMock(mock)

			err := d.Exec(context.Background(), tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExec_NoConnection(t *testing.T) {
	d := &DB{}
	err := d.Exec(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}

func TestQuery(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	rows, err := d.Query(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTables(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT table_name").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("orders").
			AddRow("users"))

	names, err := d.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableExists(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  bool
	}{
		{name: "present", count: 1, want: true},
		{name: "absent", count: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
				WithArgs("orders").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))

			got, err := d.TableExists(context.Background(), "orders")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableMetadata(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT column_name").
		WithArgs("main", "orders").
		WillReturnRows(sqlmock.NewRows(
			[]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("id", "BIGINT", "NO", 1).
			AddRow("amount", "DOUBLE", "YES", 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM main.orders")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	meta, err := d.TableMetadata(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, "main", meta.Schema)
	assert.Equal(t, "orders", meta.Name)
	assert.Equal(t, int64(42), meta.RowCount)
	require.Len(t, meta.Columns, 2)
	assert.Equal(t, Column{Name: "id", Type: "BIGINT", Nullable: false, Position: 1}, meta.Columns[0])
	assert.True(t, meta.Columns[1].Nullable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableMetadata_QualifiedName(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT column_name").
		WithArgs("analytics", "orders").
		WillReturnRows(sqlmock.NewRows(
			[]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("id", "BIGINT", "NO", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM analytics.orders")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	meta, err := d.TableMetadata(context.Background(), "analytics.orders")
	require.NoError(t, err)
	assert.Equal(t, "analytics", meta.Schema)
	assert.Equal(t, "orders", meta.Name)
}

func TestTableMetadata_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT column_name").
		WithArgs("main", "ghost").
		WillReturnRows(sqlmock.NewRows(
			[]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

	_, err := d.TableMetadata(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTableMetadata_RowCountFailureIsNonFatal(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("SELECT column_name").
		WithArgs("main", "orders").
		WillReturnRows(sqlmock.NewRows(
			[]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("id", "BIGINT", "NO", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnError(assert.AnError)

	meta, err := d.TableMetadata(context.Background(), "orders")
	require.NoError(t, err, "count failure degrades to zero, not an error")
	assert.Zero(t, meta.RowCount)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing()

	d := Wrap(db, nil)
	assert.NoError(t, d.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	var empty DB
	require.Error(t, empty.Ping(context.Background()))
}

func TestClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	d := Wrap(db, nil)
	assert.NoError(t, d.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	var empty DB
	assert.NoError(t, empty.Close(), "closing a zero handle is a no-op")
}
