// Package sqlserver connects to the clinical store and runs its he.* stored procedures.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/ealmetes/HealthExtent/internal/shared/config"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
)

// DB wraps the SQL Server pool with a per-command timeout
type DB struct {
	SQL     *sql.DB
	timeout time.Duration
}

// Open connects to SQL Server and verifies the connection
func Open(ctx context.Context, cfg config.SQLServerConfig) (*DB, error) {
	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{SQL: db, timeout: cfg.CommandTimeout}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.SQL != nil {
		db.SQL.Close()
	}
}

// Health checks the connection and records pool usage
func (db *DB) Health(ctx context.Context) error {
	metrics.RecordDBConnections("sqlserver", db.SQL.Stats().InUse)
	return db.SQL.PingContext(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.timeout)
}

// ExecProc runs a stored procedure with named parameters
func (db *DB) ExecProc(ctx context.Context, proc string, args ...any) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.SQL.ExecContext(ctx, proc, args...)
	metrics.RecordDBQuery(proc, time.Since(start))
	return err
}

// WithTx runs fn in a transaction, committing when fn returns nil
func (db *DB) WithTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery(op, time.Since(start)) }()

	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Query runs a tenant-filtered SELECT. The caller closes the rows and must
// call the returned cancel func once done with them.
func (db *DB) Query(ctx context.Context, op, query string, args ...any) (*sql.Rows, context.CancelFunc, error) {
	ctx, cancel := db.withTimeout(ctx)

	start := time.Now()
	rows, err := db.SQL.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery(op, time.Since(start))
	if err != nil {
		cancel()
		return nil, func() {}, err
	}
	return rows, cancel, nil
}

// QueryRow runs a single-row SELECT and scans it with scan
func (db *DB) QueryRow(ctx context.Context, op, query string, scan func(*sql.Row) error, args ...any) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := scan(db.SQL.QueryRowContext(ctx, query, args...))
	metrics.RecordDBQuery(op, time.Since(start))
	return err
}

// Nullable converts an optional string pointer into a stored-procedure argument
func Nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// NullableTime converts an optional time into a stored-procedure argument
func NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// NullableInt64 converts an optional integer into a stored-procedure argument
func NullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// StringPtr returns the value of a nullable column
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// TimePtr returns the value of a nullable datetime column in UTC
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Int64Ptr returns the value of a nullable bigint column
func Int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// Int32Ptr returns the value of a nullable int column
func Int32Ptr(ni sql.NullInt32) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int32)
	return &v
}

// Paging normalizes skip/take: negative skip becomes 0, take <= 0 becomes 100, take is capped at 1000
func Paging(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = 100
	}
	if take > 1000 {
		take = 1000
	}
	return skip, take
}

// ErrorDetail strips the driver prefix from a SQL Server error for client messages
func ErrorDetail(err error) string {
	return strings.TrimPrefix(err.Error(), "mssql: ")
}
