package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"crmextract/internal/storage"
)

// KV implements storage.KV for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no native TIMESTAMPTZ type. updated_at is stored as an
//     RFC3339Nano string for reliable round-trip behavior and easy debugging.
//   - modernc.org/sqlite is pure Go, so this backend needs no cgo toolchain and
//     is the default for local runs.
type KV struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

func init() {
	storage.Register("sqlite", Open)
}

// Open opens (creating if needed) the SQLite database at cfg.DSN and ensures
// the key-value table exists.
func Open(ctx context.Context, cfg storage.Config) (storage.KV, error) {
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes writes anyway and this avoids
	// SQLITE_BUSY under concurrent Set calls from the same process.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	kv := &KV{db: db, table: table, now: time.Now}
	if _, err := db.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return kv, nil
}

func (r *KV) Close() { _ = r.db.Close() }

func (r *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, buildGetSQL(r.table), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return []byte(v), true, nil
}

// Set upserts key. SQLite >= 3.24 supports the Postgres-style
// ON CONFLICT ... DO UPDATE clause, so the statement mirrors that backend.
func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	q, args := buildSetSQL(r.table, key, value, r.now())
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlite set %q: %w", key, err)
	}
	return nil
}

func (r *KV) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, buildRemoveSQL(r.table), key); err != nil {
		return fmt.Errorf("sqlite remove %q: %w", key, err)
	}
	return nil
}

var _ storage.Stamper = (*KV)(nil)

// UpdatedAt reports when key was last written.
func (r *KV) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		sqlIdent(storage.ColumnUpdatedAt), sqlTableIdent(r.table), sqlIdent(storage.ColumnKey))

	var s string
	err := r.db.QueryRowContext(ctx, q, key).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := parseSQLiteTime(s)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// sqlTableIdent quotes a table name. A schema qualifier names an attached
// database in SQLite.
func sqlTableIdent(name string) string {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return sqlIdent(table)
	}
	return sqlIdent(schema) + "." + sqlIdent(table)
}

// buildCreateSQL generates the DDL for the key-value table.
func buildCreateSQL(table string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s TEXT NOT NULL PRIMARY KEY, %s TEXT NOT NULL, %s TEXT NOT NULL)`,
		sqlTableIdent(table),
		sqlIdent(storage.ColumnKey),
		sqlIdent(storage.ColumnValue),
		sqlIdent(storage.ColumnUpdatedAt),
	)
}

func buildGetSQL(table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		sqlIdent(storage.ColumnValue), sqlTableIdent(table), sqlIdent(storage.ColumnKey))
}

// buildSetSQL constructs the upsert statement and its args.
//
// It is pure and deterministic, so it can be tested without a database.
func buildSetSQL(table, key string, value []byte, now time.Time) (string, []any) {
	k, v, u := sqlIdent(storage.ColumnKey), sqlIdent(storage.ColumnValue), sqlIdent(storage.ColumnUpdatedAt)
	q := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?) ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s, %s = excluded.%s`,
		sqlTableIdent(table), k, v, u, k, v, v, u, u,
	)
	return q, []any{key, string(value), formatSQLiteTime(now)}
}

func buildRemoveSQL(table string) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, sqlTableIdent(table), sqlIdent(storage.ColumnKey))
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC.
// We store timestamps as TEXT for reliable scanning/parsing with modernc.org/sqlite.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - RFC3339Nano (what we write)
//   - RFC3339
//   - "2006-01-02 15:04:05" (SQLite's CURRENT_TIMESTAMP, interpreted as UTC)
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
