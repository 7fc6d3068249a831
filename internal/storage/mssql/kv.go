package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"crmextract/internal/storage"
)

// KV implements storage.KV for Microsoft SQL Server.
//
// Writes use a single MERGE ... WITH (HOLDLOCK) so concurrent writers for the
// same key serialize on the key range instead of racing between an UPDATE and
// an INSERT.
type KV struct {
	db    dbConn
	table string
	now   func() time.Time
}

func init() {
	storage.Register("mssql", Open)
}

// Open connects with the "sqlserver" driver, pings the server and creates
// the table when it is missing.
func Open(ctx context.Context, cfg storage.Config) (storage.KV, error) {
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	kv := newKV(&sqlDB{db: raw}, table)
	if err := kv.ensureTable(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return kv, nil
}

func newKV(db dbConn, table string) *KV {
	return &KV{db: db, table: table, now: time.Now}
}

// Close releases database resources held by this KV.
func (r *KV) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

func (r *KV) ensureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(r.table)); err != nil {
		return fmt.Errorf("mssql ensure table %s: %w", r.table, err)
	}
	return nil
}

func (r *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, buildGetSQL(r.table), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mssql get %q: %w", key, err)
	}
	return []byte(v), true, nil
}

func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	q, args := buildMergeSQL(r.table, key, value, r.now().UTC())
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("mssql set %q: %w", key, err)
	}
	return nil
}

func (r *KV) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, buildRemoveSQL(r.table), key); err != nil {
		return fmt.Errorf("mssql remove %q: %w", key, err)
	}
	return nil
}

// buildCreateSQL wraps CREATE TABLE in an OBJECT_ID guard.
//
// This keeps table creation idempotent without requiring IF NOT EXISTS syntax.
// The key column is NVARCHAR(450) because index keys are capped at 900 bytes.
func buildCreateSQL(table string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s NVARCHAR(450) NOT NULL PRIMARY KEY, %s NVARCHAR(MAX) NOT NULL, %s DATETIME2 NOT NULL); END;",
		table,
		mssqlTableIdent(table),
		mssqlIdent(storage.ColumnKey),
		mssqlIdent(storage.ColumnValue),
		mssqlIdent(storage.ColumnUpdatedAt),
	)
}

func buildGetSQL(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = @p1",
		mssqlIdent(storage.ColumnValue), mssqlTableIdent(table), mssqlIdent(storage.ColumnKey))
}

// buildMergeSQL returns the MERGE upsert for one key and its args.
func buildMergeSQL(table, key string, value []byte, now time.Time) (string, []any) {
	k, v, u := mssqlIdent(storage.ColumnKey), mssqlIdent(storage.ColumnValue), mssqlIdent(storage.ColumnUpdatedAt)

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" WITH (HOLDLOCK) AS t USING (SELECT @p1 AS ")
	b.WriteString(k)
	b.WriteString(", @p2 AS ")
	b.WriteString(v)
	b.WriteString(", @p3 AS ")
	b.WriteString(u)
	b.WriteString(") AS s ON t.")
	b.WriteString(k)
	b.WriteString(" = s.")
	b.WriteString(k)
	fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET t.%s = s.%s, t.%s = s.%s", v, v, u, u)
	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s, %s, %s) VALUES (s.%s, s.%s, s.%s);", k, v, u, k, v, u)

	return b.String(), []any{key, string(value), now}
}

func buildRemoveSQL(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = @p1", mssqlTableIdent(table), mssqlIdent(storage.ColumnKey))
}

// mssqlIdent brackets one name part; a ']' inside it is doubled.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent brackets every part of a possibly schema-qualified name:
//
//	"dbo.crm_kv" -> [dbo].[crm_kv]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// dbConn is the slice of *sql.DB the KV uses; tests swap in a fake.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Close() error
}

// rowScanner is what Get needs from *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqlDB adapts *sql.DB to dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) Close() error { return s.db.Close() }

var _ dbConn = (*sqlDB)(nil)
