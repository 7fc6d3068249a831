package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmextract/internal/storage"
)

/*
KV implements storage.KV for Postgres.

It provides:
  - Create-if-missing schema and table on open
  - Single-statement upsert via INSERT ... ON CONFLICT DO UPDATE
  - Timestamps as timestamptz, written by the database clock
*/
type KV struct {
	pool  *pgxpool.Pool
	table string
}

func init() {
	storage.Register("postgres", Open)
}

// Open creates a Postgres-backed KV and ensures its table exists.
func Open(ctx context.Context, cfg storage.Config) (storage.KV, error) {
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}

	schemaSQL, tableSQL := buildCreateSQL(table)
	for _, q := range []string{schemaSQL, tableSQL} {
		if q == "" {
			continue
		}
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres ensure table %s: %w", table, err)
		}
	}
	return &KV{pool: pool, table: table}, nil
}

// Close closes the connection pool.
func (r *KV) Close() {
	r.pool.Close()
}

func (r *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := r.pool.QueryRow(ctx, buildGetSQL(r.table), key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return []byte(v), true, nil
}

func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	q, args := buildSetSQL(r.table, key, value)
	if _, err := r.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (r *KV) Remove(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, buildRemoveSQL(r.table), key); err != nil {
		return fmt.Errorf("postgres remove %q: %w", key, err)
	}
	return nil
}

var _ storage.Stamper = (*KV)(nil)

// UpdatedAt reports when key was last written, by the database clock.
func (r *KV) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		pgIdent(storage.ColumnUpdatedAt), pgTableIdent(r.table), pgIdent(storage.ColumnKey))

	var ts time.Time
	err := r.pool.QueryRow(ctx, q, key).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// buildCreateSQL builds DDL for:
//   - the schema, when the table is schema-qualified (else "")
//   - the key-value table
func buildCreateSQL(table string) (schemaSQL, tableSQL string) {
	if schema, _ := storage.SplitQualifiedName(table); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + pgIdent(schema)
	}
	tableSQL = fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s text PRIMARY KEY, %s text NOT NULL, %s timestamptz NOT NULL DEFAULT now())`,
		pgTableIdent(table),
		pgIdent(storage.ColumnKey),
		pgIdent(storage.ColumnValue),
		pgIdent(storage.ColumnUpdatedAt),
	)
	return schemaSQL, tableSQL
}

func buildGetSQL(table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		pgIdent(storage.ColumnValue), pgTableIdent(table), pgIdent(storage.ColumnKey))
}

// buildSetSQL constructs the upsert statement and its args.
//
// Why this exists:
//   - It is pure and deterministic, so we can unit test the ON CONFLICT clause
//     and placeholder numbering without a database.
func buildSetSQL(table, key string, value []byte) (string, []any) {
	k, v, u := pgIdent(storage.ColumnKey), pgIdent(storage.ColumnValue), pgIdent(storage.ColumnUpdatedAt)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	fmt.Fprintf(&b, " (%s, %s, %s) VALUES ($1, $2, now())", k, v, u)
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s", k, v, v, u, u)
	return b.String(), []any{key, string(value)}
}

func buildRemoveSQL(table string) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, pgTableIdent(table), pgIdent(storage.ColumnKey))
}
