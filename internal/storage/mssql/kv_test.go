package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeDB records statements and serves a single canned row.
type fakeDB struct {
	execs      []string
	execArgs   [][]any
	execErr    error
	row        *string
	queries    []string
	closeCalls int
}

type fakeRow struct {
	v   *string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.v == nil {
		return sql.ErrNoRows
	}
	*(dest[0].(*string)) = *r.v
	return nil
}

func (f *fakeDB) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.execs = append(f.execs, q)
	f.execArgs = append(f.execArgs, args)
	return nil, f.execErr
}

func (f *fakeDB) QueryRowContext(_ context.Context, q string, _ ...any) rowScanner {
	f.queries = append(f.queries, q)
	return fakeRow{v: f.row}
}

func (f *fakeDB) Close() error { f.closeCalls++; return nil }

func TestKV_GetMissingAndPresent(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	kv := newKV(db, "dbo.crm_kv")

	if _, ok, err := kv.Get(context.Background(), "crm_data"); err != nil || ok {
		t.Fatalf("missing Get: ok=%v err=%v", ok, err)
	}

	v := `{"leads":[]}`
	db.row = &v
	got, ok, err := kv.Get(context.Background(), "crm_data")
	if err != nil || !ok || string(got) != v {
		t.Fatalf("Get: %q ok=%v err=%v", got, ok, err)
	}
	if db.queries[0] != "SELECT [value] FROM [dbo].[crm_kv] WHERE [key] = @p1" {
		t.Fatalf("unexpected query: %s", db.queries[0])
	}
}

func TestKV_SetUsesMerge(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	kv := newKV(db, "crm_kv")
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	kv.now = func() time.Time { return fixed }

	if err := kv.Set(context.Background(), "crm_data", []byte("{}")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(db.execs) != 1 || !strings.HasPrefix(db.execs[0], "MERGE INTO [crm_kv] WITH (HOLDLOCK)") {
		t.Fatalf("unexpected statements: %v", db.execs)
	}
	args := db.execArgs[0]
	if len(args) != 3 || args[0] != "crm_data" || args[1] != "{}" || args[2] != fixed {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestKV_ErrorsWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	kv := newKV(&fakeDB{execErr: boom}, "crm_kv")

	if err := kv.Remove(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("Remove: want boom got %v", err)
	}
	if err := kv.ensureTable(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("ensureTable: want boom got %v", err)
	}
}

func TestBuildMergeSQL(t *testing.T) {
	t.Parallel()

	q, _ := buildMergeSQL("crm_kv", "k", nil, time.Time{})
	for _, want := range []string{
		"USING (SELECT @p1 AS [key], @p2 AS [value], @p3 AS [updated_at]) AS s",
		"ON t.[key] = s.[key]",
		"WHEN MATCHED THEN UPDATE SET t.[value] = s.[value], t.[updated_at] = s.[updated_at]",
		"WHEN NOT MATCHED THEN INSERT ([key], [value], [updated_at]) VALUES (s.[key], s.[value], s.[updated_at]);",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("merge sql missing %q:\n%s", want, q)
		}
	}
}

func TestBuildCreateSQL_Guarded(t *testing.T) {
	t.Parallel()

	q := buildCreateSQL("dbo.crm_kv")
	if !strings.HasPrefix(q, "IF OBJECT_ID(N'dbo.crm_kv', N'U') IS NULL BEGIN CREATE TABLE [dbo].[crm_kv]") {
		t.Fatalf("unexpected ddl: %s", q)
	}
}

func TestKV_Close(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	newKV(db, "crm_kv").Close()
	if db.closeCalls != 1 {
		t.Fatalf("expected 1 close call, got %d", db.closeCalls)
	}
}
