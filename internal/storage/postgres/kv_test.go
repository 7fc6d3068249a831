package postgres

import (
	"context"
	"strings"
	"testing"

	"crmextract/internal/storage"
)

func TestBuildCreateSQL_Unqualified(t *testing.T) {
	t.Parallel()

	schemaSQL, tableSQL := buildCreateSQL("crm_kv")
	if schemaSQL != "" {
		t.Fatalf("expected no schema DDL for unqualified table; got %q", schemaSQL)
	}
	if !strings.Contains(tableSQL, `CREATE TABLE IF NOT EXISTS "crm_kv"`) {
		t.Fatalf("tableSQL missing CREATE TABLE: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, `"key" text PRIMARY KEY`) {
		t.Fatalf("tableSQL missing primary key: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, `"updated_at" timestamptz`) {
		t.Fatalf("tableSQL missing updated_at: %q", tableSQL)
	}
}

func TestBuildCreateSQL_SchemaQualified(t *testing.T) {
	t.Parallel()

	schemaSQL, tableSQL := buildCreateSQL("crm.snapshots")
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "crm"` {
		t.Fatalf("unexpected schema DDL: %q", schemaSQL)
	}
	if !strings.Contains(tableSQL, `"crm"."snapshots"`) {
		t.Fatalf("tableSQL not schema-qualified: %q", tableSQL)
	}
}

func TestBuildSetSQL_OnConflictAndPlaceholders(t *testing.T) {
	t.Parallel()

	q, args := buildSetSQL("crm_kv", "crm_data", []byte(`{"leads":[]}`))

	want := `INSERT INTO "crm_kv" ("key", "value", "updated_at") VALUES ($1, $2, now()) ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value", "updated_at" = EXCLUDED."updated_at"`
	if q != want {
		t.Fatalf("unexpected sql:\nwant=%s\ngot =%s", want, q)
	}
	if len(args) != 2 || args[0] != "crm_data" || args[1] != `{"leads":[]}` {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildGetAndRemoveSQL(t *testing.T) {
	t.Parallel()

	if got := buildGetSQL("crm_kv"); got != `SELECT "value" FROM "crm_kv" WHERE "key" = $1` {
		t.Fatalf("unexpected get sql: %s", got)
	}
	if got := buildRemoveSQL("crm_kv"); got != `DELETE FROM "crm_kv" WHERE "key" = $1` {
		t.Fatalf("unexpected remove sql: %s", got)
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected ident: %s", got)
	}
}

func TestOpen_RejectsInvalidTable(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), storage.Config{DSN: "postgres://localhost/none", Table: "x;y"}); err == nil {
		t.Fatalf("expected error for invalid table")
	}
}
