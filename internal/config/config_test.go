package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestTryLoadFromDisk_YAML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", `
log_level: debug
selectors: ./selectors.yaml
storage:
  kind: postgres
  dsn: postgres://localhost/crm
  table: crm.kv
notify:
  dismiss_after: 2s
metrics:
  backend: datadog
  tags:
    - "env:test"
    - "team:sales-ops"
server:
  port: 8080
nats:
  endpoint: nats://127.0.0.1:4222
`)

	cfg, err := TryLoadFromDisk(p)
	if err != nil {
		t.Fatalf("TryLoadFromDisk: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Selectors != "./selectors.yaml" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Storage.Kind != "postgres" || cfg.Storage.Table != "crm.kv" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.Key != "crm_data" {
		t.Fatalf("unset key should keep its default, got %q", cfg.Storage.Key)
	}
	if cfg.Notify.DismissAfter != 2*time.Second {
		t.Fatalf("dismiss_after = %v", cfg.Notify.DismissAfter)
	}
	if cfg.Metrics.Backend != "datadog" || len(cfg.Metrics.Tags) != 2 || cfg.Metrics.FlushEvery != time.Minute {
		t.Fatalf("unexpected metrics: %+v", cfg.Metrics)
	}
	if cfg.Server.Port != 8080 || cfg.Nats.Subject != "crm.extract" {
		t.Fatalf("unexpected server/nats: %+v %+v", cfg.Server, cfg.Nats)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("Validate: %v", errs)
	}
	if kv := cfg.Storage.KV(); kv.Kind != "postgres" || kv.DSN != "postgres://localhost/crm" {
		t.Fatalf("KV() = %+v", kv)
	}
}

func TestTryLoadFromDisk_JSON(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"storage":{"kind":"memory","dsn":""},"server":{"port":9090}}`)

	cfg, err := TryLoadFromDisk(p)
	if err != nil {
		t.Fatalf("TryLoadFromDisk: %v", err)
	}
	if cfg.Storage.Kind != "memory" || cfg.Server.Port != 9090 {
		t.Fatalf("unexpected config %+v %+v", cfg.Storage, cfg.Server)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("memory needs no dsn: %v", errs)
	}
}

func TestTryLoadFromDisk_Missing(t *testing.T) {
	if _, err := TryLoadFromDisk(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yml", "storage:\n  kind: sqlite\n")
	writeFile(t, dir, ".env", "CRMEXTRACT_SERVER_PORT=7070\n")
	t.Setenv("CRMEXTRACT_STORAGE_DSN", "/tmp/env.db")
	t.Cleanup(func() { os.Unsetenv("CRMEXTRACT_SERVER_PORT") })

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN != "/tmp/env.db" {
		t.Fatalf("env override ignored: %+v", cfg.Storage)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf(".env value ignored: port=%d", cfg.Server.Port)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Kind != "sqlite" || cfg.Storage.DSN != "crmextract.db" || cfg.Server.Port != 3000 {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Storage, cfg.Server)
	}
	if cfg.Notify.DismissAfter != 4*time.Second {
		t.Fatalf("dismiss_after = %v", cfg.Notify.DismissAfter)
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	cfg.Storage.DSN = ""
	cfg.Storage.Table = "bad-table"
	cfg.Storage.Key = " "
	cfg.Server.Port = 70000
	cfg.Notify.DismissAfter = -time.Second
	cfg.Metrics.Backend = "statsd"
	cfg.Nats.Endpoint = "nats://x"
	cfg.Nats.Subject = ""

	errs := cfg.Validate()
	if len(errs) != 7 {
		t.Fatalf("want 7 errors got %d: %v", len(errs), errs)
	}

	cfg = &Config{}
	if errs := cfg.Validate(); len(errs) != 1 || !strings.Contains(errs[0].Error(), "storage") {
		t.Fatalf("missing storage should be reported: %v", errs)
	}
}

func TestIsValidPort(t *testing.T) {
	t.Parallel()

	if err := IsValidPort("3000"); err != nil {
		t.Fatalf("IsValidPort: %v", err)
	}
	if err := IsValidPort("abc"); err == nil {
		t.Fatal("expected conversion error")
	}
	if err := IsValidPort(-1); err == nil {
		t.Fatal("expected range error")
	}
}

func TestString_RedactsDSN(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	cfg.Storage.DSN = "postgres://user:secret@db/crm"
	if s := cfg.String(); strings.Contains(s, "secret") {
		t.Fatalf("dsn leaked: %s", s)
	}
}
