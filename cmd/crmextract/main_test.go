package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const leadListPage = `<html><head>
<link rel="canonical" href="https://acme.lightning.force.com/lightning/o/Lead/list">
</head><body>
<table class="slds-table"><tbody>
  <tr class="slds-hint-parent">
    <th data-label="Name"><a href="/lightning/r/Lead/00Q5g00000ABCDEAAA/view" data-recordid="00Q5g00000ABCDEAAA">Acme Corp</a></th>
    <td data-label="Company">Acme</td>
  </tr>
  <tr class="slds-hint-parent">
    <th data-label="Name"><a href="/lightning/r/Lead/00Q5g00000XYZABAAA/view">Globex</a></th>
    <td data-label="Company">Globex Inc</td>
  </tr>
</tbody></table>
</body></html>`

// writeConfig points storage at a fresh sqlite file so each test owns its
// data.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	body := "log_level: error\n" +
		"storage:\n" +
		"  kind: sqlite\n" +
		"  dsn: " + filepath.Join(dir, "crm.db") + "\n" +
		"metrics:\n" +
		"  backend: none\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	r := runCLI(t, stdin, args...)
	if r.code != 0 {
		t.Fatalf("%v: exit %d; stderr=%s", args, r.code, r.stderr)
	}
	return r.stdout
}

func decodeIDs(t *testing.T, out string) []string {
	t.Helper()
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("stdout is not a record list: %v; out=%s", err, out)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r["id"].(string))
	}
	return ids
}

// TestRun_ExtractThenManage walks the normal lifecycle: extract from stdin,
// list, search, delete one record, export and clear.
func TestRun_ExtractThenManage(t *testing.T) {
	cfg := writeConfig(t)

	out := mustRun(t, leadListPage, "-c", cfg, "extract")
	var resp map[string]any
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("extract output: %v; out=%s", err, out)
	}
	if resp["status"] != "success" || resp["count"] != float64(2) {
		t.Fatalf("unexpected response: %v", resp)
	}

	ids := decodeIDs(t, mustRun(t, "", "-c", cfg, "records", "--type", "leads"))
	if len(ids) != 2 || ids[0] != "00Q5g00000ABCDEAAA" {
		t.Fatalf("unexpected ids after extract: %v", ids)
	}

	ids = decodeIDs(t, mustRun(t, "", "-c", cfg, "records", "-t", "leads", "-q", "GLOBEX"))
	if len(ids) != 1 || ids[0] != "00Q5g00000XYZABAAA" {
		t.Fatalf("search: unexpected ids %v", ids)
	}

	// Extracting the same page again updates in place.
	mustRun(t, leadListPage, "-c", cfg, "extract")
	if ids := decodeIDs(t, mustRun(t, "", "-c", cfg, "records", "-t", "leads")); len(ids) != 2 {
		t.Fatalf("re-extract duplicated records: %v", ids)
	}

	if out := mustRun(t, "", "-c", cfg, "delete", "leads", "00Q5g00000ABCDEAAA"); !strings.Contains(out, "deleted leads") {
		t.Fatalf("delete output: %q", out)
	}
	if out := mustRun(t, "", "-c", cfg, "delete", "leads", "00Q5g00000ABCDEAAA"); !strings.Contains(out, "no leads record") {
		t.Fatalf("second delete output: %q", out)
	}

	csvOut := mustRun(t, "", "-c", cfg, "export", "csv")
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "id,name,") || !strings.Contains(lines[1], "Globex") {
		t.Fatalf("unexpected csv:\n%s", csvOut)
	}

	mustRun(t, "", "-c", cfg, "clear")
	var snap map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "", "-c", cfg, "records")), &snap); err != nil {
		t.Fatalf("records after clear: %v", err)
	}
	if leads, _ := snap["leads"].([]any); len(leads) != 0 {
		t.Fatalf("leads survived clear: %v", snap["leads"])
	}
}

func TestRun_ExportToFile(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, leadListPage, "-c", cfg, "extract")

	out := filepath.Join(t.TempDir(), "report.md")
	r := runCLI(t, "", "-c", cfg, "export", "md", "-o", out)
	if r.code != 0 {
		t.Fatalf("exit %d; stderr=%s", r.code, r.stderr)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(b), "Acme Corp") {
		t.Fatalf("markdown export missing record:\n%s", b)
	}
}

func TestRun_ExportEmptyStoreFails(t *testing.T) {
	cfg := writeConfig(t)
	r := runCLI(t, "", "-c", cfg, "export", "json")
	if r.code != 1 || !strings.Contains(r.stderr, "no data to export") {
		t.Fatalf("want exit 1 with nothing-to-export, got %d stderr=%q", r.code, r.stderr)
	}
}

func TestRun_ExtractNoRecords(t *testing.T) {
	cfg := writeConfig(t)
	r := runCLI(t, `<html><body><p>home</p></body></html>`, "-c", cfg, "extract", "--url", "https://acme.lightning.force.com/lightning/page/home")
	if r.code != 1 {
		t.Fatalf("want exit 1, got %d; stdout=%s", r.code, r.stdout)
	}
	if !strings.Contains(r.stdout, `"status": "error"`) || !strings.Contains(r.stderr, "No records found.") {
		t.Fatalf("stdout=%s stderr=%s", r.stdout, r.stderr)
	}
}

func TestRun_Dir(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a-leads.html"), []byte(leadListPage), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b-home.html"), []byte(`<p>home</p>`), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "", "-c", cfg, "dir", dir)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "a-leads.html\tleads\tlist\t2" || lines[1] != "b-home.html\tnone\tnone\t0" {
		t.Fatalf("unexpected dir output:\n%s", out)
	}
	if ids := decodeIDs(t, mustRun(t, "", "-c", cfg, "records", "-t", "leads")); len(ids) != 2 {
		t.Fatalf("dir did not store records: %v", ids)
	}
}

// TestRun_Status reports counts and both timestamps once something was
// stored; the sqlite backend keeps per-key write times.
func TestRun_Status(t *testing.T) {
	cfg := writeConfig(t)

	var st storeStatus
	if err := json.Unmarshal([]byte(mustRun(t, "", "-c", cfg, "status")), &st); err != nil {
		t.Fatalf("status output: %v", err)
	}
	if st.Total != 0 || st.LastSync != nil || st.LastWrite != nil {
		t.Fatalf("empty store status: %+v", st)
	}

	mustRun(t, leadListPage, "-c", cfg, "extract")
	if err := json.Unmarshal([]byte(mustRun(t, "", "-c", cfg, "status")), &st); err != nil {
		t.Fatalf("status output: %v", err)
	}
	if st.Key != "crm_data" || st.Total != 2 || st.Counts["leads"] != 2 || st.Counts["tasks"] != 0 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.LastSync == nil || st.LastWrite == nil {
		t.Fatalf("missing timestamps: %+v", st)
	}
}

func TestRun_DebugCommands(t *testing.T) {
	cfg := writeConfig(t)

	out := mustRun(t, leadListPage, "-c", cfg, "select", "th a", "--text")
	if out != "Acme Corp\n\nGlobex\n\n" {
		t.Fatalf("select output: %q", out)
	}

	out = mustRun(t, leadListPage, "-c", cfg, "plan")
	for _, want := range []string{"object type: leads", "rows: 2", "mode: list", "records: 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_UsageErrors(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"-c", cfg, "nope"}},
		{"unknown flag", []string{"-c", cfg, "records", "--nope"}},
		{"missing args", []string{"-c", cfg, "delete", "leads"}},
		{"bad object type", []string{"-c", cfg, "delete", "widgets", "1"}},
		{"bad export format", []string{"-c", cfg, "export", "pdf"}},
		{"bad log level", []string{"-c", cfg, "--log-level", "loud", "records"}},
		{"missing config file", []string{"-c", filepath.Join(t.TempDir(), "nope.yaml"), "records"}},
		{"trigger without nats", []string{"-c", cfg, "trigger"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := runCLI(t, "", tc.args...)
			if r.code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", r.code, r.stderr)
			}
			if !strings.HasPrefix(r.stderr, "error: ") {
				t.Fatalf("stderr=%q", r.stderr)
			}
		})
	}
}
