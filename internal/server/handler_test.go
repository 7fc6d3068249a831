package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"crmextract/internal/dispatch"
	"crmextract/internal/extracthtml"
	"crmextract/internal/notify"
	"crmextract/internal/recordstore"
	"crmextract/internal/storage/memory"
)

const accountListHTML = `<html><head><link rel="canonical" href="https://acme.lightning.force.com/lightning/o/Account/list"></head><body>
<table class="slds-table"><tbody>
  <tr class="slds-hint-parent">
    <th data-label="Account Name"><a href="/lightning/r/Account/0015g00000ABCDEAAA/view" data-recordid="0015g00000ABCDEAAA">Initech</a></th>
    <td data-label="Industry">Software</td>
  </tr>
  <tr class="slds-hint-parent">
    <th data-label="Account Name"><a href="/lightning/r/Account/0015g00000FGHIJAAA/view">Umbrella</a></th>
    <td data-label="Industry">Pharma</td>
  </tr>
</tbody></table></body></html>`

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	engine *gin.Engine
	store  *recordstore.Store
	mem    *notify.MemoryHost
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := recordstore.New(memory.New())
	mem := &notify.MemoryHost{}
	notifier := notify.New(mem, notify.WithDismissAfter(time.Hour))
	t.Cleanup(notifier.Close)

	page := &dispatch.CurrentPage{}
	ex := extracthtml.NewExtractor(extracthtml.DefaultSelectors())
	d := dispatch.New(page, ex, store, notifier)

	engine := gin.New()
	InitRouter(engine, NewHandler(store, d, page, nil, mem))
	return &testEnv{engine: engine, store: store, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return r
}

func dataMap(t *testing.T, r Response) map[string]any {
	t.Helper()
	m, ok := r.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want object", r.Data)
	}
	return m
}

func TestExtractFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// No page yet: the trigger answers with an error status.
	w := env.do(t, http.MethodPost, "/api/v1/extract", "")
	if w.Code != http.StatusOK || dataMap(t, decode(t, w))["status"] != dispatch.StatusError {
		t.Fatalf("trigger without page: %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPut, "/api/v1/page", accountListHTML)
	if w.Code != http.StatusOK {
		t.Fatalf("push page: %d %s", w.Code, w.Body.String())
	}
	if got := dataMap(t, decode(t, w))["url"]; got != "https://acme.lightning.force.com/lightning/o/Account/list" {
		t.Fatalf("discovered url = %v", got)
	}

	w = env.do(t, http.MethodPost, "/api/v1/extract", `{"action":"extract"}`)
	data := dataMap(t, decode(t, w))
	if data["status"] != dispatch.StatusSuccess || data["count"].(float64) != 2 {
		t.Fatalf("extract: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/notification", "")
	notice := dataMap(t, decode(t, w))
	if !strings.Contains(notice["html"].(string), "Extracted 2 accounts!") {
		t.Fatalf("notification: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/records?type=accounts&q=pharma", "")
	data = dataMap(t, decode(t, w))
	recs := data["records"].([]any)
	if len(recs) != 1 || recs[0].(map[string]any)["name"] != "Umbrella" {
		t.Fatalf("search: %s", w.Body.String())
	}
}

func TestExtract_UnknownAction(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", `{"action":"refresh"}`)
	if dataMap(t, decode(t, w))["status"] != dispatch.StatusError {
		t.Fatalf("unknown action: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/extract", `{`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json should be 400, got %d", w.Code)
	}
}

func TestPushPage_Empty(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/page", "   ")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty page: %d %s", w.Code, w.Body.String())
	}
}

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	if w := env.do(t, http.MethodPut, "/api/v1/page", accountListHTML); w.Code != http.StatusOK {
		t.Fatalf("push page: %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/extract", ""); dataMap(t, decode(t, w))["status"] != dispatch.StatusSuccess {
		t.Fatalf("extract: %s", w.Body.String())
	}
}

func TestDeleteAndClear(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	seed(t, env)

	w := env.do(t, http.MethodDelete, "/api/v1/records/accounts/0015g00000ABCDEAAA", "")
	if dataMap(t, decode(t, w))["removed"] != true {
		t.Fatalf("delete: %s", w.Body.String())
	}
	w = env.do(t, http.MethodDelete, "/api/v1/records/cases/x", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type should be 400, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/records", "")
	snap := dataMap(t, decode(t, w))
	if accts := snap["accounts"].([]any); len(accts) != 1 {
		t.Fatalf("want 1 account left, got %d", len(accts))
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/records", ""); w.Code != http.StatusOK {
		t.Fatalf("clear: %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/records", "")
	snap = dataMap(t, decode(t, w))
	if snap["lastSync"].(float64) != 0 || len(snap["accounts"].([]any)) != 0 {
		t.Fatalf("after clear: %s", w.Body.String())
	}
}

func TestExport(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/v1/export/csv", ""); w.Code != http.StatusNotFound {
		t.Fatalf("empty export should be 404, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/export/pdf", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown format should be 400, got %d", w.Code)
	}

	seed(t, env)
	w := env.do(t, http.MethodGet, "/api/v1/export/csv", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("csv export: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="crm_data_`) {
		t.Fatalf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(w.Body.String(), "Initech") {
		t.Fatalf("csv body: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/export/print", "")
	if w.Header().Get("Content-Disposition") != "" || !strings.Contains(w.Body.String(), "window.print()") {
		t.Fatalf("print view should render inline: %s", w.Body.String())
	}
}

func TestNotification_None(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/notification", "")
	if w.Code != http.StatusOK || len(dataMap(t, decode(t, w))) != 0 {
		t.Fatalf("no notice: %s", w.Body.String())
	}
}
