package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crmextract/internal/dispatch"
	"crmextract/internal/export"
	"crmextract/internal/extracthtml"
	"crmextract/internal/notify"
	"crmextract/internal/records"
	"crmextract/internal/recordstore"
)

// Handler serves the v1 API.
type Handler struct {
	store      *recordstore.Store
	dispatcher *dispatch.Dispatcher
	page       *dispatch.CurrentPage
	loader     *extracthtml.Loader
	notices    *notify.MemoryHost
	now        func() time.Time
}

// NewHandler wires the API. page receives pushed documents; notices may be nil
// when no display is attached.
func NewHandler(store *recordstore.Store, d *dispatch.Dispatcher, page *dispatch.CurrentPage, loader *extracthtml.Loader, notices *notify.MemoryHost) *Handler {
	if loader == nil {
		loader = extracthtml.NewLoader(0)
	}
	return &Handler{
		store:      store,
		dispatcher: d,
		page:       page,
		loader:     loader,
		notices:    notices,
		now:        time.Now,
	}
}

// ListRecords godoc
// GET /api/v1/records?type=<objectType>&q=<term>
//
// Without type the whole snapshot is returned; q filters every collection.
func (h *Handler) ListRecords(c *gin.Context) {
	snap, err := h.store.Load(c.Request.Context())
	if err != nil {
		Err(c, err)
		return
	}
	q := c.Query("q")

	if t := c.Query("type"); t != "" {
		ot, err := records.ParseObjectType(t)
		if err != nil {
			Err(c, gin.H{"error": err.Error(), "code": http.StatusBadRequest})
			return
		}
		Ok(c, gin.H{
			"objectType": ot,
			"records":    export.Search(snap.Records(ot), q),
			"lastSync":   snap.LastSync,
		})
		return
	}

	Ok(c, snap.Map(func(_ records.ObjectType, recs []records.Record) []records.Record {
		return export.Search(recs, q)
	}))
}

// DeleteRecord godoc
// DELETE /api/v1/records/:type/:id
func (h *Handler) DeleteRecord(c *gin.Context) {
	ot, err := records.ParseObjectType(c.Param("type"))
	if err != nil {
		Err(c, gin.H{"error": err.Error(), "code": http.StatusBadRequest})
		return
	}
	removed, err := h.store.Delete(c.Request.Context(), ot, c.Param("id"))
	if err != nil {
		Err(c, err)
		return
	}
	Ok(c, gin.H{"removed": removed})
}

// ClearRecords godoc
// DELETE /api/v1/records
func (h *Handler) ClearRecords(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		Err(c, err)
		return
	}
	zap.S().Info("stored records cleared")
	Ok(c, nil)
}

// Extract godoc
// POST /api/v1/extract
//
// The body is an optional {"action":"extract"}; an empty body means extract.
// The trigger outcome is always returned in data, even when it is an error.
func (h *Handler) Extract(c *gin.Context) {
	req := dispatch.Request{Action: dispatch.ActionExtract}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Err(c, gin.H{"error": fmt.Sprintf("decode request: %v", err), "code": http.StatusBadRequest})
			return
		}
	}
	Ok(c, h.dispatcher.Handle(c.Request.Context(), req))
}

// PushPage godoc
// PUT /api/v1/page?url=<page url>
//
// The body is the rendered HTML of the current page. It replaces the page the
// next trigger runs against.
func (h *Handler) PushPage(c *gin.Context) {
	p, err := h.loader.Load(c.Request.Context(), extracthtml.Input{
		Stdin: c.Request.Body,
		URL:   c.Query("url"),
	})
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, extracthtml.ErrNoInput) {
			code = http.StatusUnprocessableEntity
		}
		Err(c, gin.H{"error": err.Error(), "code": code})
		return
	}
	h.page.Set(p)
	Ok(c, gin.H{"url": p.URL})
}

// Export godoc
// GET /api/v1/export/:format
func (h *Handler) Export(c *gin.Context) {
	f, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		Err(c, gin.H{"error": err.Error(), "code": http.StatusBadRequest})
		return
	}
	snap, err := h.store.Load(c.Request.Context())
	if err != nil {
		Err(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, snap, f); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			Err(c, gin.H{"error": err.Error(), "code": http.StatusNotFound})
			return
		}
		Err(c, err)
		return
	}

	if f != export.Print {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(f, h.now())))
	}
	c.Data(http.StatusOK, export.ContentType(f), buf.Bytes())
}

// Notification godoc
// GET /api/v1/notification
func (h *Handler) Notification(c *gin.Context) {
	if h.notices == nil {
		Ok(c, nil)
		return
	}
	n, ok := h.notices.Current()
	if !ok {
		Ok(c, nil)
		return
	}
	Ok(c, gin.H{"notice": n, "html": notify.RenderHTML(n)})
}
