// Package extracthtml turns a rendered CRM page into normalized records.
//
// The engine is heuristic by nature: it runs against markup it does not
// control, so every lookup goes through configurable selector lists (see
// Selectors) and every record is validated before it is emitted. It never
// fetches anything; callers hand it an already-rendered document.
package extracthtml

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"crmextract/internal/records"

	"github.com/PuerkitoBio/goquery"
)

// Page is a rendered document together with the address it was rendered from.
type Page struct {
	URL string
	Doc *goquery.Document
}

// NewPage parses html into a Page.
func NewPage(html, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	return Page{URL: pageURL, Doc: doc}, nil
}

// Mode reports which layout an extraction used.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeList   Mode = "list"
	ModeDetail Mode = "detail"
)

// Result is the outcome of one extraction run.
//
// Records is empty both when the page is not eligible (ObjectType == "") and
// when the page was eligible but nothing passed validation.
type Result struct {
	ObjectType records.ObjectType
	Mode       Mode
	Records    []records.Record
}

// Extractor runs the extraction heuristics with one selector configuration.
// It holds no per-page state and may be shared.
type Extractor struct {
	sel Selectors
	now func() time.Time
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithClock overrides the clock used for extractedAt and synthetic ids.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExtractor creates an Extractor for sel.
func NewExtractor(sel Selectors, opts ...Option) *Extractor {
	e := &Extractor{sel: sel, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selectors returns the configuration the extractor runs with.
func (e *Extractor) Selectors() Selectors { return e.sel }

// ExtractHTML parses html and extracts it with the default selectors.
func ExtractHTML(html, pageURL string) (Result, error) {
	p, err := NewPage(html, pageURL)
	if err != nil {
		return Result{}, err
	}
	return NewExtractor(DefaultSelectors()).Extract(p), nil
}

// Extract runs detection and extraction against p.
//
// Steps:
//  1. Detect the object type; an undetected page yields an empty Result.
//  2. If the page has row-like elements, try list-view extraction.
//  3. If list view produced nothing (no rows, or rows that all failed
//     validation), fall back to detail-view extraction.
//
// Detail pages often contain a few unrelated row widgets, so list view only
// wins when it yields at least one record.
//
// The clock is read once; every record of the run shares that extractedAt.
func (e *Extractor) Extract(p Page) Result {
	ot, ok := e.sel.DetectObjectType(p)
	if !ok {
		return Result{Mode: ModeNone}
	}
	res := Result{ObjectType: ot, Mode: ModeNone}
	if p.Doc == nil {
		return res
	}

	now := e.now().UTC()
	base, _ := url.Parse(p.URL)

	if rows := Union(p.Doc.Selection, e.sel.Rows); rows.Length() > 0 {
		if recs := e.extractList(rows, ot, p.URL, base, now); len(recs) > 0 {
			res.Mode = ModeList
			res.Records = recs
			return res
		}
	}

	if rec, ok := e.extractDetail(p, ot, now); ok {
		res.Mode = ModeDetail
		res.Records = []records.Record{rec}
	}
	return res
}

// extractList extracts one record per valid row. Rows failing any required
// step contribute nothing.
func (e *Extractor) extractList(rows *goquery.Selection, ot records.ObjectType, pageURL string, base *url.URL, now time.Time) []records.Record {
	var out []records.Record
	rows.Each(func(i int, row *goquery.Selection) {
		if rec, ok := e.extractRow(row, i, ot, pageURL, base, now); ok {
			out = append(out, rec)
		}
	})
	return out
}

func (e *Extractor) extractRow(row *goquery.Selection, index int, ot records.ObjectType, pageURL string, base *url.URL, now time.Time) (records.Record, bool) {
	if e.isHeaderRow(row) {
		return records.Record{}, false
	}

	link, _ := e.sel.IdentityLinks.First(row)
	if link.Length() == 0 {
		return records.Record{}, false
	}

	name := strings.TrimSpace(link.Text())
	if !e.sel.validName(name) {
		return records.Record{}, false
	}

	recordURL := pageURL
	if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
		recordURL = ResolveHref(base, href)
	}

	id := ""
	if e.sel.RecordIDAttr != "" {
		id = strings.TrimSpace(link.AttrOr(e.sel.RecordIDAttr, ""))
	}
	if id == "" {
		if v, ok := RecordIDFromLink(recordURL); ok {
			id = v
		} else {
			id = fmt.Sprintf("row_%d_%d", index, now.UnixMilli())
		}
	}

	rec := records.Record{
		ID:          id,
		Name:        name,
		ObjectType:  ot,
		ExtractedAt: now,
		URL:         recordURL,
	}

	Union(row, e.sel.Cells).Each(func(_ int, cell *goquery.Selection) {
		label := CleanLabel(e.cellLabel(cell))
		if label == "" || e.sel.ignoredLabel(label) {
			return
		}
		value := CleanValue(strippedText(cell, e.sel.RowInteractive))
		if value == "" || value == name {
			return
		}
		rec.SetField(NormalizeKey(label), value)
	})

	return rec, true
}

// isHeaderRow reports whether row is a column-header row.
func (e *Extractor) isHeaderRow(row *goquery.Selection) bool {
	if e.sel.HeaderCells != "" && row.Find(e.sel.HeaderCells).Length() > 0 {
		return true
	}
	return e.sel.HeaderRowClass != "" && row.HasClass(e.sel.HeaderRowClass)
}

// cellLabel returns the first non-empty label attribute of cell.
func (e *Extractor) cellLabel(cell *goquery.Selection) string {
	for _, attr := range e.sel.LabelAttrs {
		if v, ok := cell.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// extractDetail builds the single record of a detail page. ok is false when
// no usable name could be found, whatever fields were discovered.
func (e *Extractor) extractDetail(p Page, ot records.ObjectType, now time.Time) (records.Record, bool) {
	id, ok := RecordIDFromURL(p.URL)
	if !ok {
		id = fmt.Sprintf("temp_%d", now.UnixMilli())
	}

	name := PlaceholderName
	if h, _ := e.sel.DetailNames.First(p.Doc.Selection); h.Length() > 0 {
		if t := strings.TrimSpace(h.Text()); t != "" {
			name = t
		}
	}
	if !e.sel.validName(name) {
		return records.Record{}, false
	}

	rec := records.Record{
		ID:          id,
		Name:        name,
		ObjectType:  ot,
		ExtractedAt: now,
		URL:         p.URL,
	}

	Union(p.Doc.Selection, e.sel.DetailFields).Each(func(_ int, field *goquery.Selection) {
		labelEl, _ := e.sel.DetailLabels.First(field)
		valueEl, _ := e.sel.DetailValues.First(field)
		if labelEl.Length() == 0 || valueEl.Length() == 0 {
			return
		}
		label := CleanLabel(labelEl.Text())
		value := CleanValue(strippedText(valueEl, e.sel.DetailInteractive))
		if label == "" || value == "" {
			return
		}
		rec.SetField(NormalizeKey(label), value)
	})

	return rec, true
}
