// Package export renders the stored snapshot for download: raw JSON, a flat
// CSV, an HTML report (document or print view) and its Markdown conversion.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"crmextract/internal/records"
	"crmextract/internal/recordstore"
)

// ErrNothingToExport is returned when the snapshot holds no records.
var ErrNothingToExport = errors.New("no data to export")

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown export format")

// Format names an export rendering.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Doc      Format = "doc"
	Print    Format = "print"
	Markdown Format = "md"
)

// Formats lists every supported format.
var Formats = []Format{JSON, CSV, Doc, Print, Markdown}

// ParseFormat maps a name to a Format. "word" is accepted for Doc.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "word" {
		return Doc, nil
	}
	if lo.Contains(Formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FileName is the suggested download name for f at now.
func FileName(f Format, now time.Time) string {
	ms := now.UnixMilli()
	switch f {
	case JSON, CSV:
		return fmt.Sprintf("crm_data_%d.%s", ms, f)
	case Doc:
		return fmt.Sprintf("crm_report_%d.doc", ms)
	case Markdown:
		return fmt.Sprintf("crm_report_%d.md", ms)
	default:
		return fmt.Sprintf("crm_report_%d.html", ms)
	}
}

// ContentType is the MIME type for f.
func ContentType(f Format) string {
	switch f {
	case JSON:
		return "application/json"
	case CSV:
		return "text/csv"
	case Doc:
		return "application/msword"
	case Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// Write renders snap in format f to w.
func Write(w io.Writer, snap recordstore.Snapshot, f Format) error {
	if snap.Empty() {
		return ErrNothingToExport
	}
	switch f {
	case JSON:
		return writeJSON(w, snap)
	case CSV:
		return writeCSV(w, snap.All())
	case Doc:
		return writeReport(w, snap.All(), false)
	case Print:
		return writeReport(w, snap.All(), true)
	case Markdown:
		return writeMarkdown(w, snap.All())
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func writeJSON(w io.Writer, snap recordstore.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Columns returns the CSV header for recs: base keys first, then the union of
// extra field keys in sorted order.
func Columns(recs []records.Record) []string {
	extra := lo.Uniq(lo.FlatMap(recs, func(r records.Record, _ int) []string {
		return r.FieldKeys()
	}))
	sort.Strings(extra)
	return append(append([]string(nil), records.BaseKeys...), extra...)
}

func writeCSV(w io.Writer, recs []records.Record) error {
	cols := Columns(recs)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(cols))
	for _, r := range recs {
		for i, c := range cols {
			row[i] = r.Value(c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Search returns the records whose JSON form contains term, ignoring case.
// An empty term matches everything.
func Search(recs []records.Record, term string) []records.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return recs
	}
	return lo.Filter(recs, func(r records.Record, _ int) bool {
		b, err := json.Marshal(r)
		if err != nil {
			return false
		}
		return strings.Contains(strings.ToLower(string(b)), term)
	})
}
