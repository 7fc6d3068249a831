package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"crmextract/internal/records"
)

// ReportTitle heads every report.
const ReportTitle = "CRM Extractor Report"

type reportRow struct {
	Type    string
	Name    string
	Details []detail
}

type detail struct {
	Key   string
	Value string
}

var reportTmpl = template.Must(template.New("report").Parse(`<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>table{border-collapse:collapse;width:100%;font-family:sans-serif}th,td{border:1px solid #ddd;padding:8px;text-align:left}th{background:#f2f2f2}.tag{font-size:10px;background:#eee;padding:2px 4px;border-radius:3px}</style>
</head><body><h2>{{.Title}}</h2><table><thead><tr><th>Type</th><th>Name</th><th>Details</th></tr></thead><tbody>
{{range .Rows}}<tr><td><span class="tag">{{.Type}}</span></td><td>{{.Name}}</td><td>{{range $i, $d := .Details}}{{if $i}} | {{end}}<b>{{$d.Key}}:</b> {{$d.Value}}{{end}}</td></tr>
{{end}}</tbody></table>{{if .Print}}<script>window.onload=function(){window.print()}</script>{{end}}</body></html>
`))

var typeTitle = cases.Title(language.English)

func reportRows(recs []records.Record) []reportRow {
	rows := make([]reportRow, 0, len(recs))
	for _, r := range recs {
		row := reportRow{Type: typeTitle.String(string(r.ObjectType)), Name: r.Name}
		for _, k := range r.FieldKeys() {
			row.Details = append(row.Details, detail{Key: k, Value: r.Fields[k]})
		}
		rows = append(rows, row)
	}
	return rows
}

func writeReport(w io.Writer, recs []records.Record, printView bool) error {
	err := reportTmpl.Execute(w, struct {
		Title string
		Rows  []reportRow
		Print bool
	}{ReportTitle, reportRows(recs), printView})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

func writeMarkdown(w io.Writer, recs []records.Record) error {
	var buf bytes.Buffer
	if err := writeReport(&buf, recs, false); err != nil {
		return err
	}
	md, err := mdConverter.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("convert report to markdown: %w", err)
	}
	if _, err := io.WriteString(w, strings.TrimSpace(md)+"\n"); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}
