package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints either outer HTML or text of matches for a selector.
// This is used by the command's "select" debug mode.
func DebugPrintSelector(w io.Writer, doc *goquery.Document, selector string, textOnly bool) error {
	if err := validateSelectors("selector", []string{selector}); err != nil {
		return err
	}

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if textOnly {
			fmt.Fprintln(w, strings.TrimSpace(s.Text()))
			fmt.Fprintln(w)
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			in, _ := s.Html()
			fmt.Fprintln(w, in)
			fmt.Fprintln(w)
			return
		}
		fmt.Fprintln(w, out)
		fmt.Fprintln(w)
	})
	return nil
}

// DebugPrintPlan prints the decisions the extractor makes for p: detected type,
// row count, which rank of each chain hit, and the resulting mode. It is what
// to look at first when a page stops yielding records after a UI release.
func (e *Extractor) DebugPrintPlan(w io.Writer, p Page) {
	fmt.Fprintf(w, "url: %s\n", p.URL)

	ot, ok := e.sel.DetectObjectType(p)
	if !ok {
		fmt.Fprintln(w, "object type: none")
		return
	}
	fmt.Fprintf(w, "object type: %s\n", ot)
	if p.Doc == nil {
		return
	}

	rows := Union(p.Doc.Selection, e.sel.Rows)
	fmt.Fprintf(w, "rows: %d\n", rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		if e.isHeaderRow(row) {
			fmt.Fprintf(w, "  row %d: header\n", i)
			return
		}
		link, rank := e.sel.IdentityLinks.First(row)
		if rank < 0 {
			fmt.Fprintf(w, "  row %d: no identity link\n", i)
			return
		}
		fmt.Fprintf(w, "  row %d: link %q via %s\n", i, strings.TrimSpace(link.Text()), e.sel.IdentityLinks[rank])
	})

	printChainHit(w, "detail name", e.sel.DetailNames, p.Doc.Selection)
	fmt.Fprintf(w, "detail fields: %d\n", Union(p.Doc.Selection, e.sel.DetailFields).Length())

	res := e.Extract(p)
	fmt.Fprintf(w, "mode: %s\n", res.Mode)
	fmt.Fprintf(w, "records: %d\n", len(res.Records))
}

func printChainHit(w io.Writer, label string, c Chain, root *goquery.Selection) {
	m, rank := c.First(root)
	if rank < 0 {
		fmt.Fprintf(w, "%s: no match\n", label)
		return
	}
	fmt.Fprintf(w, "%s: %q via %s\n", label, strings.TrimSpace(m.Text()), c[rank])
}
