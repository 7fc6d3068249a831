package extracthtml

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"crmextract/internal/records"
)

// DetectObjectType decides which object type the page shows.
//
// The URL is checked first, case-insensitively, against the configured path
// segments in order. Only when the URL is inconclusive does the page content
// get a say, and then only for tasks: task search results and task list pages
// do not carry a task segment in their URL.
//
// ok=false means the page is not eligible for extraction. That is the normal
// outcome for most pages and not an error.
func (s Selectors) DetectObjectType(p Page) (records.ObjectType, bool) {
	u := strings.ToLower(p.URL)
	for _, ts := range s.TypeSegments {
		if ts.Segment != "" && strings.Contains(u, strings.ToLower(ts.Segment)) {
			return ts.ObjectType, true
		}
	}

	if p.Doc == nil {
		return "", false
	}

	body := s.visibleText(p.Doc.Find("body"))
	for _, marker := range s.TaskBodyMarkers {
		if marker != "" && strings.Contains(body, marker) {
			return records.Tasks, true
		}
	}

	if s.TaskHeaderMarker != "" {
		header, _ := s.TaskHeaders.First(p.Doc.Selection)
		if header.Length() > 0 && strings.Contains(header.Text(), s.TaskHeaderMarker) {
			return records.Tasks, true
		}
	}

	return "", false
}

// visibleText is the text of sel without the elements listed in HiddenText,
// close to what a browser would render for it.
func (s Selectors) visibleText(sel *goquery.Selection) string {
	c := sel.Clone()
	for _, h := range s.HiddenText {
		if h != "" {
			c.Find(h).Remove()
		}
	}
	return c.Text()
}
