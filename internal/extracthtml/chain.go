package extracthtml

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Chain is a ranked list of CSS selectors.
//
// A chain is tried in order and the first selector that matches anything
// wins, even when a later selector would match an element earlier in the
// document. This keeps "prefer the subject link, fall back to any truncated
// link" style rules explicit.
type Chain []string

// First returns the first element matched by the highest-ranked selector
// that matches under root, and the index of that selector.
//
// When nothing matches it returns an empty selection and -1.
func (c Chain) First(root *goquery.Selection) (*goquery.Selection, int) {
	for i, sel := range c {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if m := root.Find(sel); m.Length() > 0 {
			return m.First(), i
		}
	}
	return root.Slice(0, 0), -1
}

// Union matches all selectors at once and returns the matches in document
// order, each element at most once.
func Union(root *goquery.Selection, selectors []string) *goquery.Selection {
	parts := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return root.Slice(0, 0)
	}
	return root.Find(strings.Join(parts, ", "))
}

// validateSelectors compiles every selector and reports the first invalid one.
//
// goquery silently treats an invalid selector as "matches nothing", which would
// turn a typo in a selector file into a page that never yields records.
func validateSelectors(field string, selectors []string) error {
	for i, s := range selectors {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(s); err != nil {
			return fmt.Errorf("%s[%d] %q: %w", field, i, s, err)
		}
	}
	return nil
}
