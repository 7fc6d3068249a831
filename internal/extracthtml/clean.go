package extracthtml

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	reLeadingMarker = regexp.MustCompile(`^\*`)
	reTrailingColon = regexp.MustCompile(`:$`)
	reWhitespace    = regexp.MustCompile(`\s+`)
	reEditArtifact  = regexp.MustCompile(`Edit\s+[A-Za-z\s]+$`)
	reNonKeyRun     = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanLabel normalizes a field label: a leading required-field marker and a
// trailing colon are dropped, whitespace runs collapse to one space.
func CleanLabel(label string) string {
	label = reLeadingMarker.ReplaceAllString(strings.TrimSpace(label), "")
	label = reTrailingColon.ReplaceAllString(label, "")
	label = reWhitespace.ReplaceAllString(label, " ")
	return strings.TrimSpace(label)
}

// CleanValue normalizes a field value as rendered text.
//
// The inline-edit affordance renders as a trailing "Edit <Field Name>" label;
// it is stripped, newlines become spaces and the result is NFC-normalized.
func CleanValue(value string) string {
	value = reEditArtifact.ReplaceAllString(value, "")
	value = strings.ReplaceAll(value, "\n", " ")
	return norm.NFC.String(strings.TrimSpace(value))
}

// NormalizeKey turns a cleaned label into a field key: lower-cased, with every
// run of characters outside [a-z0-9] replaced by a single underscore.
//
//	"Close Date"        -> "close_date"
//	"Account Name (HQ)" -> "account_name_hq_"
func NormalizeKey(label string) string {
	return reNonKeyRun.ReplaceAllString(strings.ToLower(label), "_")
}

// strippedText clones sel, removes the interactive and assistive elements
// matched by remove, and returns the remaining text. sel is left untouched.
func strippedText(sel *goquery.Selection, remove []string) string {
	clone := sel.Clone()
	Union(clone, remove).Remove()
	return clone.Text()
}

// validName reports whether name can identify a record: non-empty, at least two
// characters, and not a placeholder token.
func (s Selectors) validName(name string) bool {
	if len([]rune(name)) < 2 {
		return false
	}
	for _, p := range s.NamePlaceholders {
		if name == p {
			return false
		}
	}
	return true
}

// ignoredLabel reports whether a list-view label duplicates information already
// captured elsewhere (the name column, row actions, selection checkboxes).
func (s Selectors) ignoredLabel(label string) bool {
	if len([]rune(label)) <= 1 {
		return true
	}
	for _, ig := range s.IgnoredLabels {
		if ig != "" && strings.Contains(label, ig) {
			return true
		}
	}
	return false
}
