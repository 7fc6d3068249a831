package extracthtml

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// reLinkRecordID matches "/r/<Type>/<id>" in a record link.
	reLinkRecordID = regexp.MustCompile(`/r/[A-Za-z0-9]+/([A-Za-z0-9]{15,18})`)

	// rePathRecordID matches the first 15–18 character alphanumeric path
	// segment in a page URL.
	rePathRecordID = regexp.MustCompile(`/([a-zA-Z0-9]{15,18})/`)
)

// ResolveHref resolves href against base, returning an absolute URL string.
// If href is invalid, it is returned unchanged.
func ResolveHref(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// RecordIDFromLink extracts a platform record id from a record link address.
func RecordIDFromLink(href string) (string, bool) {
	m := reLinkRecordID.FindStringSubmatch(href)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// RecordIDFromURL extracts a platform record id from a detail page URL.
func RecordIDFromURL(pageURL string) (string, bool) {
	m := rePathRecordID.FindStringSubmatch(pageURL)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}
