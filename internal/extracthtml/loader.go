package extracthtml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoInput is returned when neither a snapshot path nor stdin was given, or
// the snapshot is empty.
var ErrNoInput = errors.New("no page snapshot to read")

// DefaultMaxSnapshotBytes caps a single snapshot read.
const DefaultMaxSnapshotBytes = 32 << 20

// Input describes where a rendered page snapshot comes from.
type Input struct {
	// Path, if provided, is read from disk.
	Path string

	// Stdin is used when Path is empty.
	Stdin io.Reader

	// URL is the address the snapshot was rendered from. When empty it is
	// discovered from the snapshot itself (see DiscoverURL).
	URL string
}

// Loader reads saved page snapshots. It never touches the network.
type Loader struct {
	maxBytes int64
}

// NewLoader creates a Loader. maxBytes <= 0 selects DefaultMaxSnapshotBytes.
func NewLoader(maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSnapshotBytes
	}
	return &Loader{maxBytes: maxBytes}
}

// Load reads the snapshot described by input and parses it into a Page.
func (l *Loader) Load(ctx context.Context, input Input) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	var (
		r      io.Reader
		source string
	)
	switch {
	case strings.TrimSpace(input.Path) != "":
		f, err := os.Open(input.Path)
		if err != nil {
			return Page{}, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		r, source = f, input.Path
	case input.Stdin != nil:
		r, source = input.Stdin, "stdin"
	default:
		return Page{}, ErrNoInput
	}

	b, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", source, err)
	}
	if int64(len(b)) > l.maxBytes {
		return Page{}, fmt.Errorf("read %s: snapshot exceeds %d bytes", source, l.maxBytes)
	}
	if strings.TrimSpace(string(b)) == "" {
		return Page{}, ErrNoInput
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", source, err)
	}

	pageURL := strings.TrimSpace(input.URL)
	if pageURL == "" {
		pageURL = DiscoverURL(doc)
	}
	return Page{URL: pageURL, Doc: doc}, nil
}

// DiscoverURL recovers the page address from a saved snapshot: the canonical
// link, then og:url, then the document base. It returns "" when none is set.
func DiscoverURL(doc *goquery.Document) string {
	candidates := []struct {
		selector string
		attr     string
	}{
		{`link[rel="canonical"]`, "href"},
		{`meta[property="og:url"]`, "content"},
		{"base[href]", "href"},
	}
	for _, p := range candidates {
		if v := strings.TrimSpace(doc.Find(p.selector).First().AttrOr(p.attr, "")); v != "" {
			return v
		}
	}
	return ""
}
