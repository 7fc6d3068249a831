package dispatch

import (
	"context"
	"errors"
	"sync"

	"crmextract/internal/extracthtml"
)

// ErrNoPage is returned by CurrentPage before any page was pushed.
var ErrNoPage = errors.New("no page rendered yet")

// PageSource supplies the current rendered document for one trigger.
type PageSource interface {
	Page(ctx context.Context) (extracthtml.Page, error)
}

// StaticPage always returns the same page.
type StaticPage extracthtml.Page

func (p StaticPage) Page(context.Context) (extracthtml.Page, error) {
	return extracthtml.Page(p), nil
}

// SnapshotSource loads a saved snapshot on every trigger, so edits to the
// file between triggers are picked up.
type SnapshotSource struct {
	Loader *extracthtml.Loader
	Input  extracthtml.Input
}

func (s SnapshotSource) Page(ctx context.Context) (extracthtml.Page, error) {
	l := s.Loader
	if l == nil {
		l = extracthtml.NewLoader(0)
	}
	return l.Load(ctx, s.Input)
}

// CurrentPage holds the most recently pushed page. The HTTP surface pushes
// into it; triggers read from it.
type CurrentPage struct {
	mu   sync.RWMutex
	page *extracthtml.Page
}

// Set replaces the current page.
func (c *CurrentPage) Set(p extracthtml.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = &p
}

func (c *CurrentPage) Page(context.Context) (extracthtml.Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.page == nil {
		return extracthtml.Page{}, ErrNoPage
	}
	return *c.page, nil
}
