package extracthtml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirResult is the extraction outcome of one snapshot file.
type DirResult struct {
	File   string // base name
	URL    string
	Result Result
}

// ExtractDir runs the extractor over every snapshot file in dir and hands each
// outcome to fn.
//
// Behavior:
//   - stable ordering by filename
//   - subdirectories are not descended into
//   - unreadable/unparseable files are skipped
//   - a non-nil error from fn stops the walk and is returned
//
// It returns the number of files handed to fn.
func (e *Extractor) ExtractDir(ctx context.Context, dir string, fn func(DirResult) error) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	l := NewLoader(0)
	n := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		p, err := l.Load(ctx, Input{Path: filepath.Join(dir, ent.Name())})
		if err != nil {
			continue
		}

		n++
		if err := fn(DirResult{File: ent.Name(), URL: p.URL, Result: e.Extract(p)}); err != nil {
			return n, err
		}
	}
	return n, nil
}
