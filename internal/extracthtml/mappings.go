package extracthtml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSelectorFile loads a selector override file and merges it over
// DefaultSelectors. The format is chosen by extension: .yaml/.yml or .json.
//
// Every list present in the file replaces the default list wholesale; absent or
// empty lists keep the default. The merged result is validated.
func LoadSelectorFile(path string) (Selectors, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors file: %w", err)
	}

	var override Selectors
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &override); err != nil {
			return Selectors{}, fmt.Errorf("parse selectors yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &override); err != nil {
			return Selectors{}, fmt.Errorf("parse selectors json: %w", err)
		}
	default:
		return Selectors{}, fmt.Errorf("selectors file %s: unsupported extension", path)
	}

	merged := DefaultSelectors().Merge(override)
	if err := merged.Validate(); err != nil {
		return Selectors{}, fmt.Errorf("selectors file %s: %w", path, err)
	}
	return merged, nil
}

// Merge returns s with every non-empty list or value of o applied on top.
func (s Selectors) Merge(o Selectors) Selectors {
	out := s
	if len(o.TypeSegments) > 0 {
		out.TypeSegments = o.TypeSegments
	}
	pickStrings(&out.TaskBodyMarkers, o.TaskBodyMarkers)
	pickChain(&out.TaskHeaders, o.TaskHeaders)
	pickString(&out.TaskHeaderMarker, o.TaskHeaderMarker)
	pickStrings(&out.HiddenText, o.HiddenText)

	pickStrings(&out.Rows, o.Rows)
	pickString(&out.HeaderCells, o.HeaderCells)
	pickString(&out.HeaderRowClass, o.HeaderRowClass)
	pickChain(&out.IdentityLinks, o.IdentityLinks)
	pickString(&out.RecordIDAttr, o.RecordIDAttr)
	pickStrings(&out.Cells, o.Cells)
	pickStrings(&out.LabelAttrs, o.LabelAttrs)
	pickStrings(&out.IgnoredLabels, o.IgnoredLabels)
	pickStrings(&out.RowInteractive, o.RowInteractive)

	pickChain(&out.DetailNames, o.DetailNames)
	pickStrings(&out.DetailFields, o.DetailFields)
	pickChain(&out.DetailLabels, o.DetailLabels)
	pickChain(&out.DetailValues, o.DetailValues)
	pickStrings(&out.DetailInteractive, o.DetailInteractive)

	pickStrings(&out.NamePlaceholders, o.NamePlaceholders)
	return out
}

func pickStrings(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

func pickChain(dst *Chain, src Chain) {
	if len(src) > 0 {
		*dst = src
	}
}

func pickString(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}

// Validate checks that the configuration can drive an extraction: every
// selector compiles, every type segment names a known type, and the lists the
// engine cannot do without are present.
func (s Selectors) Validate() error {
	var errs []error

	if len(s.TypeSegments) == 0 {
		errs = append(errs, errors.New("type_segments is empty"))
	}
	for i, ts := range s.TypeSegments {
		if strings.TrimSpace(ts.Segment) == "" {
			errs = append(errs, fmt.Errorf("type_segments[%d]: empty segment", i))
		}
		if !ts.ObjectType.Valid() {
			errs = append(errs, fmt.Errorf("type_segments[%d]: unknown object type %q", i, ts.ObjectType))
		}
	}
	if len(s.Rows) == 0 {
		errs = append(errs, errors.New("rows is empty"))
	}
	if len(s.IdentityLinks) == 0 {
		errs = append(errs, errors.New("identity_links is empty"))
	}
	if len(s.DetailNames) == 0 {
		errs = append(errs, errors.New("detail_names is empty"))
	}

	lists := []struct {
		name string
		sels []string
	}{
		{"task_headers", s.TaskHeaders},
		{"hidden_text", s.HiddenText},
		{"rows", s.Rows},
		{"identity_links", s.IdentityLinks},
		{"cells", s.Cells},
		{"row_interactive", s.RowInteractive},
		{"detail_names", s.DetailNames},
		{"detail_fields", s.DetailFields},
		{"detail_labels", s.DetailLabels},
		{"detail_values", s.DetailValues},
		{"detail_interactive", s.DetailInteractive},
	}
	if s.HeaderCells != "" {
		lists = append(lists, struct {
			name string
			sels []string
		}{"header_cells", []string{s.HeaderCells}})
	}
	for _, l := range lists {
		if err := validateSelectors(l.name, l.sels); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
