// Package records defines the canonical record shape shared by the extraction
// engine, the merge store and every export format.
//
// A Record is a typed base (identity, display name, object type, extraction
// time, source URL) plus an open-ended map of normalized field names to cleaned
// display strings. The JSON form is flat: extra fields sit next to the base keys.
package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ObjectType is one of the closed set of business record categories.
type ObjectType string

const (
	Leads         ObjectType = "leads"
	Contacts      ObjectType = "contacts"
	Accounts      ObjectType = "accounts"
	Opportunities ObjectType = "opportunities"
	Tasks         ObjectType = "tasks"
)

// ObjectTypes lists every supported object type in display order.
var ObjectTypes = []ObjectType{Leads, Contacts, Accounts, Opportunities, Tasks}

// ErrUnknownObjectType is returned when a string does not name a supported type.
var ErrUnknownObjectType = errors.New("unknown object type")

// Valid reports whether t is one of ObjectTypes.
func (t ObjectType) Valid() bool {
	for _, ot := range ObjectTypes {
		if ot == t {
			return true
		}
	}
	return false
}

func (t ObjectType) String() string { return string(t) }

// ParseObjectType maps an exact type name ("leads", "tasks", ...) to its
// ObjectType. Surrounding whitespace is ignored; case is not.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownObjectType, s)
	}
	return t, nil
}

// Base JSON keys. Extra fields never use these names.
const (
	KeyID          = "id"
	KeyName        = "name"
	KeyObjectType  = "objectType"
	KeyExtractedAt = "extractedAt"
	KeyURL         = "url"
)

// BaseKeys lists the base JSON keys in their canonical order.
var BaseKeys = []string{KeyID, KeyName, KeyObjectType, KeyExtractedAt, KeyURL}

// IsBaseKey reports whether key is reserved for a base field.
func IsBaseKey(key string) bool {
	switch key {
	case KeyID, KeyName, KeyObjectType, KeyExtractedAt, KeyURL:
		return true
	}
	return false
}

// Record is one normalized business record.
type Record struct {
	ID          string
	Name        string
	ObjectType  ObjectType
	ExtractedAt time.Time
	URL         string

	// Fields holds the dynamically discovered fields, keyed by normalized label.
	Fields map[string]string
}

// SetField stores value under key. Empty keys, empty values and keys that
// would shadow a base field are ignored; the return value reports whether the
// field was stored.
func (r *Record) SetField(key, value string) bool {
	if key == "" || value == "" || IsBaseKey(key) {
		return false
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[key] = value
	return true
}

// Field returns the extra field stored under key.
func (r Record) Field(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// FieldKeys returns the extra field names sorted lexically.
func (r Record) FieldKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Merge returns r overlaid with in: non-zero base fields of in replace those of
// r, every extra field of in replaces the same-named field of r, and fields
// present only on r are kept. Neither input is modified.
func (r Record) Merge(in Record) Record {
	out := r.Clone()
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.ObjectType != "" {
		out.ObjectType = in.ObjectType
	}
	if !in.ExtractedAt.IsZero() {
		out.ExtractedAt = in.ExtractedAt
	}
	if in.URL != "" {
		out.URL = in.URL
	}
	for k, v := range in.Fields {
		out.SetField(k, v)
	}
	return out
}

// Value returns the display value of any key, base or extra. ExtractedAt is
// rendered in the same ISO form used by the JSON encoding.
func (r Record) Value(key string) string {
	switch key {
	case KeyID:
		return r.ID
	case KeyName:
		return r.Name
	case KeyObjectType:
		return string(r.ObjectType)
	case KeyExtractedAt:
		if r.ExtractedAt.IsZero() {
			return ""
		}
		return FormatTime(r.ExtractedAt)
	case KeyURL:
		return r.URL
	}
	return r.Fields[key]
}
