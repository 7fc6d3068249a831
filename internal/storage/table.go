package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTable is the table SQL backends use when Config.Table is empty.
const DefaultTable = "crm_kv"

// Column names shared by every SQL backend.
const (
	ColumnKey       = "key"
	ColumnValue     = "value"
	ColumnUpdatedAt = "updated_at"
)

var reTableIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableName validates a configured table name and returns it, or DefaultTable
// when name is blank.
//
// A name may be schema-qualified with a single dot ("public.crm_kv"). Table
// names end up inside DDL, so anything other than plain identifiers is rejected
// rather than quoted.
func TableName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultTable, nil
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("storage: table %q: at most one schema qualifier allowed", name)
	}
	for _, p := range parts {
		if !reTableIdent.MatchString(p) {
			return "", fmt.Errorf("storage: table %q: invalid identifier %q", name, p)
		}
	}
	return name, nil
}

// SplitQualifiedName splits "schema.table" into its parts. An unqualified name
// returns an empty schema.
func SplitQualifiedName(name string) (schema string, table string) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) != 2 {
		return "", strings.TrimSpace(name)
	}
	return parts[0], parts[1]
}
