package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RawRecord is one untrusted object as returned by a source.
type RawRecord map[string]any

// NormalizedRecord is a validated record ready for persistence.
type NormalizedRecord struct {
	ID     uuid.UUID
	Values map[string]any
}

// Key renders the natural key built from the given columns, e.g. "S1|2024-01-01T00:00".
func (r NormalizedRecord) Key(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprint(r.Values[k])
	}
	return strings.Join(parts, "|")
}

// Value returns the bind value for a destination column.
func (r NormalizedRecord) Value(col string) any {
	if col == IDColumn {
		return r.ID.String()
	}
	return r.Values[col]
}
