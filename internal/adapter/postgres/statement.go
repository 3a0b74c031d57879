package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// insertStatement builds the per-record write for src. Reading destinations
// ignore conflicting rows; master destinations overwrite every non-key column.
// Identifiers were validated when the descriptor was loaded.
func insertStatement(src domain.SourceDescriptor) string {
	cols := src.Columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		src.Destination,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(src.ConflictKeys, ", "),
	)

	if src.Kind != domain.KindMaster {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	var updates []string
	for _, c := range cols {
		if src.IsConflictKey(c) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(updates, ", "))
	return b.String()
}

// bindArgs returns the statement arguments for rec in column order.
// JSON numbers are sent as text so PostgreSQL casts them to whatever type
// the destination column has.
func bindArgs(src domain.SourceDescriptor, rec domain.NormalizedRecord) []any {
	cols := src.Columns()
	args := make([]any, len(cols))
	for i, c := range cols {
		v := rec.Value(c)
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		args[i] = v
	}
	return args
}
