package domain

import "slices"

// Kind distinguishes time-series reading sources from station master data.
type Kind string

const (
	KindReading Kind = "reading"
	KindMaster  Kind = "master"
)

// Default envelope keys holding the record array in upstream responses.
const (
	ReadingEnvelopeKey = "content"
	MasterEnvelopeKey  = "data"
)

// Column names with fixed meaning in destination tables.
const (
	IDColumn     = "uuid"
	SourceColumn = "source"
)

// DefaultMasterTable is where station master data lands unless overridden.
const DefaultMasterTable = "rtdas_master"

// SourceDescriptor is the static definition of one upstream source.
type SourceDescriptor struct {
	Name     string
	Kind     Kind
	Endpoint string
	Username string
	Password string

	// Destination is the target table, optionally schema-qualified.
	Destination string

	// Fields are required; a record missing any of them is rejected.
	Fields []string
	// OptionalFields are copied when present and written as NULL otherwise.
	OptionalFields []string
	// ConflictKeys form the natural key enforced by the destination.
	ConflictKeys []string

	// Label is written to the source column of master destinations.
	Label       string
	EnvelopeKey string
}

// DefaultConflictKeys returns the natural key used when none is configured.
func DefaultConflictKeys(k Kind) []string {
	if k == KindMaster {
		return []string{"stationID"}
	}
	return []string{"stationID", "inputDate"}
}

// DefaultEnvelopeKey returns the response key used when none is configured.
func DefaultEnvelopeKey(k Kind) string {
	if k == KindMaster {
		return MasterEnvelopeKey
	}
	return ReadingEnvelopeKey
}

// Columns lists destination columns in the order values are bound.
func (s SourceDescriptor) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+len(s.OptionalFields)+1)
	if s.Kind == KindReading {
		cols = append(cols, IDColumn)
	}
	cols = append(cols, s.Fields...)
	cols = append(cols, s.OptionalFields...)
	if s.Kind == KindMaster && s.Label != "" {
		cols = append(cols, SourceColumn)
	}
	return cols
}

// IsConflictKey reports whether col is part of the natural key.
func (s SourceDescriptor) IsConflictKey(col string) bool {
	return slices.Contains(s.ConflictKeys, col)
}
