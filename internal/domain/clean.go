package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SentinelValue is the fault code emitted by upstream telemetry hardware.
const SentinelValue = -99

// Clean validates a raw record against the required fields. A nil, empty or
// sentinel value in any required field rejects the whole record.
func Clean(raw RawRecord, fields []string) (NormalizedRecord, bool) {
	rec := NormalizedRecord{
		ID:     uuid.New(),
		Values: make(map[string]any, len(fields)),
	}
	for _, f := range fields {
		v := raw[f]
		if IsFaulty(v) {
			return NormalizedRecord{}, false
		}
		rec.Values[f] = v
	}
	return rec, true
}

// Clean applies the validator for this source and copies optional fields.
// Faulty optional values are stored as NULL.
func (s SourceDescriptor) Clean(raw RawRecord) (NormalizedRecord, bool) {
	rec, ok := Clean(raw, s.Fields)
	if !ok {
		return rec, false
	}
	for _, f := range s.OptionalFields {
		v := raw[f]
		if IsFaulty(v) {
			v = nil
		}
		rec.Values[f] = v
	}
	if s.Kind == KindMaster && s.Label != "" {
		rec.Values[SourceColumn] = s.Label
	}
	return rec, true
}

// IsFaulty reports whether v is missing, empty or the sentinel value.
// Strings that parse to -99, such as "-99" or "-99.0", also count as the
// sentinel, which is stricter than matching the number alone.
func IsFaulty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		if x == "" {
			return true
		}
		return isSentinelString(x)
	case json.Number:
		return isSentinelString(string(x))
	case float64:
		return x == SentinelValue
	case float32:
		return x == SentinelValue
	case int:
		return x == SentinelValue
	case int64:
		return x == SentinelValue
	case int32:
		return x == SentinelValue
	}
	return false
}

func isSentinelString(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && f == SentinelValue
}
