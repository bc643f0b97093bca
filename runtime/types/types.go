// Package types provides the runtime value types shared by the query layer.
package types

import (
	"encoding/json"
	"time"
)

// Row is a single database row keyed by column name. A value is a plain
// scalar, a nested Row for a to-one relation, or a []Row for a to-many
// relation.
type Row map[string]any

// Clone returns a deep copy of the row, including attached relation rows.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		switch val := v.(type) {
		case Row:
			out[k] = val.Clone()
		case []Row:
			out[k] = CloneRows(val)
		case map[string]any:
			out[k] = Row(val).Clone()
		case []any:
			cp := make([]any, len(val))
			copy(cp, val)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// CloneRows deep-copies a result set.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Timestamp returns the current UTC time in the text form stored in
// created_at/updated_at columns.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ToStoredBool converts a boolean column value to its stored integer form.
// Non-boolean values pass through untouched.
func ToStoredBool(v any) any {
	b, ok := v.(bool)
	if !ok {
		return v
	}
	if b {
		return int64(1)
	}
	return int64(0)
}

// FromStoredBool interprets a stored scalar as a boolean. NULL stays nil and
// values that already are boolean pass through.
func FromStoredBool(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val == "1" || val == "true"
	default:
		return v
	}
}

// ToStoredJSON serializes a structured column value to its text form.
// Strings are assumed pre-serialized and NULL stays nil.
func ToStoredJSON(v any) (any, error) {
	switch v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// FromStoredJSON parses stored JSON text into its structured form. Text that
// does not parse is returned unchanged rather than failing the read.
func FromStoredJSON(v any) any {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return v
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	return parsed
}
