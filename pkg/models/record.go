// Package models provides the data structures shared by the extraction
// core. A Record is a plain nested map so that rows decoded from the
// warehouse, rows read back from export files and rows written as Singer
// RECORD messages all share one representation.
package models

// Record maps field names to values. Values are nested Records
// (map[string]interface{}), ordered sequences ([]interface{}) or scalars:
// string, bool, int64, float64, float32 or nil.
//
// A Record is produced fresh per warehouse row and is owned by whoever
// holds it. The sanitizer mutates records in place.
type Record = map[string]interface{}

// Clone returns a deep copy of r. Nested maps and sequences are copied,
// scalars are shared.
func Clone(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Clone(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
