// Package sanitize removes values that cannot be represented in JSON from
// records before they are serialised.
//
// JSON has no encoding for infinities or NaN. A non-finite float held in a
// map is deleted together with its key; one held in a sequence is dropped
// from the sequence. Nulls and every other value are kept. Dropped values
// are logged as warnings and never fail extraction.
package sanitize

import (
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
)

// Sanitizer repairs records in place. It holds no per-record state and is
// safe for concurrent use on distinct records.
type Sanitizer struct {
	stream string
	logger *zap.Logger
}

// New returns a sanitizer whose metrics are labelled with the given stream
// id. Log lines go to log as is; a nil logger uses the global one.
func New(stream string, log *zap.Logger) *Sanitizer {
	if log == nil {
		log = logger.Get()
	}
	return &Sanitizer{
		stream: stream,
		logger: log.With(zap.String("component", "sanitizer")),
	}
}

// Sanitize removes non-finite floats from r at any depth and returns r.
// The record is modified in place. Calling Sanitize on its own output
// changes nothing.
func (s *Sanitizer) Sanitize(r models.Record) models.Record {
	if r == nil {
		return nil
	}
	s.sanitizeMap(r, "")
	return r
}

func (s *Sanitizer) sanitizeMap(m map[string]interface{}, path string) {
	// keys are snapshotted since entries may be deleted below
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fieldPath := joinPath(path, key)

		switch v := m[key].(type) {
		case map[string]interface{}:
			s.sanitizeMap(v, fieldPath)
		case []interface{}:
			m[key] = s.sanitizeSlice(v, fieldPath)
		default:
			if isNonFinite(v) {
				delete(m, key)
				s.logger.Warn("dropping unsupported value",
					zap.String("path", fieldPath),
					zap.String("value", formatNonFinite(v)))
				metrics.ValuesDropped.WithLabelValues(s.stream, "field").Inc()
			}
		}
	}
}

// sanitizeSlice returns seq without its non-finite elements. A new slice is
// only allocated when something was dropped. Retained maps and nested
// sequences are sanitized afterwards.
func (s *Sanitizer) sanitizeSlice(seq []interface{}, path string) []interface{} {
	dropped := 0
	for _, elem := range seq {
		if isNonFinite(elem) {
			dropped++
		}
	}

	if dropped > 0 {
		kept := make([]interface{}, 0, len(seq)-dropped)
		for _, elem := range seq {
			if !isNonFinite(elem) {
				kept = append(kept, elem)
			}
		}
		s.logger.Warn("dropping unsupported values",
			zap.Int("count", dropped),
			zap.String("path", path))
		metrics.ValuesDropped.WithLabelValues(s.stream, "element").Add(float64(dropped))
		seq = kept
	}

	for i, elem := range seq {
		elemPath := path + "[" + strconv.Itoa(i) + "]"
		switch v := elem.(type) {
		case map[string]interface{}:
			s.sanitizeMap(v, elemPath)
		case []interface{}:
			seq[i] = s.sanitizeSlice(v, elemPath)
		}
	}
	return seq
}

func isNonFinite(v interface{}) bool {
	switch f := v.(type) {
	case float64:
		return math.IsInf(f, 0) || math.IsNaN(f)
	case float32:
		f64 := float64(f)
		return math.IsInf(f64, 0) || math.IsNaN(f64)
	default:
		return false
	}
}

func formatNonFinite(v interface{}) string {
	switch f := v.(type) {
	case float64:
		return strconv.FormatFloat(f, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	default:
		return ""
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
