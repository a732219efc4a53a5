// Package schema maps warehouse column types onto the canonical JSON
// Schema tree carried by catalog streams.
//
// ColumnType is a closed variant over scalars, arrays and records.
// Translate walks it and returns a Node with the same shape:
//
//	col := schema.Record(
//	    schema.Field{Name: "id", Type: schema.Scalar(schema.ScalarInteger, "INT64")},
//	    schema.Field{Name: "tags", Type: schema.Array(schema.Scalar(schema.ScalarString, "STRING"))},
//	)
//	node := schema.Translate(col)
package schema

import (
	"fmt"

	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// ColumnKind discriminates the ColumnType variant.
type ColumnKind int

const (
	// KindScalar is a leaf value
	KindScalar ColumnKind = iota
	// KindArray is a repeated value
	KindArray
	// KindRecord is a nested struct with named fields
	KindRecord
)

func (k ColumnKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ScalarKind classifies scalar column types.
type ScalarKind string

const (
	ScalarString  ScalarKind = "string"
	ScalarInteger ScalarKind = "integer"
	ScalarFloat   ScalarKind = "float"
	// ScalarOther passes the warehouse's native type name through to
	// PassThrough.
	ScalarOther ScalarKind = "other"
)

// ColumnType describes the type of a warehouse column. Exactly one of the
// variant fields is meaningful, selected by Kind.
type ColumnType struct {
	Kind ColumnKind

	// Scalar and Native are set for KindScalar. Native is the warehouse's
	// own type name, e.g. "INT64" or "TIMESTAMP".
	Scalar ScalarKind
	Native string

	// Elem is set for KindArray.
	Elem *ColumnType

	// Fields is set for KindRecord, in declaration order.
	Fields []Field
}

// Field is a named member of a record type.
type Field struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Scalar returns a scalar column type.
func Scalar(kind ScalarKind, native string) ColumnType {
	return ColumnType{Kind: KindScalar, Scalar: kind, Native: native}
}

// Other returns a pass-through scalar carrying the native type name.
func Other(native string) ColumnType {
	return Scalar(ScalarOther, native)
}

// Array returns an array column type of elem.
func Array(elem ColumnType) ColumnType {
	return ColumnType{Kind: KindArray, Elem: &elem}
}

// Record returns a record column type with the given fields.
func Record(fields ...Field) ColumnType {
	return ColumnType{Kind: KindRecord, Fields: fields}
}

// Validate checks that record field names are unique at every nesting level
// and that array types carry an element type.
func (c ColumnType) Validate() error {
	switch c.Kind {
	case KindScalar:
		return nil
	case KindArray:
		if c.Elem == nil {
			return taperrors.New(taperrors.ErrorTypeValidation, "array type has no element type")
		}
		return c.Elem.Validate()
	case KindRecord:
		seen := make(map[string]struct{}, len(c.Fields))
		for _, f := range c.Fields {
			if _, dup := seen[f.Name]; dup {
				return taperrors.Newf(taperrors.ErrorTypeValidation, "duplicate record field %q", f.Name).
					WithDetail("field", f.Name)
			}
			seen[f.Name] = struct{}{}
			if err := f.Type.Validate(); err != nil {
				return taperrors.Wrap(err, taperrors.ErrorTypeValidation, "invalid field "+f.Name)
			}
		}
		return nil
	default:
		return taperrors.Newf(taperrors.ErrorTypeValidation, "unknown column kind %d", int(c.Kind))
	}
}

// String renders the type in warehouse DDL form, e.g. ARRAY<STRUCT<a INT64>>.
func (c ColumnType) String() string {
	switch c.Kind {
	case KindArray:
		if c.Elem == nil {
			return "ARRAY<?>"
		}
		return "ARRAY<" + c.Elem.String() + ">"
	case KindRecord:
		s := "STRUCT<"
		for i, f := range c.Fields {
			if i > 0 {
				s += ", "
			}
			s += f.Name + " " + f.Type.String()
		}
		return s + ">"
	default:
		if c.Native != "" {
			return c.Native
		}
		return string(c.Scalar)
	}
}
