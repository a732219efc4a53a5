package schema

import "strings"

// Translate maps a column type onto its canonical schema node. It is total:
// unknown scalars fall back to PassThrough. The returned node has the same
// nesting as c; record properties keep field declaration order.
//
// Nullability of the top-level node is left to the caller. Nested record
// fields take theirs from Field.Nullable; array items are never nullable.
func Translate(c ColumnType) *Node {
	switch c.Kind {
	case KindArray:
		var items *Node
		if c.Elem != nil {
			items = Translate(*c.Elem)
		} else {
			items = &Node{}
		}
		items.Nullable = false
		return NewArray(items, false)

	case KindRecord:
		obj := NewObject(false)
		for _, f := range c.Fields {
			child := Translate(f.Type)
			child.Nullable = f.Nullable
			obj.SetProperty(f.Name, child)
		}
		return obj

	default:
		switch c.Scalar {
		case ScalarString:
			return NewPrimitive(TypeString, "", false)
		case ScalarInteger:
			return NewPrimitive(TypeInteger, "", false)
		case ScalarFloat:
			return NewPrimitive(TypeNumber, "", false)
		default:
			return PassThrough(c.Native)
		}
	}
}

// TranslateColumn translates a top-level column with the warehouse's
// reported nullability.
func TranslateColumn(c ColumnType, nullable bool) *Node {
	n := Translate(c)
	n.Nullable = nullable
	return n
}

// PassThrough is the default mapping for warehouse types without a
// dedicated scalar kind. It never fails; anything unrecognised becomes a
// string.
func PassThrough(native string) *Node {
	base := strings.ToUpper(strings.TrimSpace(native))
	// Parameterised types such as NUMERIC(10, 2) or STRING(64).
	if i := strings.IndexAny(base, "(<"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	switch base {
	case "BOOL", "BOOLEAN":
		return NewPrimitive(TypeBoolean, "", false)
	case "INT64", "INTEGER", "INT", "SMALLINT", "BIGINT", "TINYINT", "BYTEINT":
		return NewPrimitive(TypeInteger, "", false)
	case "FLOAT", "FLOAT64", "NUMERIC", "BIGNUMERIC", "DECIMAL", "BIGDECIMAL":
		return NewPrimitive(TypeNumber, "", false)
	case "TIMESTAMP", "DATETIME":
		return NewPrimitive(TypeString, "date-time", false)
	case "DATE":
		return NewPrimitive(TypeString, "date", false)
	case "TIME":
		return NewPrimitive(TypeString, "time", false)
	case "JSON":
		return &Node{}
	default:
		return NewPrimitive(TypeString, "", false)
	}
}
