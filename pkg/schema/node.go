package schema

import (
	"bytes"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Shape is the structural kind of a Node.
type Shape int

const (
	ShapePrimitive Shape = iota
	ShapeArray
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	default:
		return "primitive"
	}
}

// JSON Schema primitive type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Properties holds object members in declaration order.
type Properties = orderedmap.OrderedMap[string, *Node]

// Node is the canonical schema of a column. It serialises to and from
// JSON Schema with property order preserved. Nodes are built once during
// discovery and must not be modified afterwards.
type Node struct {
	Shape Shape

	// Type is the primitive type name for ShapePrimitive. An empty Type is
	// an untyped node that accepts any JSON value.
	Type   string
	Format string

	Nullable bool

	// Items is set for ShapeArray.
	Items *Node

	// Properties and Required are set for ShapeObject.
	Properties *Properties
	Required   []string
}

// NewPrimitive returns a primitive node.
func NewPrimitive(typ, format string, nullable bool) *Node {
	return &Node{Shape: ShapePrimitive, Type: typ, Format: format, Nullable: nullable}
}

// NewArray returns an array node with the given items.
func NewArray(items *Node, nullable bool) *Node {
	return &Node{Shape: ShapeArray, Items: items, Nullable: nullable}
}

// NewObject returns an object node with no properties.
func NewObject(nullable bool) *Node {
	return &Node{Shape: ShapeObject, Properties: orderedmap.New[string, *Node](), Nullable: nullable}
}

// SetProperty adds or replaces a property, keeping the original position
// when it already exists.
func (n *Node) SetProperty(name string, child *Node) {
	if n.Properties == nil {
		n.Properties = orderedmap.New[string, *Node]()
	}
	n.Properties.Set(name, child)
}

// Property returns the named property.
func (n *Node) Property(name string) (*Node, bool) {
	if n.Properties == nil {
		return nil, false
	}
	return n.Properties.Get(name)
}

// PropertyNames returns the property names in declaration order.
func (n *Node) PropertyNames() []string {
	if n.Properties == nil {
		return nil
	}
	names := make([]string, 0, n.Properties.Len())
	for pair := n.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// IsUntyped reports whether the node accepts any JSON value.
func (n *Node) IsUntyped() bool {
	return n.Shape == ShapePrimitive && n.Type == ""
}

// typeName returns the JSON Schema type keyword for the node.
func (n *Node) typeName() string {
	switch n.Shape {
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	default:
		return n.Type
	}
}

type nodeJSON struct {
	Type       json.RawMessage `json:"type,omitempty"`
	Format     string          `json:"format,omitempty"`
	Items      *Node           `json:"items,omitempty"`
	Properties *Properties     `json:"properties,omitempty"`
	Required   []string        `json:"required,omitempty"`
}

// MarshalJSON renders the node as JSON Schema. Nullable nodes use the
// ["<type>", "null"] form.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{Format: n.Format, Items: n.Items, Required: n.Required}

	if typ := n.typeName(); typ != "" {
		var (
			raw []byte
			err error
		)
		if n.Nullable {
			raw, err = json.Marshal([]string{typ, "null"})
		} else {
			raw, err = json.Marshal(typ)
		}
		if err != nil {
			return nil, err
		}
		out.Type = raw
	}

	if n.Shape == ShapeObject {
		out.Properties = n.Properties
		if out.Properties == nil {
			out.Properties = orderedmap.New[string, *Node]()
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON parses JSON Schema produced by MarshalJSON or by another
// Singer tap. A missing type yields an untyped node.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	types, err := decodeTypes(in.Type)
	if err != nil {
		return err
	}

	*n = Node{Format: in.Format}
	for _, t := range types {
		switch t {
		case "null":
			n.Nullable = true
		case "array":
			n.Shape = ShapeArray
		case "object":
			n.Shape = ShapeObject
		default:
			n.Type = t
		}
	}

	switch n.Shape {
	case ShapeArray:
		n.Items = in.Items
		if n.Items == nil {
			n.Items = &Node{}
		}
	case ShapeObject:
		n.Properties = in.Properties
		if n.Properties == nil {
			n.Properties = orderedmap.New[string, *Node]()
		}
		n.Required = in.Required
	}
	return nil
}

func decodeTypes(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var types []string
		if err := json.Unmarshal(raw, &types); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeValidation, "invalid schema type list")
		}
		return types, nil
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeValidation, "invalid schema type")
	}
	return []string{typ}, nil
}
