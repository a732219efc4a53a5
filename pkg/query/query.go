// Package query synthesizes the read-only SQL issued against the
// warehouse.
//
// Projections are built as a small expression tree from a stream's
// canonical schema and rendered in one place, so nested STRUCT shapes and
// identifier quoting are handled consistently:
//
//	proj := query.Projection(streamSchema, selected)
//	sql := query.ExportStatement(proj, table, pattern.String(), query.ExportOptions{})
package query

import (
	"strings"

	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
)

// Expr is a node of a projection expression tree.
type Expr interface {
	// render writes the expression in SELECT-list form.
	render(b *strings.Builder)
}

// Column references a (possibly nested) column by its path from the row
// root, e.g. ["address", "city"].
type Column struct {
	Path []string
}

func (c Column) render(b *strings.Builder) {
	writePath(b, c.Path)
	if len(c.Path) > 1 {
		b.WriteString(" AS ")
		b.WriteString(QuoteIdentifier(c.Path[len(c.Path)-1]))
	}
}

// Struct rebuilds a record column from its children.
type Struct struct {
	Name   string
	Fields []Expr
}

func (s Struct) render(b *strings.Builder) {
	b.WriteString("STRUCT(")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		f.render(b)
	}
	b.WriteString(") AS ")
	b.WriteString(QuoteIdentifier(s.Name))
}

// Projection builds one expression per selected top-level property of
// root, in schema order. Object properties become Structs listing their
// children by qualified reference, recursively. A nil selection means every
// property.
func Projection(root *schema.Node, selected []string) []Expr {
	var exprs []Expr
	for _, name := range selectedNames(root, selected) {
		child, _ := root.Property(name)
		exprs = append(exprs, project(child, []string{name}))
	}
	return exprs
}

// Columns builds a plain reference to each selected top-level property of
// root, in schema order. Record columns are read whole, so a NULL record
// stays NULL. A nil selection means every property.
func Columns(root *schema.Node, selected []string) []Expr {
	var exprs []Expr
	for _, name := range selectedNames(root, selected) {
		exprs = append(exprs, Column{Path: []string{name}})
	}
	return exprs
}

func selectedNames(root *schema.Node, selected []string) []string {
	if root == nil {
		return nil
	}
	names := root.PropertyNames()
	if selected == nil {
		return names
	}

	keep := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		keep[name] = struct{}{}
	}
	out := names[:0]
	for _, name := range names {
		if _, ok := keep[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func project(node *schema.Node, path []string) Expr {
	if node == nil || node.Shape != schema.ShapeObject || node.Properties.Len() == 0 {
		return Column{Path: path}
	}

	s := Struct{Name: path[len(path)-1]}
	for _, name := range node.PropertyNames() {
		child, _ := node.Property(name)
		childPath := make([]string, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = name
		s.Fields = append(s.Fields, project(child, childPath))
	}
	return s
}

// Render renders a projection list.
func Render(exprs []Expr) string {
	var b strings.Builder
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		e.render(&b)
	}
	return b.String()
}

func writePath(b *strings.Builder, path []string) {
	for i, seg := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(QuoteIdentifier(seg))
	}
}

// QuoteIdentifier quotes an identifier with backticks, escaping embedded
// backslashes and backticks.
func QuoteIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte('`')
	for _, r := range name {
		switch r {
		case '\\', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('`')
	return b.String()
}

// QuoteString renders s as a single-quoted string literal.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
