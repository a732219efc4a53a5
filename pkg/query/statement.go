package query

import "strings"

// Table is a fully qualified warehouse table.
type Table struct {
	Project string
	Dataset string
	Table   string
}

// String renders the table as a quoted reference.
func (t Table) String() string {
	var parts []string
	if t.Project != "" {
		parts = append(parts, QuoteIdentifier(t.Project))
	}
	parts = append(parts, QuoteIdentifier(t.Dataset), QuoteIdentifier(t.Table))
	return strings.Join(parts, ".")
}

// ExportOptions tunes the EXPORT DATA statement.
type ExportOptions struct {
	// Connection names the external connection used to write to non-Google
	// storage, e.g. "aws-us-east-1.s3-write". Empty for Cloud Storage.
	Connection string
}

// ExportStatement builds an EXPORT DATA statement that writes the projected
// rows of table to uri as gzip-compressed newline-delimited JSON, replacing
// any files already at that location.
func ExportStatement(exprs []Expr, table Table, uri string, opts ExportOptions) string {
	var b strings.Builder
	b.WriteString("EXPORT DATA")
	if opts.Connection != "" {
		b.WriteString(" WITH CONNECTION ")
		b.WriteString(QuoteIdentifier(opts.Connection))
	}
	b.WriteString("\n  OPTIONS (\n")
	b.WriteString("    uri = ")
	b.WriteString(QuoteString(uri))
	b.WriteString(",\n    format = 'JSON',\n    compression = 'GZIP',\n    overwrite = true\n  )\nAS (\n  ")
	b.WriteString(SelectStatement(exprs, table))
	b.WriteString("\n)")
	return b.String()
}

// SelectStatement builds the SELECT over the projection. exprs must not be
// empty; stream.New rejects streams without selected columns.
func SelectStatement(exprs []Expr, table Table) string {
	return "SELECT " + Render(exprs) + " FROM " + table.String()
}
