package bigquery

import (
	"encoding/base64"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
)

// ColumnsFromSchema converts a table schema to reflected columns.
func ColumnsFromSchema(s bigquery.Schema) []core.Column {
	cols := make([]core.Column, 0, len(s))
	for _, fs := range s {
		cols = append(cols, core.Column{
			Name:     fs.Name,
			Type:     ColumnType(fs),
			Nullable: nullable(fs),
		})
	}
	return cols
}

// ColumnType maps a field schema to a column type. REPEATED fields become
// arrays of their element type.
func ColumnType(fs *bigquery.FieldSchema) schema.ColumnType {
	elem := elementType(fs)
	if fs.Repeated {
		return schema.Array(elem)
	}
	return elem
}

func elementType(fs *bigquery.FieldSchema) schema.ColumnType {
	switch fs.Type {
	case bigquery.RecordFieldType:
		fields := make([]schema.Field, 0, len(fs.Schema))
		for _, child := range fs.Schema {
			fields = append(fields, schema.Field{
				Name:     child.Name,
				Type:     ColumnType(child),
				Nullable: nullable(child),
			})
		}
		return schema.Record(fields...)
	case bigquery.StringFieldType:
		return schema.Scalar(schema.ScalarString, string(fs.Type))
	case bigquery.IntegerFieldType:
		return schema.Scalar(schema.ScalarInteger, "INT64")
	case bigquery.FloatFieldType:
		return schema.Scalar(schema.ScalarFloat, "FLOAT64")
	case bigquery.NumericFieldType, bigquery.BigNumericFieldType:
		return schema.Scalar(schema.ScalarFloat, string(fs.Type))
	default:
		return schema.Other(string(fs.Type))
	}
}

// nullable reports whether values of the field may be null. Repeated
// fields are never null; an absent array reads as empty.
func nullable(fs *bigquery.FieldSchema) bool {
	return !fs.Required && !fs.Repeated
}

// normalizeRow converts a row loaded as map[string]bigquery.Value into a
// record of plain JSON-compatible values.
func normalizeRow(row map[string]bigquery.Value) models.Record {
	out := make(models.Record, len(row))
	for k, v := range row {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v bigquery.Value) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]bigquery.Value:
		return map[string]interface{}(normalizeRow(val))
	case []bigquery.Value:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case civil.Date:
		return val.String()
	case civil.Time:
		return val.String()
	case civil.DateTime:
		return val.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case *bigquery.IntervalValue:
		if val == nil {
			return nil
		}
		return val.String()
	default:
		return val
	}
}
