package bigquery

import (
	"math"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
)

func TestColumnsFromSchema(t *testing.T) {
	s := bigquery.Schema{
		{Name: "id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "name", Type: bigquery.StringFieldType},
		{Name: "price", Type: bigquery.NumericFieldType},
		{Name: "ratio", Type: bigquery.FloatFieldType},
		{Name: "active", Type: bigquery.BooleanFieldType},
		{Name: "tags", Type: bigquery.StringFieldType, Repeated: true},
		{Name: "address", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
			{Name: "city", Type: bigquery.StringFieldType, Required: true},
			{Name: "geo", Type: bigquery.RecordFieldType, Repeated: true, Schema: bigquery.Schema{
				{Name: "lat", Type: bigquery.FloatFieldType},
			}},
		}},
	}

	cols := ColumnsFromSchema(s)
	require.Len(t, cols, 7)

	assert.Equal(t, core.Column{Name: "id", Type: schema.Scalar(schema.ScalarInteger, "INT64"), Nullable: false}, cols[0])
	assert.Equal(t, core.Column{Name: "name", Type: schema.Scalar(schema.ScalarString, "STRING"), Nullable: true}, cols[1])
	assert.Equal(t, schema.Scalar(schema.ScalarFloat, "NUMERIC"), cols[2].Type)
	assert.Equal(t, schema.Scalar(schema.ScalarFloat, "FLOAT64"), cols[3].Type)
	assert.Equal(t, schema.Other("BOOLEAN"), cols[4].Type)

	assert.Equal(t, schema.Array(schema.Scalar(schema.ScalarString, "STRING")), cols[5].Type)
	assert.False(t, cols[5].Nullable)

	expected := schema.Record(
		schema.Field{Name: "city", Type: schema.Scalar(schema.ScalarString, "STRING"), Nullable: false},
		schema.Field{Name: "geo", Type: schema.Array(schema.Record(
			schema.Field{Name: "lat", Type: schema.Scalar(schema.ScalarFloat, "FLOAT64"), Nullable: true},
		)), Nullable: false},
	)
	assert.Equal(t, expected, cols[6].Type)
	assert.True(t, cols[6].Nullable)
}

func TestNormalizeRow(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500, time.FixedZone("X", 3600))
	row := map[string]bigquery.Value{
		"s":      "jam",
		"i":      int64(7),
		"f":      0.0,
		"inf":    math.Inf(1),
		"null":   nil,
		"num":    big.NewRat(5, 2),
		"ts":     ts,
		"date":   civil.Date{Year: 2024, Month: 3, Day: 1},
		"time":   civil.Time{Hour: 9, Minute: 5, Second: 1},
		"bytes":  []byte("hi"),
		"nested": map[string]bigquery.Value{"v": []bigquery.Value{1.0, map[string]bigquery.Value{"x": nil}}},
	}

	out := normalizeRow(row)

	assert.Equal(t, "jam", out["s"])
	assert.Equal(t, int64(7), out["i"])
	assert.Equal(t, 0.0, out["f"])
	assert.True(t, math.IsInf(out["inf"].(float64), 1))
	assert.Contains(t, out, "null")
	assert.Nil(t, out["null"])
	assert.Equal(t, 2.5, out["num"])
	assert.Equal(t, "2024-03-01T11:30:00.0000005Z", out["ts"])
	assert.Equal(t, "2024-03-01", out["date"])
	assert.Equal(t, "09:05:01", out["time"])
	assert.Equal(t, "aGk=", out["bytes"])
	assert.Equal(t, map[string]interface{}{
		"v": []interface{}{1.0, map[string]interface{}{"x": nil}},
	}, out["nested"])
}

func TestConvertStatus(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)

	tests := []struct {
		name  string
		in    *bigquery.JobStatus
		state core.JobState
	}{
		{"pending", &bigquery.JobStatus{State: bigquery.Pending}, core.JobSubmitted},
		{"running", &bigquery.JobStatus{State: bigquery.Running}, core.JobRunning},
		{"done", &bigquery.JobStatus{State: bigquery.Done, Statistics: &bigquery.JobStatistics{StartTime: start, EndTime: end}}, core.JobSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := convertStatus(tt.in)
			assert.Equal(t, tt.state, status.State)
			assert.NoError(t, status.Err)
		})
	}

	done := convertStatus(tests[2].in)
	assert.Equal(t, start, done.Started)
	assert.Equal(t, end, done.Ended)
}
