// Package core defines the interfaces between the extraction core and the
// warehouse, object storage and output layers.
//
// The BigQuery adapter implements Inspector, RowReader and JobService; the
// storage packages implement ObjectStore; the Singer protocol writer
// implements RecordWriter and ManifestPublisher. Tests substitute fakes.
package core

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/ajitpratap0/tap-bigquery/pkg/manifest"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
)

// ObjectName is a table or view returned by warehouse reflection.
type ObjectName struct {
	Name   string
	IsView bool
}

// Column is a reflected column.
type Column struct {
	Name     string
	Type     schema.ColumnType
	Nullable bool
}

// Index is a reflected index or unique constraint.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Inspector reflects warehouse structure. It never returns data rows.
type Inspector interface {
	// SchemaNames lists the accessible schemas (datasets).
	SchemaNames(ctx context.Context) ([]string, error)
	// ObjectNames lists the tables and views of a schema.
	ObjectNames(ctx context.Context, schemaName string) ([]ObjectName, error)
	// Columns lists the columns of a table in declaration order.
	Columns(ctx context.Context, schemaName, table string) ([]Column, error)
	// PrimaryKey returns the primary key columns, or none.
	PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error)
	// Indexes lists the table's indexes in enumeration order.
	Indexes(ctx context.Context, schemaName, table string) ([]Index, error)
}

// RowReader executes read queries and yields rows. The sequence is lazy
// and single pass; iterating again re-executes the query.
type RowReader interface {
	Rows(ctx context.Context, sql string) iter.Seq2[models.Record, error]
}

// JobState is the lifecycle state of an export job.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobStatus is a snapshot of a job.
type JobStatus struct {
	State JobState
	// Err is the warehouse-reported failure for JobFailed and JobCancelled.
	Err     error
	Started time.Time
	Ended   time.Time
}

// Job is a handle to a submitted asynchronous query.
type Job interface {
	ID() string
	// Wait blocks until the job is terminal or ctx is done. A non-nil error
	// means the wait itself failed; the job may still be running.
	Wait(ctx context.Context) (*JobStatus, error)
	// Status fetches the current status without blocking on completion.
	Status(ctx context.Context) (*JobStatus, error)
	// Cancel requests cancellation. It does not wait for it to take effect.
	Cancel(ctx context.Context) error
}

// JobService submits asynchronous queries.
type JobService interface {
	Submit(ctx context.Context, sql string) (Job, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the subset of object storage used for export retrieval.
type ObjectStore interface {
	// List returns objects whose key starts with prefix, in listing order.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	// Download writes the object to dst and returns the bytes written.
	Download(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error)
	Delete(ctx context.Context, bucket, key string) error
	Close() error
}

// ManifestPublisher receives one manifest per successful batch export.
type ManifestPublisher interface {
	PublishBatch(ctx context.Context, m manifest.Manifest) error
}

// RecordWriter receives sanitized records in direct mode.
type RecordWriter interface {
	WriteRecord(ctx context.Context, stream string, record models.Record) error
}
