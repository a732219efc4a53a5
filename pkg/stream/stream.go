// Package stream extracts one catalog stream, either row by row or through
// a batch export.
//
// Direct mode reads rows through a RowReader and sanitizes each before it
// is handed on. Batch mode runs an EXPORT DATA job into object storage,
// downloads the files, removes them remotely and publishes a manifest. The
// mode is chosen by whether a destination bucket is configured.
package stream

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/export"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/manifest"
	"github.com/ajitpratap0/tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/query"
	"github.com/ajitpratap0/tap-bigquery/pkg/retrieve"
	"github.com/ajitpratap0/tap-bigquery/pkg/sanitize"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Config wires a Stream to its collaborators.
type Config struct {
	// ProjectID qualifies the table in generated queries.
	ProjectID string
	// Rows serves direct mode.
	Rows core.RowReader

	// Bucket enables batch mode when non-nil, together with Runner and
	// Retriever.
	Bucket        *location.Bucket
	Runner        *export.Runner
	Retriever     *retrieve.Retriever
	ExportOptions query.ExportOptions
	Publishers    []core.ManifestPublisher

	// Logger is used as given and should already carry the stream id, as
	// tap.Sync arranges.
	Logger *zap.Logger
}

// Stream extracts one catalog entry. A Stream is used by one goroutine.
type Stream struct {
	desc   *catalog.Stream
	schema *schema.Node
	table  query.Table

	rows core.RowReader

	bucket        *location.Bucket
	runner        *export.Runner
	retriever     *retrieve.Retriever
	exportOptions query.ExportOptions
	publishers    []core.ManifestPublisher

	sanitizer *sanitize.Sanitizer
	logger    *zap.Logger
}

// New creates a Stream for desc.
func New(desc *catalog.Stream, cfg Config) (*Stream, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	if cfg.Bucket != nil {
		if cfg.Runner == nil || cfg.Retriever == nil {
			return nil, taperrors.New(taperrors.ErrorTypeConfig, "batch mode needs an export runner and a retriever").
				WithDetail("stream", desc.TapStreamID)
		}
	} else if cfg.Rows == nil {
		return nil, taperrors.New(taperrors.ErrorTypeConfig, "direct mode needs a row reader").
			WithDetail("stream", desc.TapStreamID)
	}

	selected := desc.SelectedSchema()
	if len(selected.PropertyNames()) == 0 {
		return nil, taperrors.New(taperrors.ErrorTypeConfig, "stream has no selected columns").
			WithDetail("stream", desc.TapStreamID)
	}

	return &Stream{
		desc:   desc,
		schema: selected,
		table: query.Table{
			Project: cfg.ProjectID,
			Dataset: desc.SchemaName,
			Table:   desc.TableName,
		},
		rows:          cfg.Rows,
		bucket:        cfg.Bucket,
		runner:        cfg.Runner,
		retriever:     cfg.Retriever,
		exportOptions: cfg.ExportOptions,
		publishers:    cfg.Publishers,
		sanitizer:     sanitize.New(desc.TapStreamID, log),
		logger:        log,
	}, nil
}

// ID returns the tap stream id.
func (s *Stream) ID() string {
	return s.desc.TapStreamID
}

// Schema returns the schema of the selected properties.
func (s *Stream) Schema() *schema.Node {
	return s.schema
}

// Mode returns metrics.ModeBatch when a bucket is configured, else
// metrics.ModeDirect.
func (s *Stream) Mode() string {
	if s.bucket != nil {
		return metrics.ModeBatch
	}
	return metrics.ModeDirect
}

// SelectQuery returns the direct mode query. Columns are selected as they
// are; records come back from the row cursor in their native shape.
func (s *Stream) SelectQuery() string {
	return query.SelectStatement(query.Columns(s.schema, nil), s.table)
}

// Pattern returns the export destination. Only valid in batch mode.
func (s *Stream) Pattern() location.Pattern {
	return location.ForStream(*s.bucket, s.desc.FullyQualifiedName())
}

// ExportQuery returns the batch mode EXPORT DATA statement.
func (s *Stream) ExportQuery() string {
	return query.ExportStatement(query.Projection(s.schema, nil), s.table, s.Pattern().String(), s.exportOptions)
}

// Records runs the direct mode query and yields sanitized rows. The
// sequence is single pass; ranging over it again runs the query again. A
// failure ends the sequence with one error.
func (s *Stream) Records(ctx context.Context) iter.Seq2[models.Record, error] {
	sql := s.SelectQuery()
	return func(yield func(models.Record, error) bool) {
		s.logger.Debug("running query", zap.String("sql", sql))
		for row, err := range s.rows.Rows(ctx, sql) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(s.sanitizer.Sanitize(row), nil) {
				return
			}
		}
	}
}

// Export runs the batch path: export, retrieve, then publish the manifest
// to every publisher. Nothing is published unless every file was
// retrieved.
func (s *Stream) Export(ctx context.Context) (m *manifest.Manifest, err error) {
	if s.bucket == nil {
		return nil, taperrors.New(taperrors.ErrorTypeConfig, "no destination bucket configured").
			WithDetail("stream", s.desc.TapStreamID)
	}

	ctx, span := observability.StartSpan(ctx, "stream.export", attribute.String("stream", s.desc.TapStreamID))
	defer func() { span.End(err) }()

	pattern := s.Pattern()
	sql := s.ExportQuery()
	s.logger.Info("running export job",
		zap.String("table", s.desc.FullyQualifiedName()),
		zap.String("destination", pattern.String()))
	s.logger.Debug("export query", zap.String("sql", sql))

	if _, err := s.runner.Run(ctx, sql); err != nil {
		return nil, err
	}

	files, err := s.retriever.Retrieve(ctx, pattern)
	if err != nil {
		return nil, err
	}

	m, err = manifest.New(s.desc.TapStreamID, files)
	if err != nil {
		return nil, err
	}

	for _, p := range s.publishers {
		if err := p.PublishBatch(ctx, *m); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to publish manifest").
				WithDetail("stream", s.desc.TapStreamID)
		}
	}
	return m, nil
}

// Sync extracts the stream in its configured mode. In direct mode each
// record goes to w; in batch mode w is unused and the manifest goes to the
// publishers.
func (s *Stream) Sync(ctx context.Context, w core.RecordWriter) error {
	if s.bucket != nil {
		_, err := s.Export(ctx)
		return err
	}

	emitted := metrics.RecordsEmitted.WithLabelValues(s.desc.TapStreamID, metrics.ModeDirect)
	var count int64
	for record, err := range s.Records(ctx) {
		if err != nil {
			return err
		}
		if err := w.WriteRecord(ctx, s.desc.TapStreamID, record); err != nil {
			return err
		}
		emitted.Inc()
		count++
	}
	s.logger.Info("stream synced", zap.Int64("records", count))
	return nil
}
