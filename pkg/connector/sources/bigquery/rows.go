package bigquery

import (
	"context"
	"errors"
	"iter"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Rows runs sql and yields each result row. The query starts when
// iteration begins; a failure ends the sequence with one error.
func (s *Source) Rows(ctx context.Context, sql string) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		q := s.client.Query(sql)
		it, err := q.Read(ctx)
		if err != nil {
			yield(nil, taperrors.Wrap(err, taperrors.ErrorTypeQuery, "failed to run query"))
			return
		}
		s.logger.Debug("query started", zap.Uint64("total_rows", it.TotalRows))

		for {
			var row map[string]bigquery.Value
			err := it.Next(&row)
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(nil, taperrors.Wrap(err, taperrors.ErrorTypeQuery, "failed to read row"))
				return
			}
			if !yield(normalizeRow(row), nil) {
				return
			}
		}
	}
}
