package bigquery

import (
	"context"
	"errors"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// SchemaNames lists the project's datasets.
func (s *Source) SchemaNames(ctx context.Context) ([]string, error) {
	it := s.client.Datasets(ctx)

	var names []string
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to list datasets")
		}
		names = append(names, ds.DatasetID)
	}
	return names, nil
}

// ObjectNames lists the tables and views of a dataset. Views and
// materialized views are flagged; external tables and snapshots are
// reported as tables.
func (s *Source) ObjectNames(ctx context.Context, schemaName string) ([]core.ObjectName, error) {
	it := s.client.Dataset(schemaName).Tables(ctx)

	var objects []core.ObjectName
	for {
		t, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to list tables").
				WithDetail("dataset", schemaName)
		}

		md, err := s.tableMetadata(ctx, schemaName, t.TableID)
		if err != nil {
			return nil, err
		}
		objects = append(objects, core.ObjectName{
			Name:   t.TableID,
			IsView: md.Type == bigquery.ViewTable || md.Type == bigquery.MaterializedView,
		})
	}
	return objects, nil
}

// Columns returns the top-level columns of a table. Nested fields are part
// of their parent's record type.
func (s *Source) Columns(ctx context.Context, schemaName, table string) ([]core.Column, error) {
	md, err := s.tableMetadata(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	return ColumnsFromSchema(md.Schema), nil
}

// PrimaryKey returns the table's unenforced primary key columns.
func (s *Source) PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error) {
	md, err := s.tableMetadata(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	if md.TableConstraints == nil || md.TableConstraints.PrimaryKey == nil {
		return nil, nil
	}
	return md.TableConstraints.PrimaryKey.Columns, nil
}

// Indexes returns nothing: BigQuery has no unique indexes.
func (s *Source) Indexes(ctx context.Context, schemaName, table string) ([]core.Index, error) {
	return nil, nil
}

// tableMetadata fetches table metadata once per run.
func (s *Source) tableMetadata(ctx context.Context, schemaName, table string) (*bigquery.TableMetadata, error) {
	key := schemaName + "." + table

	s.mu.Lock()
	md, ok := s.tables[key]
	s.mu.Unlock()
	if ok {
		return md, nil
	}

	md, err := s.client.Dataset(schemaName).Table(table).Metadata(ctx)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to read table metadata").
			WithDetail("table", key)
	}
	s.logger.Debug("table metadata loaded",
		zap.String("table", key),
		zap.Int("columns", len(md.Schema)),
		zap.String("type", string(md.Type)))

	s.mu.Lock()
	s.tables[key] = md
	s.mu.Unlock()
	return md, nil
}
