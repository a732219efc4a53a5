// Package gcs implements core.ObjectStore on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Store reads and deletes export files in Cloud Storage buckets.
type Store struct {
	client *storage.Client
	logger *zap.Logger
}

var _ core.ObjectStore = (*Store)(nil)

// New creates a store authenticated with opts.
func New(ctx context.Context, log *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to create GCS client")
	}
	if log == nil {
		log = logger.Get()
	}
	return &Store{
		client: client,
		logger: log.With(zap.String("component", "gcs_store")),
	}, nil
}

// List returns the objects under prefix in lexicographic order.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []core.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to list GCS objects").
				WithDetail("bucket", bucket).
				WithDetail("prefix", prefix)
		}
		objects = append(objects, core.ObjectInfo{Key: attrs.Name, Size: attrs.Size})
	}

	s.logger.Debug("listed objects",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("count", len(objects)))
	return objects, nil
}

// Download copies the object into dst from offset zero.
func (s *Store) Download(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return 0, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to open GCS object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	defer r.Close()

	n, err := io.Copy(io.NewOffsetWriter(dst, 0), r)
	if err != nil {
		return n, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to download GCS object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return n, nil
}

// Delete removes the object. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to delete GCS object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
