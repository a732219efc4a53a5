// Package s3 implements core.ObjectStore on Amazon S3, the destination of
// BigQuery Omni exports run through an AWS connection.
package s3

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

const (
	defaultPartSize    = 16 * 1024 * 1024
	defaultConcurrency = 4
)

// Store reads and deletes export files in S3 buckets.
type Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	logger     *zap.Logger
}

var _ core.ObjectStore = (*Store)(nil)

// New loads the default AWS configuration chain for region and creates a
// store. An empty region leaves resolution to the chain.
func New(ctx context.Context, log *zap.Logger, region string) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to load AWS configuration")
	}
	return NewFromConfig(cfg, log), nil
}

// NewFromConfig creates a store from an explicit AWS configuration.
func NewFromConfig(cfg aws.Config, log *zap.Logger, optFns ...func(*s3.Options)) *Store {
	if log == nil {
		log = logger.Get()
	}
	client := s3.NewFromConfig(cfg, optFns...)
	return &Store{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = defaultPartSize
			d.Concurrency = defaultConcurrency
		}),
		logger: log.With(zap.String("component", "s3_store")),
	}
}

// List returns the objects under prefix in key order.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var objects []core.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to list S3 objects").
				WithDetail("bucket", bucket).
				WithDetail("prefix", prefix)
		}
		for _, obj := range page.Contents {
			objects = append(objects, core.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	s.logger.Debug("listed objects",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("count", len(objects)))
	return objects, nil
}

// Download fetches the object into dst, in parallel parts for large files.
func (s *Store) Download(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error) {
	n, err := s.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to download S3 object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return n, nil
}

// Delete removes the object. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	var notFound *types.NoSuchKey
	if err != nil && !errors.As(err, &notFound) {
		return taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to delete S3 object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}
