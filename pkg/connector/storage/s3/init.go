package s3

import (
	"context"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/registry"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
)

func init() {
	_ = registry.Register(registry.StoreInfo{
		Scheme:      location.SchemeS3,
		Description: "Amazon S3 (BigQuery Omni exports)",
	}, func(ctx context.Context, cfg registry.StoreConfig) (core.ObjectStore, error) {
		return New(ctx, cfg.Logger, cfg.Region)
	})
}
