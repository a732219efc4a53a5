package gcs

import (
	"context"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/registry"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
)

func init() {
	_ = registry.Register(registry.StoreInfo{
		Scheme:      location.SchemeGCS,
		Description: "Google Cloud Storage",
	}, func(ctx context.Context, cfg registry.StoreConfig) (core.ObjectStore, error) {
		return New(ctx, cfg.Logger, cfg.GoogleOptions...)
	})
}
