// Package bigquery adapts cloud.google.com/go/bigquery to the core
// interfaces: warehouse reflection (core.Inspector), direct row reads
// (core.RowReader) and asynchronous export jobs (core.JobService).
//
// A Source owns one client. It is constructed explicitly by the
// orchestrator and shared by every stream of a run.
package bigquery

import (
	"context"
	"sync"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Config configures a Source.
type Config struct {
	ProjectID string
	// Location pins queries and jobs to a region, e.g. "EU" or
	// "aws-us-east-1". Empty lets the warehouse choose.
	Location string
	Logger   *zap.Logger
}

// Source talks to one BigQuery project.
type Source struct {
	client    *bigquery.Client
	projectID string
	location  string
	logger    *zap.Logger

	mu     sync.Mutex
	tables map[string]*bigquery.TableMetadata
}

var (
	_ core.Inspector  = (*Source)(nil)
	_ core.RowReader  = (*Source)(nil)
	_ core.JobService = (*Source)(nil)
)

// New creates a BigQuery client for cfg.ProjectID authenticated with opts.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Source, error) {
	if cfg.ProjectID == "" {
		return nil, taperrors.New(taperrors.ErrorTypeConfig, "project_id is required")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to create BigQuery client").
			WithDetail("project_id", cfg.ProjectID)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Source{
		client:    client,
		projectID: cfg.ProjectID,
		location:  cfg.Location,
		logger:    log.With(zap.String("component", "bigquery_source"), zap.String("project_id", cfg.ProjectID)),
		tables:    make(map[string]*bigquery.TableMetadata),
	}, nil
}

// ProjectID returns the billing project.
func (s *Source) ProjectID() string {
	return s.projectID
}

// Close releases the client.
func (s *Source) Close() error {
	if err := s.client.Close(); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to close BigQuery client")
	}
	return nil
}
