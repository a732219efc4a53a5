// Package tap wires the configuration to the warehouse and storage clients
// and runs discovery and sync.
//
// Clients are built once in New and passed explicitly to every stream;
// nothing is cached globally.
package tap

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/tap-bigquery/pkg/config"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/registry"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/sources/bigquery"
	"github.com/ajitpratap0/tap-bigquery/pkg/export"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/query"
	"github.com/ajitpratap0/tap-bigquery/pkg/retrieve"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/stream"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Output receives the Singer messages of a sync. protocol.Writer
// implements it.
type Output interface {
	core.RecordWriter
	core.ManifestPublisher
	WriteSchema(stream string, s *schema.Node, keyProperties []string) error
	WriteState(value interface{}) error
}

// Clients are the warehouse and storage clients a Tap works with. Store
// is only needed in batch mode.
type Clients struct {
	Inspector core.Inspector
	Rows      core.RowReader
	Jobs      core.JobService
	Store     core.ObjectStore
}

// Tap runs discovery and sync for one configuration.
type Tap struct {
	cfg     *config.Config
	bucket  *location.Bucket
	clients Clients
	closers []func() error
	logger  *zap.Logger
}

// New builds the BigQuery source and, in batch mode, the object store for
// the bucket's scheme. Storage packages must be imported for their
// scheme to be available.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Tap, error) {
	if log == nil {
		log = logger.Get()
	}

	opts, err := cfg.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}

	src, err := bigquery.New(ctx, bigquery.Config{
		ProjectID: cfg.ProjectID,
		Location:  cfg.Location,
		Logger:    log,
	}, opts...)
	if err != nil {
		return nil, err
	}
	clients := Clients{Inspector: src, Rows: src, Jobs: src}
	closers := []func() error{src.Close}

	bucket, err := cfg.StorageBucket()
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if bucket != nil {
		store, err := registry.Create(ctx, bucket.Scheme, registry.StoreConfig{
			GoogleOptions: opts,
			Region:        cfg.AWSRegion,
			Logger:        log,
		})
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		clients.Store = store
		closers = append(closers, store.Close)
	}

	t, err := NewWithClients(cfg, clients, log)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	t.closers = closers
	return t, nil
}

// NewWithClients creates a Tap over existing clients.
func NewWithClients(cfg *config.Config, clients Clients, log *zap.Logger) (*Tap, error) {
	if log == nil {
		log = logger.Get()
	}
	bucket, err := cfg.StorageBucket()
	if err != nil {
		return nil, err
	}
	if bucket != nil && (clients.Jobs == nil || clients.Store == nil) {
		return nil, taperrors.New(taperrors.ErrorTypeConfig, "batch mode needs a job service and an object store")
	}

	return &Tap{
		cfg:     cfg,
		bucket:  bucket,
		clients: clients,
		logger:  log.With(zap.String("component", "tap")),
	}, nil
}

// Discover builds the catalog.
func (t *Tap) Discover(ctx context.Context) (*catalog.Catalog, error) {
	b, err := catalog.NewBuilder(t.clients.Inspector, catalog.BuilderConfig{
		FilterSchemas: t.cfg.FilterSchemas,
		FilterTables:  t.cfg.FilterTables,
		Logger:        t.logger,
	})
	if err != nil {
		return nil, err
	}
	return b.Discover(ctx)
}

// Sync extracts every selected stream of cat. A nil catalog is discovered
// and fully selected first. Streams run up to max_parallel_streams at a
// time; a failing stream does not stop the others and all failures are
// returned joined. The given state is written back once all streams ran.
func (t *Tap) Sync(ctx context.Context, cat *catalog.Catalog, out Output, state interface{}) error {
	if cat == nil {
		var err error
		if cat, err = t.Discover(ctx); err != nil {
			return err
		}
		cat.SelectAll()
	}

	selected := cat.Selected()
	if len(selected) == 0 {
		t.logger.Warn("no streams selected")
	}
	t.logger.Info("starting sync",
		zap.Int("streams", len(selected)),
		zap.Bool("batch", t.bucket != nil),
		zap.Int("parallelism", t.cfg.MaxParallelStreams))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(max(t.cfg.MaxParallelStreams, 1))

	for _, desc := range selected {
		g.Go(func() error {
			if err := t.syncStream(ctx, desc, out); err != nil {
				t.logger.Error("stream failed", zap.String("stream", desc.TapStreamID), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := out.WriteState(state); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t *Tap) syncStream(ctx context.Context, desc *catalog.Stream, out Output) (err error) {
	ctx = logger.ContextWithStream(ctx, desc.TapStreamID)
	log := logger.WithContext(ctx, t.logger)

	ctx, span := observability.StartSpan(ctx, "stream.sync", attribute.String("stream", desc.TapStreamID))
	defer func() { span.End(err) }()

	scfg := stream.Config{
		ProjectID: t.cfg.ProjectID,
		Rows:      t.clients.Rows,
		Logger:    log,
	}
	if t.bucket != nil {
		scfg.Bucket = t.bucket
		scfg.Runner = export.NewRunner(t.clients.Jobs, export.Config{
			Stream:        desc.TapStreamID,
			CancelTimeout: t.cfg.CancelTimeout,
			Logger:        log,
		})
		scfg.Retriever = retrieve.New(t.clients.Store, retrieve.Config{
			TempRoot: t.cfg.TempDir,
			Verify:   t.cfg.VerifyDownloads,
			Logger:   log,
		})
		scfg.ExportOptions = query.ExportOptions{Connection: t.cfg.ExportConnection}
		scfg.Publishers = []core.ManifestPublisher{out}
	}

	s, err := stream.New(desc, scfg)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("mode", s.Mode()))

	if err := out.WriteSchema(s.ID(), s.Schema(), desc.KeyProperties); err != nil {
		return err
	}
	return s.Sync(ctx, out)
}

// Close releases the clients New created.
func (t *Tap) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}
