// Package retrieve downloads the files of a finished export and removes
// them from object storage.
package retrieve

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/compression"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// TempDirPrefix prefixes every local working directory.
const TempDirPrefix = "tap-bigquery-"

// DefaultCleanupTimeout bounds remote cleanup once Retrieve is returning.
const DefaultCleanupTimeout = 2 * time.Minute

// Config configures a Retriever.
type Config struct {
	// TempRoot is where working directories are created. Empty uses
	// os.TempDir.
	TempRoot string
	// Verify decompresses every downloaded file and counts its records.
	Verify         bool
	CleanupTimeout time.Duration
	Logger         *zap.Logger
}

// Retriever moves export files from object storage to local disk.
type Retriever struct {
	store          core.ObjectStore
	tempRoot       string
	verify         bool
	cleanupTimeout time.Duration
	logger         *zap.Logger
}

// New creates a Retriever reading from store.
func New(store core.ObjectStore, cfg Config) *Retriever {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultCleanupTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Retriever{
		store:          store,
		tempRoot:       cfg.TempRoot,
		verify:         cfg.Verify,
		cleanupTimeout: cfg.CleanupTimeout,
		logger:         log.With(zap.String("component", "retriever")),
	}
}

// Retrieve downloads every object matching p, in listing order, into a
// new working directory and returns the local paths. The matching remote
// objects are deleted before Retrieve returns, whatever the outcome. On
// failure the working directory is removed as well.
func (r *Retriever) Retrieve(ctx context.Context, p location.Pattern) (files []string, err error) {
	log := r.logger.With(zap.String("pattern", p.String()))
	ctx, span := observability.StartSpan(ctx, "retrieve", attribute.String("pattern", p.String()))
	defer func() { span.End(err) }()

	dir, err := os.MkdirTemp(r.tempRoot, TempDirPrefix)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to create working directory")
	}

	var listed []core.ObjectInfo
	defer func() { r.cleanup(ctx, p, listed, log) }()
	defer func() {
		if err != nil || len(files) == 0 {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				log.Warn("failed to remove working directory", zap.String("dir", dir), zap.Error(rmErr))
			}
		}
	}()

	listed, err = r.list(ctx, p)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to list export files").
			WithDetail("pattern", p.String())
	}
	if len(listed) == 0 {
		log.Warn("export produced no files")
		return []string{}, nil
	}

	log.Info("downloading export files", zap.Int("files", len(listed)), zap.String("dir", dir))

	files = make([]string, 0, len(listed))
	for _, obj := range listed {
		local := filepath.Join(dir, path.Base(obj.Key))
		if err := r.download(ctx, p, obj.Key, local); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "failed to download export file").
				WithDetail("object", obj.Key)
		}
		files = append(files, local)
	}

	if r.verify {
		if err := r.verifyFiles(files, log); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("files", len(files)))
	log.Info("downloaded export files", zap.Strings("files", files))
	return files, nil
}

func (r *Retriever) list(ctx context.Context, p location.Pattern) ([]core.ObjectInfo, error) {
	objects, err := r.store.List(ctx, p.Bucket, p.Prefix())
	if err != nil {
		return nil, err
	}

	matched := objects[:0:0]
	for _, obj := range objects {
		if p.Match(obj.Key) {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

func (r *Retriever) download(ctx context.Context, p location.Pattern, key, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return err
	}

	n, err := r.store.Download(ctx, p.Bucket, key, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	metrics.FilesRetrieved.WithLabelValues(p.Scheme).Inc()
	metrics.BytesDownloaded.WithLabelValues(p.Scheme).Add(float64(n))
	return nil
}

func (r *Retriever) verifyFiles(files []string, log *zap.Logger) error {
	var total int64
	for _, f := range files {
		n, err := compression.CountLines(f)
		if err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeRetrieval, "downloaded export file is unreadable").
				WithDetail("file", f)
		}
		log.Debug("verified export file", zap.String("file", f), zap.Int64("records", n))
		total += n
	}
	log.Info("verified export files", zap.Int("files", len(files)), zap.Int64("records", total))
	return nil
}

// cleanup re-lists the pattern so that objects written after the first
// listing are removed too. The objects listed earlier are used when the
// second listing fails.
func (r *Retriever) cleanup(ctx context.Context, p location.Pattern, listed []core.ObjectInfo, log *zap.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cleanupTimeout)
	defer cancel()

	objects, err := r.list(cctx, p)
	if err != nil {
		log.Warn("failed to list export files for cleanup", zap.Error(err))
		objects = listed
	}

	deleted := 0
	for _, obj := range objects {
		if err := r.store.Delete(cctx, p.Bucket, obj.Key); err != nil {
			metrics.CleanupFailures.WithLabelValues(p.Scheme).Inc()
			log.Error("failed to delete export file", zap.String("object", obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	if len(objects) > 0 {
		log.Info("cleaned up export files", zap.Int("deleted", deleted), zap.Int("found", len(objects)))
	}
}
