package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/tap-bigquery/pkg/config"
	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/protocol"
	"github.com/ajitpratap0/tap-bigquery/pkg/tap"

	// Object stores for batch mode
	_ "github.com/ajitpratap0/tap-bigquery/pkg/connector/storage/gcs"
	_ "github.com/ajitpratap0/tap-bigquery/pkg/connector/storage/s3"
)

type options struct {
	configs     []string
	catalogPath string
	statePath   string
	discover    bool
	about       bool
	logLevel    string
	metricsAddr string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var opts options
	root := &cobra.Command{
		Use:   tap.Name,
		Short: "Singer tap for BigQuery",
		Long: `tap-bigquery discovers BigQuery tables and views and emits them as Singer
messages on stdout. Rows are read directly, or exported to a gs:// or s3://
bucket with EXPORT DATA when google_storage_bucket is configured.

Example:
  tap-bigquery --config config.yml --discover > catalog.json
  tap-bigquery --config config.yml --catalog catalog.json --state state.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	root.Flags().StringArrayVarP(&opts.configs, "config", "c", nil, "Configuration file (YAML or JSON). Repeat to merge several files")
	root.Flags().BoolVar(&opts.discover, "discover", false, "Write the catalog to stdout instead of syncing")
	root.Flags().StringVar(&opts.catalogPath, "catalog", "", "Catalog selecting the streams to sync. All streams are synced when omitted")
	root.Flags().StringVar(&opts.statePath, "state", "", "State file from a previous run")
	root.Flags().BoolVar(&opts.about, "about", false, "Print the tap's settings and capabilities")
	root.Flags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9102")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", tap.Name, tap.Version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.about {
		out, err := json.MarshalIndent(tap.About(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(out))
		return err
	}

	cfg, err := config.Load(opts.configs...)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.metricsAddr
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "cli"), zap.String("project", cfg.ProjectID))

	shutdownTracing, err := observability.Init(observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    tap.Name,
		ServiceVersion: tap.Version,
		Writer:         os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		stopMetrics := serveMetrics(addr, log)
		defer stopMetrics()
	}

	t, err := tap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warn("failed to close clients", zap.Error(err))
		}
	}()

	if opts.discover {
		return discover(ctx, t)
	}

	var cat *catalog.Catalog
	if opts.catalogPath != "" {
		if cat, err = catalog.Load(opts.catalogPath); err != nil {
			return err
		}
	}
	state, err := protocol.ReadState(opts.statePath)
	if err != nil {
		return err
	}

	start := time.Now()
	err = t.Sync(ctx, cat, protocol.NewWriter(os.Stdout, log), state)
	if err != nil {
		log.Error("sync finished with errors", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("sync completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func discover(ctx context.Context, t *tap.Tap) error {
	cat, err := t.Discover(ctx)
	if err != nil {
		return err
	}
	data, err := cat.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// serveMetrics exposes the default Prometheus registry on addr until the
// returned function is called.
func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
