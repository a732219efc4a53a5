package config

import (
	"path"
	"time"

	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Config is the tap configuration.
type Config struct {
	// ProjectID is the project queries run in and are billed to.
	ProjectID string `mapstructure:"project_id" json:"project_id" yaml:"project_id" validate:"required"`
	// Credentials is inline JSON (string or object) or a key file path.
	Credentials interface{} `mapstructure:"google_application_credentials" json:"google_application_credentials,omitempty" yaml:"google_application_credentials,omitempty"`
	// Bucket enables batch mode.
	Bucket string `mapstructure:"google_storage_bucket" json:"google_storage_bucket,omitempty" yaml:"google_storage_bucket,omitempty"`

	FilterSchemas []string `mapstructure:"filter_schemas" json:"filter_schemas,omitempty" yaml:"filter_schemas,omitempty" validate:"dive,required"`
	FilterTables  []string `mapstructure:"filter_tables" json:"filter_tables,omitempty" yaml:"filter_tables,omitempty" validate:"dive,required"`

	// Location is the BigQuery location jobs run in, e.g. "EU".
	Location string `mapstructure:"location" json:"location,omitempty" yaml:"location,omitempty"`
	// ExportConnection is the connection EXPORT DATA writes through.
	ExportConnection string `mapstructure:"export_connection" json:"export_connection,omitempty" yaml:"export_connection,omitempty"`
	// AWSRegion is used for s3:// buckets.
	AWSRegion string `mapstructure:"aws_region" json:"aws_region,omitempty" yaml:"aws_region,omitempty"`

	MaxParallelStreams int           `mapstructure:"max_parallel_streams" json:"max_parallel_streams" yaml:"max_parallel_streams" validate:"gte=1,lte=64"`
	TempDir            string        `mapstructure:"temp_dir" json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`
	VerifyDownloads    bool          `mapstructure:"verify_downloads" json:"verify_downloads" yaml:"verify_downloads"`
	CancelTimeout      time.Duration `mapstructure:"cancel_timeout" json:"cancel_timeout" yaml:"cancel_timeout" validate:"gte=0"`

	Logging       LoggingConfig       `mapstructure:"logging" json:"logging" yaml:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability" yaml:"observability"`
}

// LoggingConfig configures pkg/logger.
type LoggingConfig struct {
	Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Encoding string `mapstructure:"encoding" json:"encoding" yaml:"encoding" validate:"oneof=json console"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	EnableTracing bool `mapstructure:"enable_tracing" json:"enable_tracing" yaml:"enable_tracing"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9102".
	MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		MaxParallelStreams: 1,
		CancelTimeout:      30 * time.Second,
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks field constraints, the bucket and the table patterns.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid configuration")
	}
	if _, err := c.StorageBucket(); err != nil {
		return err
	}
	for _, p := range c.FilterTables {
		if _, err := path.Match(p, ""); err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid filter_tables pattern").
				WithDetail("pattern", p)
		}
	}
	return nil
}

// BatchMode reports whether a destination bucket is configured.
func (c *Config) BatchMode() bool {
	return c.Bucket != ""
}

// StorageBucket parses Bucket. It returns nil when batch mode is off.
func (c *Config) StorageBucket() (*location.Bucket, error) {
	if c.Bucket == "" {
		return nil, nil
	}
	b, err := location.ParseBucket(c.Bucket)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
