package tap

import (
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/registry"
)

// Name is the executable and service name.
const Name = "tap-bigquery"

// Version is set at build time with -ldflags "-X .../pkg/tap.Version=...".
var Version = "0.1.0"

// Setting describes one configuration key.
type Setting struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description"`
}

// AboutInfo is printed by --about.
type AboutInfo struct {
	Name         string               `json:"name"`
	Version      string               `json:"version"`
	Description  string               `json:"description"`
	Capabilities []string             `json:"capabilities"`
	Stores       []registry.StoreInfo `json:"stores"`
	Settings     []Setting            `json:"settings"`
}

// About describes the tap and its settings.
func About() AboutInfo {
	return AboutInfo{
		Name:         Name,
		Version:      Version,
		Description:  "Singer tap for BigQuery with direct reads and EXPORT DATA batch mode",
		Capabilities: []string{"discover", "catalog", "state", "about", "batch"},
		Stores:       registry.List(),
		Settings: []Setting{
			{Name: "project_id", Kind: "string", Required: true, Description: "Project queries run in and are billed to"},
			{Name: "google_application_credentials", Kind: "string|object", Description: "Service account JSON, inline or as a file path. Application default credentials when unset"},
			{Name: "google_storage_bucket", Kind: "string", Description: "gs:// or s3:// URI that enables batch mode"},
			{Name: "filter_schemas", Kind: "array", Description: "Datasets to discover. All accessible datasets when unset"},
			{Name: "filter_tables", Kind: "array", Description: "Glob patterns matched against table names"},
			{Name: "location", Kind: "string", Description: "BigQuery location for jobs"},
			{Name: "export_connection", Kind: "string", Description: "Connection used by EXPORT DATA, required for s3:// buckets"},
			{Name: "aws_region", Kind: "string", Description: "Region of an s3:// bucket"},
			{Name: "max_parallel_streams", Kind: "integer", Description: "Streams synced at the same time"},
			{Name: "temp_dir", Kind: "string", Description: "Parent directory for downloaded export files"},
			{Name: "verify_downloads", Kind: "boolean", Description: "Decompress downloaded files once to check them"},
			{Name: "cancel_timeout", Kind: "duration", Description: "Time allowed for cancelling an abandoned export job"},
			{Name: "logging.level", Kind: "string", Description: "debug, info, warn or error"},
			{Name: "logging.encoding", Kind: "string", Description: "json or console"},
			{Name: "observability.enable_tracing", Kind: "boolean", Description: "Write spans to stderr"},
			{Name: "observability.metrics_addr", Kind: "string", Description: "Address serving Prometheus metrics"},
		},
	}
}
