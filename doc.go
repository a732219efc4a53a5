// Package tapbigquery is a Singer tap that extracts BigQuery tables and
// views.
//
// # Architecture
//
// Discovery reflects datasets through the BigQuery API and builds a Singer
// catalog: every column type is translated into a JSON Schema node and
// every stream carries standard metadata for selection.
//
// Sync runs one of two modes per stream:
//
//  1. Direct: a SELECT of the selected columns is streamed row by row,
//     sanitized and written as RECORD messages.
//
//  2. Batch: when google_storage_bucket is set, an EXPORT DATA job writes
//     gzip-compressed JSON lines to a gs:// or s3:// bucket. The files are
//     downloaded to a temporary directory, removed from the bucket, and
//     announced with a BATCH message.
//
// Abandoned export jobs are cancelled, and exported files are deleted on
// every outcome.
//
// # Quick Start
//
//	tap-bigquery --config config.yml --discover > catalog.json
//	tap-bigquery --config config.yml --catalog catalog.json
//
// A minimal configuration:
//
//	project_id: analytics-prod
//	filter_schemas: [sales]
//	google_storage_bucket: gs://exports/tap
//
// # Packages
//
//   - pkg/schema: column type to JSON Schema translation
//   - pkg/sanitize: non-finite float replacement
//   - pkg/catalog: catalog model and discovery
//   - pkg/query: SELECT and EXPORT DATA synthesis
//   - pkg/export: export job lifecycle
//   - pkg/retrieve: export file download and cleanup
//   - pkg/stream: per-stream sync in either mode
//   - pkg/tap: client wiring and parallel sync
//
// The cmd/tap-bigquery binary wires these together behind the Singer
// command line.
package tapbigquery
