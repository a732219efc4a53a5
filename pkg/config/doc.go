// Package config loads and validates the tap configuration.
//
// # Sources
//
// Settings are merged in order from the files given to Load, then
// overridden by TAP_BIGQUERY_* environment variables. Nested keys use an
// underscore, so logging.level is TAP_BIGQUERY_LOGGING_LEVEL. Files may be
// JSON or YAML and may reference the environment with ${VAR_NAME}:
//
//	project_id: my-project
//	google_application_credentials: ${GOOGLE_CREDENTIALS_JSON}
//	google_storage_bucket: gs://exports/tap-bigquery
//	filter_schemas: [sales]
//	filter_tables: ["order*"]
//
// # Credentials
//
// google_application_credentials may hold the service account JSON as a
// string or an object, or a path to a key file. Empty means application
// default credentials. ClientOptions turns it into options for the Google
// Cloud clients.
//
// # Batch mode
//
// Setting google_storage_bucket switches every stream to batch export. The
// bucket may carry a path prefix and an s3:// scheme for BigQuery Omni,
// in which case export_connection names the BigQuery connection allowed to
// write there.
package config
