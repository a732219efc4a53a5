// Package metrics provides Prometheus collectors for the tap.
//
// # Basic Usage
//
//	// Count emitted records
//	metrics.RecordsEmitted.WithLabelValues("sales-orders", "direct").Inc()
//
//	// Time an export job
//	timer := metrics.NewTimer("export")
//	runJob()
//	metrics.ExportJobDuration.WithLabelValues("sales-orders").Observe(timer.Stop().Seconds())
//
// Collectors register with the default registry on package load. The CLI
// serves them with promhttp when --metrics-addr is set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction modes used as the "mode" label.
const (
	ModeDirect = "direct"
	ModeBatch  = "batch"
)

var (
	// RecordsEmitted counts records written as Singer RECORD messages.
	// Labels: stream, mode (direct/batch)
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_records_emitted_total",
			Help: "Total number of records emitted",
		},
		[]string{"stream", "mode"},
	)

	// ValuesDropped counts non-finite floats removed by the sanitizer.
	// Labels: stream, kind (field/element)
	ValuesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_values_dropped_total",
			Help: "Total number of non-finite values dropped from records",
		},
		[]string{"stream", "kind"},
	)

	// ExportJobs counts export jobs by terminal status.
	// Labels: stream, status (succeeded/failed/cancelled/submission_failed/cancel_requested)
	ExportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_export_jobs_total",
			Help: "Total number of export jobs by final status",
		},
		[]string{"stream", "status"},
	)

	// ExportJobDuration observes the warehouse-reported export job runtime.
	ExportJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tap_bigquery_export_job_duration_seconds",
			Help: "Export job duration in seconds",
			Buckets: []float64{
				1,    // small tables
				5,    //
				15,   //
				60,   // 1m
				300,  // 5m
				900,  // 15m
				3600, // 1h
			},
		},
		[]string{"stream"},
	)

	// FilesRetrieved counts export files downloaded from object storage.
	FilesRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_files_retrieved_total",
			Help: "Total number of export files downloaded",
		},
		[]string{"scheme"},
	)

	// BytesDownloaded counts bytes copied from object storage.
	BytesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_bytes_downloaded_total",
			Help: "Total number of bytes downloaded from object storage",
		},
		[]string{"scheme"},
	)

	// CleanupFailures counts remote export objects that could not be deleted.
	CleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_bigquery_cleanup_failures_total",
			Help: "Total number of export objects left behind after cleanup errors",
		},
		[]string{"scheme"},
	)
)

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a timer and starts it immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed time since the timer was created. It may be
// called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
