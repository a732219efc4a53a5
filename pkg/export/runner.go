// Package export supervises asynchronous export jobs.
//
// Runner.Run submits a query, blocks until the job is terminal and
// guarantees that a job it did not observe finishing is cancelled on the
// way out, whether Run returns normally, with an error or by panic.
package export

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// DefaultCancelTimeout bounds the status check and cancel request issued
// after an interrupted wait.
const DefaultCancelTimeout = 30 * time.Second

// Config configures a Runner.
type Config struct {
	// Stream labels metrics, spans and errors. Logger is expected to carry
	// the stream already.
	Stream        string
	CancelTimeout time.Duration
	Logger        *zap.Logger
}

// Runner runs export jobs for one stream. It is not meant to be used
// concurrently for the same destination.
type Runner struct {
	jobs          core.JobService
	stream        string
	cancelTimeout time.Duration
	logger        *zap.Logger
}

// Result describes a succeeded job.
type Result struct {
	JobID   string
	Started time.Time
	Ended   time.Time
}

// Duration is the warehouse-reported runtime, zero when timestamps are
// missing.
func (r *Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Ended.IsZero() {
		return 0
	}
	return r.Ended.Sub(r.Started)
}

// NewRunner creates a Runner submitting through jobs.
func NewRunner(jobs core.JobService, cfg Config) *Runner {
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = DefaultCancelTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Runner{
		jobs:          jobs,
		stream:        cfg.Stream,
		cancelTimeout: cfg.CancelTimeout,
		logger:        log.With(zap.String("component", "export_runner")),
	}
}

// Run submits sql and waits for the job to finish. Submission failures
// return a submission error and no job is left behind. Jobs ending failed
// or cancelled return a job execution error. When the wait is interrupted,
// typically by ctx, the job is cancelled before Run returns.
func (r *Runner) Run(ctx context.Context, sql string) (result *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "export.run", attribute.String("stream", r.stream))
	defer func() { span.End(err) }()

	job, err := r.jobs.Submit(ctx, sql)
	if err != nil {
		metrics.ExportJobs.WithLabelValues(r.stream, "submission_failed").Inc()
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeSubmission, "export query rejected").
			WithDetail("stream", r.stream)
	}

	log := r.logger.With(zap.String("job_id", job.ID()))
	span.SetAttributes(attribute.String("job_id", job.ID()))
	log.Info("export job submitted")

	finished := false
	defer func() {
		if !finished {
			r.cancelIfActive(ctx, job, log)
		}
	}()

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeJobExecution, "export job wait interrupted").
			WithDetail("stream", r.stream).
			WithDetail("job_id", job.ID())
	}
	if !status.State.Terminal() {
		return nil, taperrors.Newf(taperrors.ErrorTypeInternal, "export job wait returned in state %s", status.State).
			WithDetail("job_id", job.ID())
	}
	finished = true

	metrics.ExportJobs.WithLabelValues(r.stream, string(status.State)).Inc()

	if status.State != core.JobSucceeded {
		cause := status.Err
		if cause == nil {
			cause = taperrors.Newf(taperrors.ErrorTypeJobExecution, "job %s", status.State)
		}
		return nil, taperrors.Wrap(cause, taperrors.ErrorTypeJobExecution, "export job "+string(status.State)).
			WithDetail("stream", r.stream).
			WithDetail("job_id", job.ID())
	}

	result = &Result{JobID: job.ID(), Started: status.Started, Ended: status.Ended}
	metrics.ExportJobDuration.WithLabelValues(r.stream).Observe(result.Duration().Seconds())
	log.Info("export job completed", zap.Duration("duration", result.Duration()))
	return result, nil
}

// cancelIfActive runs on a context detached from ctx so that a cancelled
// caller still reaches the warehouse.
func (r *Runner) cancelIfActive(ctx context.Context, job core.Job, log *zap.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cancelTimeout)
	defer cancel()

	status, err := job.Status(cctx)
	switch {
	case err != nil:
		log.Warn("failed to read export job status, cancelling anyway", zap.Error(err))
	case status.State.Terminal():
		return
	}

	log.Info("cancelling export job")
	if err := job.Cancel(cctx); err != nil {
		log.Error("failed to cancel export job", zap.Error(err))
		return
	}
	metrics.ExportJobs.WithLabelValues(r.stream, "cancel_requested").Inc()
}
