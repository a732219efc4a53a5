package bigquery

import (
	"context"
	"errors"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Submit starts sql as an asynchronous query job.
func (s *Source) Submit(ctx context.Context, sql string) (core.Job, error) {
	q := s.client.Query(sql)
	q.Labels = map[string]string{"tool": "tap-bigquery"}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeSubmission, "failed to submit query job")
	}
	s.logger.Debug("query job submitted", zap.String("job_id", job.ID()), zap.String("location", job.Location()))
	return &queryJob{job: job}, nil
}

type queryJob struct {
	job *bigquery.Job
}

func (j *queryJob) ID() string {
	return j.job.ID()
}

func (j *queryJob) Wait(ctx context.Context) (*core.JobStatus, error) {
	status, err := j.job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return convertStatus(status), nil
}

func (j *queryJob) Status(ctx context.Context) (*core.JobStatus, error) {
	status, err := j.job.Status(ctx)
	if err != nil {
		return nil, err
	}
	return convertStatus(status), nil
}

func (j *queryJob) Cancel(ctx context.Context) error {
	return j.job.Cancel(ctx)
}

// convertStatus maps a BigQuery job status onto the core lifecycle. A done
// job whose error reason is "stopped" was cancelled.
func convertStatus(status *bigquery.JobStatus) *core.JobStatus {
	out := &core.JobStatus{}
	if status.Statistics != nil {
		out.Started = status.Statistics.StartTime
		out.Ended = status.Statistics.EndTime
	}

	switch status.State {
	case bigquery.Pending:
		out.State = core.JobSubmitted
	case bigquery.Running:
		out.State = core.JobRunning
	case bigquery.Done:
		out.State = core.JobSucceeded
		if err := status.Err(); err != nil {
			out.Err = err
			out.State = core.JobFailed
			var bqErr *bigquery.Error
			if errors.As(err, &bqErr) && bqErr.Reason == "stopped" {
				out.State = core.JobCancelled
			}
		}
	default:
		out.State = core.JobSubmitted
	}
	return out
}
