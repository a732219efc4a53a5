package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
	tu "github.com/ajitpratap0/tap-bigquery/pkg/testutil"
)

type fakeJob struct {
	mu sync.Mutex

	id        string
	wait      func(ctx context.Context) (*core.JobStatus, error)
	state     core.JobState
	statusErr error
	cancelErr error

	cancels     int
	statusCtxOK bool
}

func (j *fakeJob) ID() string { return j.id }

func (j *fakeJob) Wait(ctx context.Context) (*core.JobStatus, error) {
	return j.wait(ctx)
}

func (j *fakeJob) Status(ctx context.Context) (*core.JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statusCtxOK = ctx.Err() == nil
	if j.statusErr != nil {
		return nil, j.statusErr
	}
	return &core.JobStatus{State: j.state}, nil
}

func (j *fakeJob) Cancel(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancels++
	if j.cancelErr == nil {
		j.state = core.JobCancelled
	}
	return j.cancelErr
}

type fakeJobs struct {
	job       *fakeJob
	submitErr error
	submitted []string
}

func (f *fakeJobs) Submit(_ context.Context, sql string) (core.Job, error) {
	f.submitted = append(f.submitted, sql)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.job, nil
}

func TestRunner_Success(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	job := &fakeJob{
		id:    "job-1",
		state: core.JobSucceeded,
		wait: func(context.Context) (*core.JobStatus, error) {
			return &core.JobStatus{State: core.JobSucceeded, Started: start, Ended: start.Add(90 * time.Second)}, nil
		},
	}
	jobs := &fakeJobs{job: job}
	before := testutil.ToFloat64(metrics.ExportJobs.WithLabelValues("ok-stream", "succeeded"))

	r := NewRunner(jobs, Config{Stream: "ok-stream", Logger: tu.TestLogger(t)})
	res, err := r.Run(context.Background(), "EXPORT DATA ...")
	require.NoError(t, err)

	assert.Equal(t, []string{"EXPORT DATA ..."}, jobs.submitted)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 90*time.Second, res.Duration())
	assert.Zero(t, job.cancels)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ExportJobs.WithLabelValues("ok-stream", "succeeded")))
}

func TestRunner_SubmissionError(t *testing.T) {
	jobs := &fakeJobs{submitErr: errors.New("Syntax error: Unexpected keyword")}

	r := NewRunner(jobs, Config{Stream: "s", Logger: tu.TestLogger(t)})
	res, err := r.Run(context.Background(), "EXPORT")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeSubmission))
}

func TestRunner_TerminalFailures(t *testing.T) {
	tests := []struct {
		name  string
		state core.JobState
		cause error
	}{
		{"failed", core.JobFailed, errors.New("Access Denied: bucket")},
		{"cancelled", core.JobCancelled, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &fakeJob{
				id:    "job-" + tt.name,
				state: tt.state,
				wait: func(context.Context) (*core.JobStatus, error) {
					return &core.JobStatus{State: tt.state, Err: tt.cause}, nil
				},
			}

			r := NewRunner(&fakeJobs{job: job}, Config{Stream: "s", Logger: tu.TestLogger(t)})
			_, err := r.Run(context.Background(), "EXPORT")
			require.Error(t, err)
			assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeJobExecution))
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			assert.Zero(t, job.cancels)
		})
	}
}

func TestRunner_CancelsOnInterruptedWait(t *testing.T) {
	job := &fakeJob{
		id:    "job-long",
		state: core.JobRunning,
		wait: func(ctx context.Context) (*core.JobStatus, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := NewRunner(&fakeJobs{job: job}, Config{Stream: "s", Logger: tu.TestLogger(t)})
	_, err := r.Run(ctx, "EXPORT")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeJobExecution))

	assert.Equal(t, 1, job.cancels)
	assert.True(t, job.statusCtxOK, "status must be checked on a live context")
	assert.Equal(t, core.JobCancelled, job.state)
}

func TestRunner_InterruptedWaitGuard(t *testing.T) {
	netErr := errors.New("connection reset")

	tests := []struct {
		name      string
		state     core.JobState
		statusErr error
		cancelErr error
		cancels   int
	}{
		{name: "still running", state: core.JobRunning, cancels: 1},
		{name: "still pending", state: core.JobSubmitted, cancels: 1},
		{name: "already done", state: core.JobSucceeded, cancels: 0},
		{name: "status unknown", statusErr: errors.New("503"), cancels: 1},
		{name: "cancel fails", state: core.JobRunning, cancelErr: errors.New("403"), cancels: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &fakeJob{
				id:        "job",
				state:     tt.state,
				statusErr: tt.statusErr,
				cancelErr: tt.cancelErr,
				wait: func(context.Context) (*core.JobStatus, error) {
					return nil, netErr
				},
			}

			r := NewRunner(&fakeJobs{job: job}, Config{Stream: "s", CancelTimeout: time.Second, Logger: tu.TestLogger(t)})
			_, err := r.Run(context.Background(), "EXPORT")
			assert.ErrorIs(t, err, netErr)
			assert.Equal(t, tt.cancels, job.cancels)
		})
	}
}

func TestRunner_CancelsOnPanic(t *testing.T) {
	job := &fakeJob{
		id:    "job-panic",
		state: core.JobRunning,
		wait: func(context.Context) (*core.JobStatus, error) {
			panic("boom")
		},
	}

	r := NewRunner(&fakeJobs{job: job}, Config{Stream: "s", Logger: tu.TestLogger(t)})
	assert.Panics(t, func() {
		_, _ = r.Run(context.Background(), "EXPORT")
	})
	assert.Equal(t, 1, job.cancels)
}

func TestRunner_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	observability.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	job := &fakeJob{
		id: "job-span",
		wait: func(context.Context) (*core.JobStatus, error) {
			return &core.JobStatus{State: core.JobFailed, Err: errors.New("quota")}, nil
		},
	}
	r := NewRunner(&fakeJobs{job: job}, Config{Stream: "traced", Logger: tu.TestLogger(t)})
	_, err := r.Run(context.Background(), "EXPORT")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "export.run", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestResult_Duration(t *testing.T) {
	assert.Zero(t, (&Result{}).Duration())
	now := time.Now()
	assert.Equal(t, time.Minute, (&Result{Started: now, Ended: now.Add(time.Minute)}).Duration())
}
