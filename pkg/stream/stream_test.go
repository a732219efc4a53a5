package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/export"
	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/manifest"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/retrieve"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
	"github.com/ajitpratap0/tap-bigquery/pkg/testutil"
)

type fakeRows struct {
	rows    []models.Record
	err     error
	queries []string
}

func (f *fakeRows) Rows(_ context.Context, sql string) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		f.queries = append(f.queries, sql)
		for _, r := range f.rows {
			if !yield(models.Clone(r), nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

type collectWriter struct {
	records []models.Record
	err     error
}

func (c *collectWriter) WriteRecord(_ context.Context, _ string, r models.Record) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, r)
	return nil
}

type collectPublisher struct {
	manifests []manifest.Manifest
}

func (c *collectPublisher) PublishBatch(_ context.Context, m manifest.Manifest) error {
	c.manifests = append(c.manifests, m)
	return nil
}

func streamDesc(props map[string]*schema.Node, order ...string) *catalog.Stream {
	root := schema.NewObject(false)
	for _, name := range order {
		root.SetProperty(name, props[name])
	}
	return &catalog.Stream{
		TapStreamID: catalog.StreamID("ds", "tbl"),
		Stream:      catalog.StreamID("ds", "tbl"),
		TableName:   "tbl",
		SchemaName:  "ds",
		Schema:      root,
		Metadata: []catalog.Metadata{{
			Breadcrumb: []string{},
			Metadata:   map[string]interface{}{catalog.KeySelected: true},
		}},
	}
}

func directStream(t *testing.T, desc *catalog.Stream, rows *fakeRows) *Stream {
	t.Helper()
	s, err := New(desc, Config{ProjectID: "proj", Rows: rows, Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	return s
}

func TestDirect_StringRowUnchanged(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{
		"string_field": schema.NewPrimitive(schema.TypeString, "", true),
	}, "string_field")
	rows := &fakeRows{rows: []models.Record{{"string_field": "jam"}}}

	s := directStream(t, desc, rows)
	w := &collectWriter{}
	require.NoError(t, s.Sync(context.Background(), w))

	assert.Equal(t, []models.Record{{"string_field": "jam"}}, w.records)
	assert.Equal(t, []string{"SELECT `string_field` FROM `proj`.`ds`.`tbl`"}, rows.queries)
	assert.Equal(t, "direct", s.Mode())
}

func TestDirect_ZeroAndNullKept(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{
		"float_field": schema.NewPrimitive(schema.TypeNumber, "", true),
		"float_none":  schema.NewPrimitive(schema.TypeNumber, "", true),
	}, "float_field", "float_none")
	rows := &fakeRows{rows: []models.Record{{"float_field": 0.0, "float_none": nil}}}

	var got []models.Record
	for r, err := range directStream(t, desc, rows).Records(context.Background()) {
		require.NoError(t, err)
		got = append(got, r)
	}

	require.Len(t, got, 1)
	assert.Equal(t, models.Record{"float_field": 0.0, "float_none": nil}, got[0])
	assert.Contains(t, got[0], "float_none")
}

func TestDirect_SanitizesRows(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{
		"v": schema.NewPrimitive(schema.TypeNumber, "", true),
		"a": schema.NewArray(schema.NewPrimitive(schema.TypeNumber, "", false), true),
	}, "v", "a")
	rows := &fakeRows{rows: []models.Record{
		{"v": math.Inf(-1), "a": []interface{}{1.0, math.NaN(), 2.0}},
	}}

	w := &collectWriter{}
	require.NoError(t, directStream(t, desc, rows).Sync(context.Background(), w))
	assert.Equal(t, []models.Record{{"a": []interface{}{1.0, 2.0}}}, w.records)
}

func TestDirect_Errors(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{"x": schema.NewPrimitive(schema.TypeString, "", true)}, "x")
	boom := errors.New("quota exceeded")

	rows := &fakeRows{rows: []models.Record{{"x": "1"}}, err: boom}
	w := &collectWriter{}
	err := directStream(t, desc, rows).Sync(context.Background(), w)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, w.records, 1)

	writeErr := errors.New("broken pipe")
	err = directStream(t, desc, &fakeRows{rows: []models.Record{{"x": "1"}}}).
		Sync(context.Background(), &collectWriter{err: writeErr})
	assert.ErrorIs(t, err, writeErr)
}

func TestDirect_SinglePassAndRestart(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{"x": schema.NewPrimitive(schema.TypeInteger, "", true)}, "x")
	rows := &fakeRows{rows: []models.Record{{"x": 1}, {"x": 2}, {"x": 3}}}
	s := directStream(t, desc, rows)

	seq := s.Records(context.Background())
	for r, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, 1, r["x"])
		break
	}
	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 3, n)
	assert.Len(t, rows.queries, 2)
}

func TestDirect_OnlySelectedColumns(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{
		"id":     schema.NewPrimitive(schema.TypeInteger, "", false),
		"secret": schema.NewPrimitive(schema.TypeString, "", true),
	}, "id", "secret")
	desc.Metadata = append(desc.Metadata, catalog.Metadata{
		Breadcrumb: []string{"properties", "secret"},
		Metadata:   map[string]interface{}{catalog.KeySelected: false},
	})

	s := directStream(t, desc, &fakeRows{})
	assert.Equal(t, "SELECT `id` FROM `proj`.`ds`.`tbl`", s.SelectQuery())
	assert.Equal(t, []string{"id"}, s.Schema().PropertyNames())
}

func TestDirect_RecordColumnReadWhole(t *testing.T) {
	address := schema.NewObject(true)
	address.SetProperty("city", schema.NewPrimitive(schema.TypeString, "", false))
	address.Required = []string{"city"}
	desc := streamDesc(map[string]*schema.Node{
		"id":      schema.NewPrimitive(schema.TypeInteger, "", false),
		"address": address,
	}, "id", "address")
	rows := &fakeRows{rows: []models.Record{{"id": int64(1), "address": nil}}}

	s := directStream(t, desc, rows)
	w := &collectWriter{}
	require.NoError(t, s.Sync(context.Background(), w))

	require.Len(t, rows.queries, 1)
	assert.Equal(t, "SELECT `id`, `address` FROM `proj`.`ds`.`tbl`", rows.queries[0])
	assert.NotContains(t, rows.queries[0], "STRUCT")
	assert.Equal(t, []models.Record{{"id": int64(1), "address": nil}}, w.records)
}

func TestNew_NoSelectedColumns(t *testing.T) {
	deselected := streamDesc(map[string]*schema.Node{
		"secret": schema.NewPrimitive(schema.TypeString, "", true),
	}, "secret")
	deselected.Metadata = append(deselected.Metadata, catalog.Metadata{
		Breadcrumb: []string{"properties", "secret"},
		Metadata:   map[string]interface{}{catalog.KeySelected: false},
	})

	noSchema := streamDesc(nil)
	noSchema.Schema = nil

	bucket, err := location.ParseBucket("gs://exports/tap")
	require.NoError(t, err)
	log := testutil.TestLogger(t)
	batch := Config{
		ProjectID: "proj",
		Bucket:    &bucket,
		Runner:    export.NewRunner(&fakeJobs{job: succeeded()}, export.Config{Logger: log}),
		Retriever: retrieve.New(&memStore{}, retrieve.Config{TempRoot: t.TempDir(), Logger: log}),
		Logger:    log,
	}
	direct := Config{ProjectID: "proj", Rows: &fakeRows{}, Logger: log}

	tests := []struct {
		name string
		desc *catalog.Stream
		cfg  Config
	}{
		{name: "all deselected direct", desc: deselected, cfg: direct},
		{name: "all deselected batch", desc: deselected, cfg: batch},
		{name: "no schema", desc: noSchema, cfg: direct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.desc, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	desc := streamDesc(nil)
	_, err := New(desc, Config{})
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))

	_, err = New(desc, Config{Bucket: &location.Bucket{Scheme: "gs", Name: "b"}})
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
}

// batch fakes

type fakeJob struct {
	status *core.JobStatus
	err    error
}

func (j *fakeJob) ID() string { return "job-42" }
func (j *fakeJob) Wait(context.Context) (*core.JobStatus, error) {
	return j.status, j.err
}
func (j *fakeJob) Status(context.Context) (*core.JobStatus, error) { return j.status, nil }
func (j *fakeJob) Cancel(context.Context) error                    { return nil }

type fakeJobs struct {
	job       *fakeJob
	submitErr error
	sql       []string
}

func (f *fakeJobs) Submit(_ context.Context, sql string) (core.Job, error) {
	f.sql = append(f.sql, sql)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.job, nil
}

type memStore struct {
	mu          sync.Mutex
	keys        []string
	objects     map[string]string
	downloadErr error
	deleted     []string
}

func (m *memStore) List(_ context.Context, _, prefix string) ([]core.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ObjectInfo
	for _, k := range m.keys {
		if v, ok := m.objects[k]; ok && strings.HasPrefix(k, prefix) {
			out = append(out, core.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memStore) Download(_ context.Context, _, key string, dst io.WriterAt) (int64, error) {
	if m.downloadErr != nil {
		return 0, m.downloadErr
	}
	n, err := dst.WriteAt([]byte(m.objects[key]), 0)
	return int64(n), err
}

func (m *memStore) Delete(_ context.Context, _, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) Close() error { return nil }

type batchFixture struct {
	stream    *Stream
	jobs      *fakeJobs
	store     *memStore
	publisher *collectPublisher
	pattern   location.Pattern
}

func newBatchFixture(t *testing.T, job *fakeJob) *batchFixture {
	t.Helper()
	log := testutil.TestLogger(t)

	address := schema.NewObject(true)
	address.SetProperty("city", schema.NewPrimitive(schema.TypeString, "", true))
	desc := streamDesc(map[string]*schema.Node{
		"id":      schema.NewPrimitive(schema.TypeInteger, "", false),
		"address": address,
	}, "id", "address")

	bucket, err := location.ParseBucket("gs://exports/tap")
	require.NoError(t, err)
	pattern := location.ForStream(bucket, desc.FullyQualifiedName())

	store := &memStore{
		keys: []string{pattern.ShardName(0), pattern.ShardName(1)},
		objects: map[string]string{
			pattern.ShardName(0): "first",
			pattern.ShardName(1): "second",
		},
	}
	jobs := &fakeJobs{job: job}
	publisher := &collectPublisher{}

	s, err := New(desc, Config{
		ProjectID:  "proj",
		Bucket:     &bucket,
		Runner:     export.NewRunner(jobs, export.Config{Stream: desc.TapStreamID, Logger: log}),
		Retriever:  retrieve.New(store, retrieve.Config{TempRoot: t.TempDir(), Logger: log}),
		Publishers: []core.ManifestPublisher{publisher},
		Logger:     log,
	})
	require.NoError(t, err)

	return &batchFixture{stream: s, jobs: jobs, store: store, publisher: publisher, pattern: pattern}
}

func succeeded() *fakeJob {
	now := time.Now()
	return &fakeJob{status: &core.JobStatus{State: core.JobSucceeded, Started: now.Add(-time.Minute), Ended: now}}
}

func TestBatch_ExportPublishesManifest(t *testing.T) {
	f := newBatchFixture(t, succeeded())
	assert.Equal(t, "batch", f.stream.Mode())

	require.NoError(t, f.stream.Sync(context.Background(), &collectWriter{}))

	require.Len(t, f.jobs.sql, 1)
	assert.Equal(t, "EXPORT DATA\n"+
		"  OPTIONS (\n"+
		"    uri = 'gs://exports/tap/ds.tbl-*.json.gz',\n"+
		"    format = 'JSON',\n"+
		"    compression = 'GZIP',\n"+
		"    overwrite = true\n"+
		"  )\n"+
		"AS (\n"+
		"  SELECT `id`, STRUCT(`address`.`city` AS `city`) AS `address` FROM `proj`.`ds`.`tbl`\n"+
		")", f.jobs.sql[0])

	require.Len(t, f.publisher.manifests, 1)
	m := f.publisher.manifests[0]
	assert.Equal(t, "ds-tbl", m.Stream)
	assert.Equal(t, manifest.JSONLinesGzip, m.Encoding)
	require.Len(t, m.Files, 2)
	assert.True(t, strings.HasSuffix(m.Files[0], "/ds.tbl-000000000000.json.gz"), m.Files[0])
	assert.True(t, strings.HasSuffix(m.Files[1], "/ds.tbl-000000000001.json.gz"), m.Files[1])
	assert.True(t, strings.HasPrefix(m.Files[0], "file://"))

	paths, err := m.Paths()
	require.NoError(t, err)
	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	assert.ElementsMatch(t, []string{f.pattern.ShardName(0), f.pattern.ShardName(1)}, f.store.deleted)
}

func TestBatch_DownloadFailureStillCleansUp(t *testing.T) {
	f := newBatchFixture(t, succeeded())
	f.store.downloadErr = errors.New("stream reset")

	_, err := f.stream.Export(context.Background())
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeRetrieval))
	assert.Empty(t, f.publisher.manifests)
	assert.Len(t, f.store.deleted, 2)
}

func TestBatch_JobFailures(t *testing.T) {
	tests := []struct {
		name    string
		job     *fakeJob
		submit  error
		errType taperrors.ErrorType
	}{
		{
			name:    "rejected",
			submit:  errors.New("Syntax error"),
			errType: taperrors.ErrorTypeSubmission,
		},
		{
			name:    "failed",
			job:     &fakeJob{status: &core.JobStatus{State: core.JobFailed, Err: errors.New("Access Denied")}},
			errType: taperrors.ErrorTypeJobExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBatchFixture(t, tt.job)
			f.jobs.submitErr = tt.submit

			m, err := f.stream.Export(context.Background())
			assert.Nil(t, m)
			assert.True(t, taperrors.IsType(err, tt.errType))
			assert.Empty(t, f.publisher.manifests)
			assert.Empty(t, f.store.deleted)
		})
	}
}

func TestExport_RequiresBucket(t *testing.T) {
	desc := streamDesc(map[string]*schema.Node{"x": schema.NewPrimitive(schema.TypeString, "", true)}, "x")
	_, err := directStream(t, desc, &fakeRows{}).Export(context.Background())
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
}
