package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-bigquery/pkg/location"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
	"github.com/ajitpratap0/tap-bigquery/pkg/testutil"
)

const authorizedUser = `{"type":"authorized_user","client_id":"id.apps.googleusercontent.com","client_secret":"secret","refresh_token":"token"}`

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_TAP_PROJECT", "env-project")
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.yaml", []byte(`
project_id: ${TEST_TAP_PROJECT}
google_storage_bucket: gs://exports/tap
filter_schemas: [sales, hr]
filter_tables: ["order*"]
max_parallel_streams: 4
cancel_timeout: 45s
logging:
  level: debug
`))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-project", cfg.ProjectID)
	assert.Equal(t, []string{"sales", "hr"}, cfg.FilterSchemas)
	assert.Equal(t, []string{"order*"}, cfg.FilterTables)
	assert.Equal(t, 4, cfg.MaxParallelStreams)
	assert.Equal(t, 45*time.Second, cfg.CancelTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)
	assert.True(t, cfg.BatchMode())

	b, err := cfg.StorageBucket()
	require.NoError(t, err)
	assert.Equal(t, &location.Bucket{Scheme: "gs", Name: "exports", Prefix: "tap"}, b)
}

func TestLoad_JSONWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.json", []byte(`{
		"project_id": "p",
		"google_application_credentials": {"type": "authorized_user", "client_id": "x"}
	}`))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "p", cfg.ProjectID)
	assert.Equal(t, 1, cfg.MaxParallelStreams)
	assert.Equal(t, 30*time.Second, cfg.CancelTimeout)
	assert.False(t, cfg.BatchMode())
	assert.IsType(t, map[string]interface{}{}, cfg.Credentials)

	b, err := cfg.StorageBucket()
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestLoad_MergeAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	base := testutil.WriteFile(t, dir, "base.yaml", []byte("project_id: base\nlocation: EU\n"))
	override := testutil.WriteFile(t, dir, "override.json", []byte(`{"project_id": "override"}`))

	t.Setenv("TAP_BIGQUERY_MAX_PARALLEL_STREAMS", "3")
	t.Setenv("TAP_BIGQUERY_LOGGING_ENCODING", "console")

	cfg, err := Load(base, override)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.ProjectID)
	assert.Equal(t, "EU", cfg.Location)
	assert.Equal(t, 3, cfg.MaxParallelStreams)
	assert.Equal(t, "console", cfg.Logging.Encoding)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"missing project", "location: US\n", "project_id"},
		{"bad parallelism", "project_id: p\nmax_parallel_streams: 0\n", "max_parallel_streams"},
		{"bad level", "project_id: p\nlogging:\n  level: loud\n", "level"},
		{"bad bucket", "project_id: p\ngoogle_storage_bucket: azure://x\n", "scheme"},
		{"bad pattern", "project_id: p\nfilter_tables: ['[a']\n", "filter_tables"},
		{"not yaml", "project_id: [\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "config.yaml", []byte(tt.content))
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig), err.Error())
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TAP_TEST_A", "alpha")
	t.Setenv("TAP_TEST_LOOP", "${TAP_TEST_A}")

	assert.Equal(t, "x alpha y", substituteEnvVars("x ${TAP_TEST_A} y"))
	assert.Equal(t, "${TAP_TEST_A}", substituteEnvVars("${TAP_TEST_LOOP}"))
	assert.Equal(t, "unset: .", substituteEnvVars("unset: ${TAP_TEST_UNSET_VAR}."))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}

func TestClientOptions(t *testing.T) {
	ctx := context.Background()
	keyFile := testutil.WriteFile(t, t.TempDir(), "key.json", []byte(authorizedUser))

	tests := []struct {
		name    string
		creds   interface{}
		options int
		wantErr bool
	}{
		{name: "none", creds: nil, options: 0},
		{name: "empty string", creds: "  ", options: 0},
		{name: "inline json", creds: authorizedUser, options: 1},
		{name: "object", creds: map[string]interface{}{
			"type": "authorized_user", "client_id": "id", "client_secret": "s", "refresh_token": "r",
		}, options: 1},
		{name: "path", creds: keyFile, options: 1},
		{name: "missing path", creds: filepath.Join(t.TempDir(), "nope.json"), wantErr: true},
		{name: "unknown type", creds: `{"type":"mystery"}`, wantErr: true},
		{name: "wrong kind", creds: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProjectID: "p", Credentials: tt.creds}
			opts, err := cfg.ClientOptions(ctx)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts, tt.options)
		})
	}
}
