package compression

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-bigquery/pkg/testutil"
)

func TestCountLines(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		records []map[string]interface{}
		want    int64
	}{
		{"empty", nil, 0},
		{"single", []map[string]interface{}{{"a": 1}}, 1},
		{"several", []map[string]interface{}{{"a": 1}, {"b": "x"}, {"c": nil}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, tt.name+".json.gz", testutil.GzipJSONLines(t, tt.records...))
			n, err := CountLines(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCountLines_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n"), 0o644))

	_, err := CountLines(path)
	assert.Error(t, err)

	_, err = CountLines(filepath.Join(t.TempDir(), "missing.json.gz"))
	assert.Error(t, err)
}

func TestDecompress(t *testing.T) {
	data := testutil.GzipJSONLines(t, map[string]interface{}{"k": "v"})

	// twice, to go through the pool
	for i := 0; i < 2; i++ {
		out, err := Decompress(data)
		require.NoError(t, err)
		assert.Equal(t, "{\"k\":\"v\"}\n", string(out))
	}
}
