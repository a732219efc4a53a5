package protocol

import (
	"os"

	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// ReadState reads a Singer state file. An empty path yields an empty state.
func ReadState(path string) (map[string]interface{}, error) {
	state := map[string]interface{}{}
	if path == "" {
		return state, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read state file").
			WithDetail("path", path)
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid state file").
			WithDetail("path", path)
	}
	return state, nil
}
