package config

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// CloudPlatformScope covers BigQuery and Cloud Storage.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ClientOptions resolves Credentials into Google client options. Inline
// JSON is tried first, a string that is not JSON is read as a key file
// path, and no credentials yields no options so the clients fall back to
// application default credentials.
func (c *Config) ClientOptions(ctx context.Context) ([]option.ClientOption, error) {
	data, err := c.credentialsJSON()
	if err != nil {
		return nil, err
	}
	if data == nil {
		logger.Debug("no credentials configured, using application default credentials")
		return nil, nil
	}

	creds, err := google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid google_application_credentials")
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

func (c *Config) credentialsJSON() ([]byte, error) {
	switch v := c.Credentials.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		if json.Valid([]byte(s)) {
			return []byte(s), nil
		}
		logger.Debug("google_application_credentials is not valid JSON, trying as path", zap.String("path", s))
		data, err := os.ReadFile(s) //nolint:gosec // G304: path is operator supplied
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read credentials file").
				WithDetail("path", s)
		}
		return data, nil
	case map[string]interface{}:
		if len(v) == 0 {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to encode credentials")
		}
		return data, nil
	default:
		return nil, taperrors.Newf(taperrors.ErrorTypeConfig,
			"google_application_credentials must be a JSON string, object or path, got %T", v)
	}
}
