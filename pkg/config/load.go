package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "TAP_BIGQUERY"

// Load merges the given files in order, applies environment overrides and
// validates the result.
func Load(paths ...string) (*Config, error) {
	v := newViper()

	for _, p := range paths {
		settings, err := readFile(p)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to merge config file").
				WithDetail("path", p)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// AutomaticEnv only sees keys viper already knows
	d := Default()
	v.SetDefault("project_id", "")
	v.SetDefault("google_storage_bucket", "")
	v.SetDefault("filter_schemas", []string{})
	v.SetDefault("filter_tables", []string{})
	v.SetDefault("location", "")
	v.SetDefault("export_connection", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("max_parallel_streams", d.MaxParallelStreams)
	v.SetDefault("temp_dir", "")
	v.SetDefault("verify_downloads", false)
	v.SetDefault("cancel_timeout", d.CancelTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("observability.enable_tracing", false)
	v.SetDefault("observability.metrics_addr", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// credentials may be a nested object, so they get no default
	_ = v.BindEnv("google_application_credentials")
	return v
}

func readFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", path)
	}

	content := []byte(substituteEnvVars(string(data)))
	settings := map[string]interface{}{}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(content, &settings)
	} else {
		err = yaml.Unmarshal(content, &settings)
	}
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", path)
	}
	return settings, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
