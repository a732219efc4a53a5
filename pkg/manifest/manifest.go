// Package manifest describes the files produced by one batch export.
package manifest

import (
	"net/url"
	"path/filepath"

	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Encoding describes how exported files are laid out.
type Encoding struct {
	Format      string `json:"format"`
	Compression string `json:"compression,omitempty"`
}

// JSONLinesGzip is the encoding of warehouse JSON exports.
var JSONLinesGzip = Encoding{Format: "jsonl", Compression: "gzip"}

// Manifest lists the local files holding one stream's exported rows. It is
// built only after every file was retrieved.
type Manifest struct {
	Stream   string   `json:"stream"`
	Encoding Encoding `json:"encoding"`
	Files    []string `json:"manifest"`
}

// New builds a manifest for stream from local file paths, in order. Paths
// are converted to absolute file:// URIs.
func New(stream string, paths []string) (*Manifest, error) {
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		uri, err := FileURI(p)
		if err != nil {
			return nil, err
		}
		files = append(files, uri)
	}
	return &Manifest{
		Stream:   stream,
		Encoding: JSONLinesGzip,
		Files:    files,
	}, nil
}

// FileURI converts a local path to a file:// URI.
func FileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to resolve export file path").
			WithDetail("path", path)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// Paths converts the manifest's URIs back to local paths.
func (m *Manifest) Paths() ([]string, error) {
	paths := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		u, err := url.Parse(f)
		if err != nil || u.Scheme != "file" {
			return nil, taperrors.Newf(taperrors.ErrorTypeFile, "not a file URI: %s", f)
		}
		paths = append(paths, filepath.FromSlash(u.Path))
	}
	return paths, nil
}
