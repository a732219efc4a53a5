// Package location builds and matches the object storage URIs that export
// jobs write to.
//
// Every stream exports under its own pattern,
//
//	<scheme>://<bucket>[/<prefix>]/<schema>.<table>-*.json.gz
//
// so concurrent exports of different streams into one bucket never see each
// other's files.
package location

import (
	"fmt"
	"path"
	"strings"

	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Supported object storage schemes.
const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"
)

// FileSuffix is the extension of exported files.
const FileSuffix = ".json.gz"

// Bucket is a parsed destination bucket setting.
type Bucket struct {
	Scheme string
	Name   string
	Prefix string
}

// ParseBucket parses a bucket setting of the form "bucket",
// "bucket/prefix", "gs://bucket[/prefix]" or "s3://bucket[/prefix]".
// A bare bucket defaults to the gs scheme.
func ParseBucket(raw string) (Bucket, error) {
	raw = strings.TrimSpace(raw)
	b := Bucket{Scheme: SchemeGCS}

	if i := strings.Index(raw, "://"); i >= 0 {
		b.Scheme = strings.ToLower(raw[:i])
		raw = raw[i+3:]
	}
	switch b.Scheme {
	case SchemeGCS, SchemeS3:
	default:
		return Bucket{}, taperrors.Newf(taperrors.ErrorTypeConfig, "unsupported storage scheme %q", b.Scheme).
			WithDetail("bucket", raw)
	}

	raw = strings.Trim(raw, "/")
	name, prefix, _ := strings.Cut(raw, "/")
	if name == "" {
		return Bucket{}, taperrors.New(taperrors.ErrorTypeConfig, "storage bucket name is empty")
	}
	if strings.ContainsAny(name, "*?[") || strings.ContainsAny(prefix, "*?[") {
		return Bucket{}, taperrors.New(taperrors.ErrorTypeConfig, "storage bucket must not contain wildcards").
			WithDetail("bucket", raw)
	}

	b.Name = name
	b.Prefix = strings.Trim(prefix, "/")
	return b, nil
}

// String renders the bucket as a URI.
func (b Bucket) String() string {
	s := b.Scheme + "://" + b.Name
	if b.Prefix != "" {
		s += "/" + b.Prefix
	}
	return s
}

// Pattern is the destination of one export: a bucket and an object name
// glob relative to it.
type Pattern struct {
	Scheme string
	Bucket string
	// Glob matches object names within Bucket, e.g. "exports/ds.t-*.json.gz".
	Glob string
}

// ForStream returns the export pattern for the stream with the given fully
// qualified name.
func ForStream(b Bucket, fullyQualifiedName string) Pattern {
	name := fullyQualifiedName + "-*" + FileSuffix
	if b.Prefix != "" {
		name = b.Prefix + "/" + name
	}
	return Pattern{Scheme: b.Scheme, Bucket: b.Name, Glob: name}
}

// String renders the pattern as the URI handed to the warehouse.
func (p Pattern) String() string {
	return p.Scheme + "://" + p.Bucket + "/" + p.Glob
}

// Prefix returns the literal part of the glob, used to list candidates.
func (p Pattern) Prefix() string {
	if i := strings.IndexAny(p.Glob, "*?["); i >= 0 {
		return p.Glob[:i]
	}
	return p.Glob
}

// Match reports whether the object name matches the pattern. The text
// standing in for the wildcard must be a shard number, so "ds.a-*" does not
// claim the files of a stream named "ds.a-b".
func (p Pattern) Match(name string) bool {
	ok, err := path.Match(p.Glob, name)
	if err != nil || !ok {
		return false
	}
	shard := strings.TrimSuffix(strings.TrimPrefix(name, p.Prefix()), FileSuffix)
	if shard == "" {
		return false
	}
	for _, r := range shard {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ShardName returns the object name of the n-th shard the warehouse
// writes for this pattern.
func (p Pattern) ShardName(n int) string {
	return p.Prefix() + fmt.Sprintf("%012d", n) + FileSuffix
}
