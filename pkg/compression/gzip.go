// Package compression reads the gzip-compressed newline-delimited JSON
// files written by warehouse exports.
//
// Readers are pooled; a Reader must be closed to return it.
//
//	n, err := compression.CountLines(path)
package compression

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/ajitpratap0/tap-bigquery/pkg/pool"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

var (
	readerPool = pool.New(func() *gzip.Reader { return new(gzip.Reader) }, nil)
	chunkPool  = pool.NewSlicePool(64 * 1024)
)

// Reader is a pooled gzip reader.
type Reader struct {
	*gzip.Reader
}

// NewReader returns a gzip reader over r. Multistream input, as produced by
// concatenated export shards, is read as one stream.
func NewReader(r io.Reader) (*Reader, error) {
	zr := readerPool.Get()
	if err := zr.Reset(r); err != nil {
		readerPool.Put(zr)
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeData, "invalid gzip stream")
	}
	return &Reader{Reader: zr}, nil
}

// Close closes the reader and returns it to the pool.
func (r *Reader) Close() error {
	if r.Reader == nil {
		return nil
	}
	err := r.Reader.Close()
	readerPool.Put(r.Reader)
	r.Reader = nil
	return err
}

// CountLines returns the number of non-empty lines in a gzip file.
func CountLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to open export file").
			WithDetail("path", path)
	}
	defer f.Close()

	zr, err := NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to read export file").
			WithDetail("path", path)
	}
	defer zr.Close()

	chunk := chunkPool.Get()
	defer chunkPool.Put(chunk)

	var (
		count   int64
		pending bool
		buf     = *chunk
	)
	for {
		n, err := zr.Read(buf)
		data := buf[:n]
		for len(data) > 0 {
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				pending = true
				break
			}
			if i > 0 || pending {
				count++
			}
			pending = false
			data = data[i+1:]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, taperrors.Wrap(err, taperrors.ErrorTypeFile, "corrupt export file").
				WithDetail("path", path)
		}
	}
	if pending {
		count++
	}
	return count, nil
}

// Decompress returns the decompressed contents of data.
func Decompress(data []byte) ([]byte, error) {
	zr, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to decompress")
	}
	return out, nil
}
