// Package protocol writes Singer messages.
//
// Every message is one JSON document on its own line. Writer is safe for
// concurrent use, so streams synced in parallel can share one.
package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/manifest"
	"github.com/ajitpratap0/tap-bigquery/pkg/models"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// Message types.
const (
	TypeSchema = "SCHEMA"
	TypeRecord = "RECORD"
	TypeBatch  = "BATCH"
	TypeState  = "STATE"
)

// SchemaMessage announces a stream's schema.
type SchemaMessage struct {
	Type               string       `json:"type"`
	Stream             string       `json:"stream"`
	Schema             *schema.Node `json:"schema"`
	KeyProperties      []string     `json:"key_properties"`
	BookmarkProperties []string     `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one row.
type RecordMessage struct {
	Type          string        `json:"type"`
	Stream        string        `json:"stream"`
	Record        models.Record `json:"record"`
	TimeExtracted string        `json:"time_extracted,omitempty"`
}

// BatchMessage points the target at exported files.
type BatchMessage struct {
	Type     string            `json:"type"`
	Stream   string            `json:"stream"`
	Encoding manifest.Encoding `json:"encoding"`
	Manifest []string          `json:"manifest"`
}

// StateMessage carries the tap state.
type StateMessage struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

var (
	_ core.RecordWriter      = (*Writer)(nil)
	_ core.ManifestPublisher = (*Writer)(nil)
)

// Writer serialises Singer messages to an io.Writer.
type Writer struct {
	mu     sync.Mutex
	enc    *gojson.Encoder
	now    func() time.Time
	logger *zap.Logger
}

// NewWriter creates a Writer on out, normally os.Stdout.
func NewWriter(out io.Writer, log *zap.Logger) *Writer {
	if log == nil {
		log = logger.Get()
	}
	return &Writer{
		enc:    json.NewEncoder(out),
		now:    time.Now,
		logger: log.With(zap.String("component", "protocol")),
	}
}

func (w *Writer) write(msg interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(msg); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to write message")
	}
	return nil
}

// WriteSchema writes a SCHEMA message.
func (w *Writer) WriteSchema(stream string, s *schema.Node, keyProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return w.write(&SchemaMessage{
		Type:          TypeSchema,
		Stream:        stream,
		Schema:        s,
		KeyProperties: keyProperties,
	})
}

// WriteRecord writes a RECORD message.
func (w *Writer) WriteRecord(_ context.Context, stream string, record models.Record) error {
	err := w.write(&RecordMessage{
		Type:          TypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to write record").
			WithDetail("stream", stream)
	}
	return nil
}

// PublishBatch writes a BATCH message for m.
func (w *Writer) PublishBatch(_ context.Context, m manifest.Manifest) error {
	w.logger.Info("publishing batch", zap.String("stream", m.Stream), zap.Int("files", len(m.Files)))
	return w.write(&BatchMessage{
		Type:     TypeBatch,
		Stream:   m.Stream,
		Encoding: m.Encoding,
		Manifest: m.Files,
	})
}

// WriteState writes a STATE message.
func (w *Writer) WriteState(value interface{}) error {
	if value == nil {
		value = map[string]interface{}{}
	}
	return w.write(&StateMessage{Type: TypeState, Value: value})
}
