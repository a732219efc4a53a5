// Package catalog models the Singer catalog and discovers it from a
// warehouse Inspector.
package catalog

import (
	"os"
	"strings"

	"github.com/ajitpratap0/tap-bigquery/pkg/json"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// ReplicationFullTable is the only replication method the tap performs.
const ReplicationFullTable = "FULL_TABLE"

// Metadata keys used in breadcrumb entries.
const (
	KeyInclusion         = "inclusion"
	KeySelected          = "selected"
	KeySelectedByDefault = "selected-by-default"
	KeyTableKeys         = "table-key-properties"
	KeySchemaName        = "schema-name"
	KeyForcedReplication = "forced-replication-method"
	KeyReplicationKeys   = "valid-replication-keys"

	InclusionAutomatic   = "automatic"
	InclusionAvailable   = "available"
	InclusionUnsupported = "unsupported"
)

// Catalog is the set of discoverable streams.
type Catalog struct {
	Streams []*Stream `json:"streams"`
}

// Stream describes one extractable table or view.
type Stream struct {
	TapStreamID       string       `json:"tap_stream_id"`
	Stream            string       `json:"stream"`
	TableName         string       `json:"table_name"`
	SchemaName        string       `json:"schema_name,omitempty"`
	KeyProperties     []string     `json:"key_properties"`
	Schema            *schema.Node `json:"schema"`
	IsView            bool         `json:"is_view"`
	ReplicationMethod string       `json:"replication_method"`
	ReplicationKey    string       `json:"replication_key,omitempty"`
	Metadata          []Metadata   `json:"metadata"`
}

// Metadata is one breadcrumb entry. An empty breadcrumb addresses the
// stream itself, ["properties", name] addresses a top level column.
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// StreamID builds the tap stream id for a table.
func StreamID(schemaName, table string) string {
	return schemaName + "-" + table
}

// FullyQualifiedName returns schema.table.
func (s *Stream) FullyQualifiedName() string {
	return s.SchemaName + "." + s.TableName
}

func (s *Stream) metadataFor(breadcrumb ...string) map[string]interface{} {
	for _, m := range s.Metadata {
		if equalBreadcrumb(m.Breadcrumb, breadcrumb) {
			return m.Metadata
		}
	}
	return nil
}

func equalBreadcrumb(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Selected reports whether the stream is selected for sync. An explicit
// "selected" wins over "selected-by-default".
func (s *Stream) Selected() bool {
	return isSelected(s.metadataFor())
}

// SelectedProperties returns the selected top level columns in schema order.
func (s *Stream) SelectedProperties() []string {
	if s.Schema == nil {
		return nil
	}

	var selected []string
	for _, name := range s.Schema.PropertyNames() {
		md := s.metadataFor("properties", name)
		switch inclusion, _ := md[KeyInclusion].(string); inclusion {
		case InclusionAutomatic:
			selected = append(selected, name)
		case InclusionUnsupported:
		default:
			if md == nil || isSelected(md) {
				selected = append(selected, name)
			}
		}
	}
	return selected
}

func isSelected(md map[string]interface{}) bool {
	if v, ok := md[KeySelected].(bool); ok {
		return v
	}
	v, _ := md[KeySelectedByDefault].(bool)
	return v
}

// SelectAll marks every stream as selected.
func (c *Catalog) SelectAll() {
	for _, s := range c.Streams {
		md := s.metadataFor()
		if md == nil {
			md = make(map[string]interface{})
			s.Metadata = append([]Metadata{{Breadcrumb: []string{}, Metadata: md}}, s.Metadata...)
		}
		md[KeySelected] = true
	}
}

// Selected returns the selected streams in catalog order.
func (c *Catalog) Selected() []*Stream {
	var out []*Stream
	for _, s := range c.Streams {
		if s.Selected() {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the stream with the given tap stream id.
func (c *Catalog) Find(tapStreamID string) (*Stream, bool) {
	for _, s := range c.Streams {
		if s.TapStreamID == tapStreamID {
			return s, true
		}
	}
	return nil, false
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to read catalog").
			WithDetail("path", path)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeValidation, "invalid catalog").
			WithDetail("path", path)
	}

	for _, s := range c.Streams {
		if s.SchemaName == "" {
			s.SchemaName = schemaNameFromMetadata(s)
		}
		if s.SchemaName == "" || s.TableName == "" {
			return nil, taperrors.Newf(taperrors.ErrorTypeValidation,
				"catalog stream %q has no schema or table name", s.TapStreamID)
		}
	}
	return &c, nil
}

func schemaNameFromMetadata(s *Stream) string {
	if v, ok := s.metadataFor()[KeySchemaName].(string); ok {
		return v
	}
	if i := strings.Index(s.TapStreamID, "-"); i > 0 {
		return s.TapStreamID[:i]
	}
	return ""
}

// Marshal renders the catalog as indented JSON.
func (c *Catalog) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Write stores the catalog at path.
func (c *Catalog) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeInternal, "failed to encode catalog")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeFile, "failed to write catalog").
			WithDetail("path", path)
	}
	return nil
}

// SelectedSchema returns a copy of the stream schema restricted to the
// selected properties.
func (s *Stream) SelectedSchema() *schema.Node {
	out := schema.NewObject(false)
	if s.Schema == nil {
		return out
	}
	out.Nullable = s.Schema.Nullable

	selected := make(map[string]bool)
	for _, name := range s.SelectedProperties() {
		child, _ := s.Schema.Property(name)
		out.SetProperty(name, child)
		selected[name] = true
	}
	for _, name := range s.Schema.Required {
		if selected[name] {
			out.Required = append(out.Required, name)
		}
	}
	return out
}
