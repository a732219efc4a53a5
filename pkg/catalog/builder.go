package catalog

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// BuilderConfig restricts discovery.
type BuilderConfig struct {
	// FilterSchemas lists the datasets to inspect. Empty means all.
	FilterSchemas []string
	// FilterTables holds shell patterns matched against table names.
	// Empty means all.
	FilterTables []string
	Logger       *zap.Logger
}

// Builder discovers a catalog through an Inspector.
type Builder struct {
	inspector     core.Inspector
	filterSchemas []string
	filterTables  []string
	logger        *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(inspector core.Inspector, cfg BuilderConfig) (*Builder, error) {
	for _, p := range cfg.FilterTables {
		if _, err := path.Match(p, ""); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid filter_tables pattern").
				WithDetail("pattern", p)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Builder{
		inspector:     inspector,
		filterSchemas: cfg.FilterSchemas,
		filterTables:  cfg.FilterTables,
		logger:        log.With(zap.String("component", "catalog")),
	}, nil
}

// Discover builds one stream per matching table or view. Objects whose
// reflection fails are logged and skipped; only a failure to list schemas
// is returned.
func (b *Builder) Discover(ctx context.Context) (*Catalog, error) {
	schemas := b.filterSchemas
	if len(schemas) == 0 {
		var err error
		schemas, err = b.inspector.SchemaNames(ctx)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to list schemas")
		}
	}

	c := &Catalog{Streams: []*Stream{}}
	for _, schemaName := range schemas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		objects, err := b.inspector.ObjectNames(ctx, schemaName)
		if err != nil {
			b.skip(taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to list tables").
				WithDetail("schema", schemaName))
			continue
		}

		for _, obj := range objects {
			table := obj.Name[strings.LastIndex(obj.Name, ".")+1:]
			if !b.tableAllowed(table) {
				continue
			}

			stream, err := b.discoverStream(ctx, schemaName, table, obj.IsView)
			if err != nil {
				b.skip(err)
				continue
			}
			c.Streams = append(c.Streams, stream)
		}
	}

	b.logger.Info("discovery complete",
		zap.Int("schemas", len(schemas)),
		zap.Int("streams", len(c.Streams)))
	return c, nil
}

func (b *Builder) skip(err *taperrors.Error) {
	fields := []zap.Field{zap.Error(err)}
	for k, v := range err.Details {
		fields = append(fields, zap.Any(k, v))
	}
	b.logger.Warn("skipping object after discovery failure", fields...)
}

func (b *Builder) tableAllowed(table string) bool {
	if len(b.filterTables) == 0 {
		return true
	}
	for _, p := range b.filterTables {
		if ok, _ := path.Match(p, table); ok {
			return true
		}
	}
	return false
}

func (b *Builder) discoverStream(ctx context.Context, schemaName, table string, isView bool) (*Stream, *taperrors.Error) {
	fail := func(err error, msg string) *taperrors.Error {
		return taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, msg).
			WithDetail("schema", schemaName).
			WithDetail("table", table)
	}

	keys, err := b.keyProperties(ctx, schemaName, table)
	if err != nil {
		return nil, fail(err, "failed to read key constraints")
	}

	columns, err := b.inspector.Columns(ctx, schemaName, table)
	if err != nil {
		return nil, fail(err, "failed to read columns")
	}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	root := schema.NewObject(false)
	for _, col := range columns {
		if strings.Contains(col.Name, ".") {
			continue
		}
		if err := col.Type.Validate(); err != nil {
			return nil, fail(err, "invalid column type").WithDetail("column", col.Name)
		}
		root.SetProperty(col.Name, schema.TranslateColumn(col.Type, col.Nullable))
		if keySet[col.Name] {
			root.Required = append(root.Required, col.Name)
		}
	}

	id := StreamID(schemaName, table)
	return &Stream{
		TapStreamID:       id,
		Stream:            id,
		TableName:         table,
		SchemaName:        schemaName,
		KeyProperties:     keys,
		Schema:            root,
		IsView:            isView,
		ReplicationMethod: ReplicationFullTable,
		Metadata:          standardMetadata(schemaName, root, keys),
	}, nil
}

// keyProperties returns the primary key, else the columns of the first
// unique index that has any.
func (b *Builder) keyProperties(ctx context.Context, schemaName, table string) ([]string, error) {
	pk, err := b.inspector.PrimaryKey(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		return pk, nil
	}

	indexes, err := b.inspector.Indexes(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	for _, idx := range indexes {
		if idx.Unique && len(idx.Columns) > 0 {
			return idx.Columns, nil
		}
	}
	return nil, nil
}

func standardMetadata(schemaName string, root *schema.Node, keys []string) []Metadata {
	tableKeys := keys
	if tableKeys == nil {
		tableKeys = []string{}
	}

	md := []Metadata{{
		Breadcrumb: []string{},
		Metadata: map[string]interface{}{
			KeyInclusion:         InclusionAvailable,
			KeySelectedByDefault: true,
			KeyTableKeys:         tableKeys,
			KeySchemaName:        schemaName,
			KeyForcedReplication: ReplicationFullTable,
		},
	}}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	for _, name := range root.PropertyNames() {
		inclusion := InclusionAvailable
		if keySet[name] {
			inclusion = InclusionAutomatic
		}
		md = append(md, Metadata{
			Breadcrumb: []string{"properties", name},
			Metadata: map[string]interface{}{
				KeyInclusion:         inclusion,
				KeySelectedByDefault: true,
			},
		})
	}
	return md
}
