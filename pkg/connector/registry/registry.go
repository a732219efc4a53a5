// Package registry maps object storage URI schemes to ObjectStore
// factories. Storage packages register themselves from init, so importing
// them for side effects is enough to make a scheme available:
//
//	import _ "github.com/ajitpratap0/tap-bigquery/pkg/connector/storage/gcs"
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tap-bigquery/pkg/connector/core"
	"github.com/ajitpratap0/tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/tap-bigquery/pkg/taperrors"
)

// StoreConfig carries what a store factory may need to build a client.
type StoreConfig struct {
	// GoogleOptions authenticate Google Cloud clients.
	GoogleOptions []option.ClientOption
	// Region is the AWS region for s3 buckets. Empty uses the SDK's
	// default resolution chain.
	Region string
	Logger *zap.Logger
}

// StoreFactory creates an ObjectStore.
type StoreFactory func(ctx context.Context, cfg StoreConfig) (core.ObjectStore, error)

// StoreInfo describes a registered store.
type StoreInfo struct {
	Scheme      string `json:"scheme"`
	Description string `json:"description"`
}

type entry struct {
	info    StoreInfo
	factory StoreFactory
}

// Registry manages object store registration and instantiation
type Registry struct {
	stores map[string]entry
	mu     sync.RWMutex
	logger *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new store registry
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]entry),
		logger: logger.Get().With(zap.String("component", "store_registry")),
	}
}

// Register registers a store factory for a URI scheme
func (r *Registry) Register(info StoreInfo, factory StoreFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[info.Scheme]; exists {
		return taperrors.Newf(taperrors.ErrorTypeConfig, "object store %s already registered", info.Scheme)
	}

	r.stores[info.Scheme] = entry{info: info, factory: factory}
	r.logger.Debug("object store registered", zap.String("scheme", info.Scheme))
	return nil
}

// Create creates a store for the scheme
func (r *Registry) Create(ctx context.Context, scheme string, cfg StoreConfig) (core.ObjectStore, error) {
	r.mu.RLock()
	e, exists := r.stores[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, taperrors.Newf(taperrors.ErrorTypeConfig, "no object store registered for scheme %q", scheme)
	}

	store, err := e.factory(ctx, cfg)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to create object store "+scheme)
	}
	return store, nil
}

// List returns the registered stores sorted by scheme
func (r *Registry) List() []StoreInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]StoreInfo, 0, len(r.stores))
	for _, e := range r.stores {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Scheme < infos[j].Scheme })
	return infos
}

// Has checks if a scheme is registered
func (r *Registry) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.stores[scheme]
	return exists
}

// Register registers a store in the global registry
func Register(info StoreInfo, factory StoreFactory) error {
	return globalRegistry.Register(info, factory)
}

// Create creates a store from the global registry
func Create(ctx context.Context, scheme string, cfg StoreConfig) (core.ObjectStore, error) {
	return globalRegistry.Create(ctx, scheme, cfg)
}

// List returns the stores in the global registry
func List() []StoreInfo {
	return globalRegistry.List()
}

// Has checks if a scheme is registered in the global registry
func Has(scheme string) bool {
	return globalRegistry.Has(scheme)
}
