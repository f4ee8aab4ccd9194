// Package provider defines the backends that answer inventory, existence and
// status queries, and the registry that maps resource kinds to them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// Backend answers read-only questions about live resources. State changes go
// through the executor, never through a backend.
type Backend interface {
	Name() string
	Kinds() []ir.Kind
	// Inventory lists live resources of kind in region, in a stable order.
	Inventory(ctx context.Context, kind ir.Kind, region string) (*ir.Inventory, error)
	// Exists re-checks a single identifier. A missing resource is (false, nil).
	Exists(ctx context.Context, kind ir.Kind, region, id string) (bool, error)
	// Status reports the current status of an asynchronous resource. A
	// resource that no longer exists reports ir.StatusDeleted.
	Status(ctx context.Context, kind ir.Kind, region, id string) (*ir.StatusReport, error)
	// Preflight verifies connectivity and identity.
	Preflight(ctx context.Context) error
}

// Inspector is implemented by backends that can describe one resource in
// full. The result must marshal to JSON; a missing resource wraps
// ErrNotFound.
type Inspector interface {
	Inspect(ctx context.Context, kind ir.Kind, region, id string) (any, error)
}

// Registry holds the configured backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns a registry holding the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// Register adds or replaces a backend under its name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get returns a registered backend.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend not loaded: %s", name)
	}
	return b, nil
}

// ForKind returns the backend serving kind.
func (r *Registry) ForKind(kind ir.Kind) (Backend, error) {
	b, err := r.Get(kind.Backend())
	if err != nil {
		return nil, err
	}
	if !slices.Contains(b.Kinds(), kind) {
		return nil, fmt.Errorf("backend %s does not serve %s resources", b.Name(), kind)
	}
	return b, nil
}

// Names lists the registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrNotFound is wrapped by backends when a queried resource does not exist.
var ErrNotFound = errors.New("resource does not exist")

// Found maps the error of an existence query: nil means the resource exists,
// ErrNotFound means it does not, anything else is returned.
func Found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// DeletedOr maps ErrNotFound from a status query to a StatusDeleted report.
func DeletedOr(err error) (*ir.StatusReport, error) {
	if errors.Is(err, ErrNotFound) {
		return &ir.StatusReport{Status: ir.StatusDeleted}, nil
	}
	return nil, err
}
