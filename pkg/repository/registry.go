package repository

import (
	"errors"
	"sync"
)

// ErrNotOpen is returned by Registry.Release for a project id that has
// no outstanding Open call.
var ErrNotOpen = errors.New("repository: project is not open in this registry")

// OpenFunc constructs a fresh Repository for a project the first time
// Registry.Open sees its id.
type OpenFunc func() (*Repository, error)

type registryEntry struct {
	repo     *Repository
	refCount int
}

// Registry is a process-wide, refcounted cache of open Repositories
// keyed by project id, so concurrent callers opening the same project
// from different goroutines share one in-memory Repository instead of
// racing to build their own. The first Open for a project id invokes
// open; later calls for the same id return the cached Repository and
// bump its refcount. A Repository is only actually released once its
// refcount drops to zero.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Open returns the shared Repository for projectId, calling open to
// construct it if this is the first outstanding reference. Every
// successful Open must be paired with exactly one Release.
func (reg *Registry) Open(projectId string, open OpenFunc) (*Repository, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if e, ok := reg.entries[projectId]; ok {
		e.refCount++
		return e.repo, nil
	}
	r, err := open()
	if err != nil {
		return nil, err
	}
	reg.entries[projectId] = &registryEntry{repo: r, refCount: 1}
	return r, nil
}

// Release drops one reference to projectId's Repository. Once the
// refcount reaches zero the entry is forgotten and closeFn, if given,
// runs to release the Repository's own resources (e.g. its adapter).
func (reg *Registry) Release(projectId string, closeFn func(*Repository) error) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.entries[projectId]
	if !ok {
		return ErrNotOpen
	}
	e.refCount--
	if e.refCount > 0 {
		return nil
	}
	delete(reg.entries, projectId)
	if closeFn != nil {
		return closeFn(e.repo)
	}
	return nil
}

// RefCount reports projectId's current outstanding reference count, or
// 0 if it isn't open. Intended for tests and diagnostics.
func (reg *Registry) RefCount(projectId string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if e, ok := reg.entries[projectId]; ok {
		return e.refCount
	}
	return 0
}
