// Package store provides blob storage for cached HTTP responses.
//
// A Store holds opaque byte records keyed by string. It knows nothing about
// HTTP semantics: expiry bookkeeping is the only cache-adjacent concept it
// carries, and an expired entry simply reads as absent. Implementations are
// memory (testing and single-node), SQLite (durable single-node) and Redis
// (shared). All implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnknownStore is returned by Registry.Open for a name that was never
// registered.
var ErrUnknownStore = errors.New("unknown store")

// Store is the blob store collaborator for the cache middleware.
//
// Reads may be eventually consistent. Writes are last-writer-wins full
// overwrites; there is no read-modify-write transaction.
type Store interface {
	// Get returns the value stored under key.
	// The boolean reports whether a live (non-expired) entry was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, overwriting any previous entry.
	// A zero expires time means the entry never expires.
	Put(ctx context.Context, key string, expires time.Time, value []byte) error
	// Purge removes the entry for key, if any.
	Purge(ctx context.Context, key string) error
}

// Registry holds independently named store instances plus one default.
// The zero value is not usable; create with NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	named    map[string]Store
	fallback Store
}

// NewRegistry creates a registry with the given default store.
func NewRegistry(fallback Store) *Registry {
	return &Registry{
		named:    make(map[string]Store),
		fallback: fallback,
	}
}

// Register adds (or replaces) the store for the given name.
func (g *Registry) Register(name string, s Store) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.named[name] = s
}

// Default returns the unnamed default store.
func (g *Registry) Default() Store {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fallback
}

// Open returns the store registered under name.
// An empty name selects the default store.
func (g *Registry) Open(name string) (Store, error) {
	if name == "" {
		return g.Default(), nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if s, ok := g.named[name]; ok {
		return s, nil
	}
	return nil, ErrUnknownStore
}
