// Package kvstore provides a small key-value store used to hold the
// monitor's login state for the life of the process.
package kvstore

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/safecity/safecity-go/internal/errors"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.NewStd("kvstore: key not found")

// Store is a typed key-value store with optional per-entry expiry.
type Store interface {
	Get(key string) (any, error)
	Set(key string, value any)
	SetWithTTL(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
}

// MemoryStore is an in-process Store backed by go-cache. Entries written
// with Set never expire.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (m *MemoryStore) Get(key string) (any, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m *MemoryStore) Set(key string, value any) {
	m.cache.Set(key, value, gocache.NoExpiration)
}

func (m *MemoryStore) SetWithTTL(key string, value any, ttl time.Duration) {
	m.cache.Set(key, value, ttl)
}

func (m *MemoryStore) Delete(key string) {
	m.cache.Delete(key)
}

func (m *MemoryStore) Clear() {
	m.cache.Flush()
}
