// Package prefs is the key-value persistence interface behind extension
// settings. Each extension sees only its own scope.
package prefs

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

const (
	MaxValueBytes   = 64 << 10
	MaxKeysPerScope = 512
)

var ErrQuotaExceeded = errors.New("preference quota exceeded")

// Store persists string values grouped by scope
type Store interface {
	Get(scope, key string) (string, bool)
	Set(scope, key, value string) error
	Delete(scope, key string) error
	Keys(scope string) []string
	Flush() error
}

// MemoryStore is a Store that forgets everything on exit
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(scope, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[scope][key]
	return v, ok
}

func (m *MemoryStore) Set(scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return setIn(m.data, scope, key, value)
}

func (m *MemoryStore) Delete(scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleteIn(m.data, scope, key)
	return nil
}

func (m *MemoryStore) Keys(scope string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data[scope]))
}

func (m *MemoryStore) Flush() error { return nil }

func setIn(data map[string]map[string]string, scope, key, value string) error {
	if len(value) > MaxValueBytes {
		return ErrQuotaExceeded
	}
	bucket, ok := data[scope]
	if !ok {
		bucket = make(map[string]string)
		data[scope] = bucket
	}
	if _, exists := bucket[key]; !exists && len(bucket) >= MaxKeysPerScope {
		return ErrQuotaExceeded
	}
	bucket[key] = value
	return nil
}

func deleteIn(data map[string]map[string]string, scope, key string) {
	bucket, ok := data[scope]
	if !ok {
		return
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(data, scope)
	}
}

// Scoped binds a Store to one scope
type Scoped struct {
	store Store
	scope string
}

// Scope returns the view of s owned by name
func Scope(s Store, name string) *Scoped {
	return &Scoped{store: s, scope: name}
}

// Name returns the scope name
func (s *Scoped) Name() string { return s.scope }

func (s *Scoped) Get(key string) (string, bool) { return s.store.Get(s.scope, key) }
func (s *Scoped) Set(key, value string) error   { return s.store.Set(s.scope, key, value) }
func (s *Scoped) Delete(key string) error       { return s.store.Delete(s.scope, key) }
func (s *Scoped) Keys() []string                { return s.store.Keys(s.scope) }
