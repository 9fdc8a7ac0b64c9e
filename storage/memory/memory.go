// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sync"

	"github.com/jmcleod/keyrelay/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing and memory-only (non-persistent) sessions.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func (r *Repository) Put(scope, recordType, recordID string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[scope]; !ok {
		r.data[scope] = make(map[string][]byte)
	}
	r.data[scope][storage.RecordKey(recordType, recordID)] = append([]byte(nil), value...)
	return nil
}

func (r *Repository) Get(scope, recordType, recordID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scoped, ok := r.data[scope]
	if !ok {
		return nil, storage.ErrScopeNotFound
	}
	value, ok := scoped[storage.RecordKey(recordType, recordID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (r *Repository) Delete(scope, recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scoped, ok := r.data[scope]
	if !ok {
		return storage.ErrScopeNotFound
	}
	key := storage.RecordKey(recordType, recordID)
	if _, ok := scoped[key]; !ok {
		return storage.ErrNotFound
	}
	delete(scoped, key)
	return nil
}

func (r *Repository) List(scope, recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix := recordType + "-"
	var ids []string
	for k := range r.data[scope] {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			ids = append(ids, k[len(prefix):])
		}
	}
	return ids, nil
}
