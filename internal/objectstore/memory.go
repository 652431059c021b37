package objectstore

import (
	"context"
	"sync"
)

type memoryObject struct {
	data    []byte
	version Version
}

// MemoryStore is an in-process versioned store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	next    Version
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Get returns a copy of the stored data.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersion(ctx, key)
	return data, err
}

// GetVersion returns a copy of the stored data and its version.
func (s *MemoryStore) GetVersion(ctx context.Context, key string) ([]byte, Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return append([]byte(nil), obj.data...), obj.version, nil
}

// Put overwrites the key.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store(key, data)
	return nil
}

// PutIfVersion writes only if the current version matches expected.
func (s *MemoryStore) PutIfVersion(ctx context.Context, key string, data []byte, expected Version) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objects[key].version != expected {
		return ErrConflict
	}
	s.store(key, data)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) store(key string, data []byte) {
	s.next++
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), version: s.next}
}
