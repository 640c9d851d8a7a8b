package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory Store for testing and development.
// All operations are atomic under a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]Item
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]Item),
	}
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, key Key) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, found := s.entries[key]
	if !found {
		return nil, false, nil
	}
	return maps.Clone(item), true, nil
}

// Put implements Store
func (s *MemoryStore) Put(ctx context.Context, key Key, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = maps.Clone(item)
	return nil
}

// Upsert implements Store with the same set-if-absent + increment semantics
// as the DynamoDB conditional update
func (s *MemoryStore) Upsert(ctx context.Context, key Key, attrs Item, counter string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.entries[key]
	if !found {
		entry = make(Item)
		s.entries[key] = entry
	}

	for name, value := range attrs {
		if _, exists := entry[name]; !exists {
			entry[name] = value
		}
	}
	entry[counter] = AsInt(entry[counter]) + 1

	return maps.Clone(entry), nil
}

// Len reports the number of stored entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
