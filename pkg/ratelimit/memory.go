package ratelimit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]Info
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Info)}
}

// Update implements Store
func (s *MemoryStore) Update(_ context.Context, key Key, fn func(*Info) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.records[key]
	info.Timestamps = slices.Clone(info.Timestamps)
	if err := fn(&info); err != nil {
		return err
	}
	info.Version++
	s.records[key] = info
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
