// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements HashStore with in-process maps. Intended for tests
// and for single-process ephemeral deployments.
type MemoryStore struct {
	mu     sync.Mutex
	hashes map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]map[string][]byte)}
}

// HashGet returns the value of field in ns, or ErrFieldNotFound.
func (s *MemoryStore) HashGet(_ context.Context, ns, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.hashes[ns][field]
	if !ok {
		return nil, ErrFieldNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// HashSet stores field=value in ns, overwriting any existing value.
func (s *MemoryStore) HashSet(_ context.Context, ns, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(ns, field, value)
	return nil
}

// HashSetNX stores field=value only if the field is absent.
func (s *MemoryStore) HashSetNX(_ context.Context, ns, field string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hashes[ns][field]; exists {
		return false, nil
	}
	s.set(ns, field, value)
	return true, nil
}

// HashDelete removes field from ns. Returns true if the field existed.
func (s *MemoryStore) HashDelete(_ context.Context, ns, field string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.hashes[ns]
	if !ok {
		return false, nil
	}
	if _, exists := fields[field]; !exists {
		return false, nil
	}
	delete(fields, field)
	if len(fields) == 0 {
		delete(s.hashes, ns)
	}
	return true, nil
}

// HashKeys lists all fields in ns, in lexicographic order.
func (s *MemoryStore) HashKeys(_ context.Context, ns string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := make([]string, 0, len(s.hashes[ns]))
	for field := range s.hashes[ns] {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields, nil
}

// HashLen returns the number of fields in ns.
func (s *MemoryStore) HashLen(_ context.Context, ns string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes[ns]), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// set stores a copy so callers cannot mutate stored bytes (must hold mu).
func (s *MemoryStore) set(ns, field string, value []byte) {
	fields, ok := s.hashes[ns]
	if !ok {
		fields = make(map[string][]byte)
		s.hashes[ns] = fields
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	fields[field] = stored
}
