package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps credentials in a process-local map. It does not survive a
// restart and is meant for tests, load tools, and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// SetMany stores every entry under a single lock acquisition.
func (s *MemoryStore) SetMany(_ context.Context, values map[string]string) error {
	for k := range values {
		if strings.TrimSpace(k) == "" {
			return ErrEmptyKey
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

// DeleteMany removes every key under a single lock acquisition.
func (s *MemoryStore) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
