package stores

import (
	"sort"
	"sync"
)

// MemoryStore is an in-process StateStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// WriteRaw stores text verbatim, bypassing type formatting.
func (s *MemoryStore) WriteRaw(key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = text
}

// WriteString implements StateStore.
func (s *MemoryStore) WriteString(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.WriteRaw(key, value)
	return nil
}

// WriteBool implements StateStore.
func (s *MemoryStore) WriteBool(key string, value bool) error {
	return s.WriteString(key, FormatBool(value))
}

// ReadString implements StateStore.
func (s *MemoryStore) ReadString(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// ReadBool implements StateStore.
func (s *MemoryStore) ReadBool(key string) (bool, error) {
	raw, err := s.ReadString(key)
	if err != nil {
		return false, err
	}
	return parseBool(key, "", raw)
}

// Exists implements StateStore.
func (s *MemoryStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Keys implements StateStore.
func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear implements StateStore.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}
