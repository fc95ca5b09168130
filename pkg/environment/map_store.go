package environment

import "sync"

// MapStore is an in-memory Store.
type MapStore struct {
	mu     sync.RWMutex
	values map[Scope]map[string]string
}

// NewMapStore creates an empty store.
func NewMapStore() *MapStore {
	return &MapStore{values: make(map[Scope]map[string]string)}
}

// Get implements Store.
func (s *MapStore) Get(name string, scope Scope) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[scope][name], nil
}

// Set implements Store.
func (s *MapStore) Set(name string, scope Scope, value string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values[scope], name)
		return nil
	}
	if s.values[scope] == nil {
		s.values[scope] = make(map[string]string)
	}
	s.values[scope][name] = value
	return nil
}
