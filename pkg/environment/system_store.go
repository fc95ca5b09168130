package environment

import (
	"fmt"
	"os"
)

// persistentScope is a user or machine environment backend.
type persistentScope interface {
	get(name string) (string, error)
	set(name, value string) error
}

// SystemStore is the Store backed by the real process environment and the
// platform's persistent user and machine environments.
type SystemStore struct {
	user    persistentScope
	machine persistentScope
}

// Get implements Store.
func (s *SystemStore) Get(name string, scope Scope) (string, error) {
	switch scope {
	case ScopeProcess:
		return os.Getenv(name), nil
	case ScopeUser:
		return s.user.get(name)
	case ScopeMachine:
		return s.machine.get(name)
	default:
		return "", scope.Validate()
	}
}

// Set implements Store.
func (s *SystemStore) Set(name string, scope Scope, value string) error {
	switch scope {
	case ScopeProcess:
		if value == "" {
			return os.Unsetenv(name)
		}
		return os.Setenv(name, value)
	case ScopeUser:
		if err := s.user.set(name, value); err != nil {
			return fmt.Errorf("failed to set user variable %s: %w", name, err)
		}
		return nil
	case ScopeMachine:
		if err := s.machine.set(name, value); err != nil {
			return fmt.Errorf("failed to set machine variable %s: %w", name, err)
		}
		return nil
	default:
		return scope.Validate()
	}
}
