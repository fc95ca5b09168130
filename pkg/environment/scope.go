// Package environment discovers and reconciles the environment variables the
// installed node depends on, across process, user and machine scopes.
package environment

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Scope is the level an environment variable lives at.
type Scope string

const (
	// ScopeProcess is the current process environment.
	ScopeProcess Scope = "process"

	// ScopeUser is the persistent environment of the current user.
	ScopeUser Scope = "user"

	// ScopeMachine is the persistent machine-wide environment.
	ScopeMachine Scope = "machine"
)

// Precedence lists scopes from highest to lowest priority.
var Precedence = []Scope{ScopeProcess, ScopeUser, ScopeMachine}

// Validate checks if the scope is valid.
func (s Scope) Validate() error {
	switch s {
	case ScopeProcess, ScopeUser, ScopeMachine:
		return nil
	default:
		return fmt.Errorf("invalid environment scope: %s", s)
	}
}

// Store reads and writes environment variables at a given scope. Business
// logic never touches the real environment directly.
type Store interface {
	// Get returns the value, or "" when the variable is not set.
	Get(name string, scope Scope) (string, error)

	// Set writes the value. An empty value removes the variable.
	Set(name string, scope Scope, value string) error
}

// Variable names the installer manages.
const (
	HomeVariable      = "ES_HOME"
	NewConfigVariable = "CONF_DIR"
	OldConfigVariable = "ES_CONFIG"
	JavaHomeVariable  = "JAVA_HOME"
)

// lastNewConfigMajor is the last major version line that reads CONF_DIR.
const lastNewConfigMajor = 5

// ConfigDirVariable returns the name of the configuration-directory variable
// for the product version being installed.
func ConfigDirVariable(productVersion string) (string, error) {
	v, err := version.NewVersion(productVersion)
	if err != nil {
		return "", fmt.Errorf("cannot select config directory variable: %w", err)
	}
	if v.Segments()[0] <= lastNewConfigMajor {
		return NewConfigVariable, nil
	}
	return OldConfigVariable, nil
}

// Names is the set of variable names selected once per invocation.
type Names struct {
	Home      string
	ConfigDir string
}

// NamesFor selects the variable names for a product version.
func NamesFor(productVersion string) (Names, error) {
	configDir, err := ConfigDirVariable(productVersion)
	if err != nil {
		return Names{}, err
	}
	return Names{Home: HomeVariable, ConfigDir: configDir}, nil
}
