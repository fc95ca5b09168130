//go:build !windows

package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// MachineEnvironmentFile holds machine-scope variables on non-Windows hosts.
var MachineEnvironmentFile = "/etc/esinstall/env.yaml"

// NewSystemStore returns a store that keeps user and machine variables in
// YAML files, since there is no registry to hold them.
func NewSystemStore() *SystemStore {
	userDir, err := os.UserConfigDir()
	if err != nil {
		userDir = os.TempDir()
	}
	return &SystemStore{
		user:    NewFileScope(filepath.Join(userDir, "esinstall", "env.yaml")),
		machine: NewFileScope(MachineEnvironmentFile),
	}
}

// FileScope is a persistent scope stored as a flat YAML map.
type FileScope struct {
	mu   sync.Mutex
	path string
}

// NewFileScope creates a file-backed scope.
func NewFileScope(path string) *FileScope {
	return &FileScope{path: path}
}

func (f *FileScope) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	// A null document decodes to a nil map.
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (f *FileScope) get(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[name], nil
}

func (f *FileScope) set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if value == "" {
		delete(values, name)
	} else {
		values[name] = value
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
