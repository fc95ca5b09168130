//go:build windows

package environment

import (
	"errors"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const (
	userEnvironmentPath    = `Environment`
	machineEnvironmentPath = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
)

// NewSystemStore returns a store backed by the Windows registry for the
// user and machine scopes.
func NewSystemStore() *SystemStore {
	return &SystemStore{
		user:    &registryScope{root: registry.CURRENT_USER, path: userEnvironmentPath},
		machine: &registryScope{root: registry.LOCAL_MACHINE, path: machineEnvironmentPath},
	}
}

type registryScope struct {
	root registry.Key
	path string
}

func (r *registryScope) get(name string) (string, error) {
	k, err := registry.OpenKey(r.root, r.path, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	return v, err
}

func (r *registryScope) set(name, value string) error {
	k, _, err := registry.CreateKey(r.root, r.path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	if value == "" {
		err := k.DeleteValue(name)
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return err
	}
	if strings.Contains(value, "%") {
		return k.SetExpandStringValue(name, value)
	}
	return k.SetStringValue(name, value)
}
