package stores

import (
	"fmt"
	"strings"
)

// Keys recorded across phases.
const (
	KeySeesService                       = "SeesService"
	KeyServiceRunning                    = "ServiceRunning"
	KeyHomeDirectoryMachineVariable      = "HomeDirectoryMachineVariable"
	KeyNewConfigDirectoryMachineVariable = "NewConfigDirectoryMachineVariable"
	KeyOldConfigDirectoryMachineVariable = "OldConfigDirectoryMachineVariable"
)

var installStateKeys = []string{
	KeySeesService,
	KeyServiceRunning,
	KeyHomeDirectoryMachineVariable,
	KeyNewConfigDirectoryMachineVariable,
	KeyOldConfigDirectoryMachineVariable,
}

// IsInstallStateKey reports whether key is one of the keys InstallState
// reads and writes.
func IsInstallStateKey(key string) bool {
	for _, k := range installStateKeys {
		if k == key {
			return true
		}
	}
	return false
}

// InstallState is the typed view over the keys the installer phases share.
type InstallState struct {
	store StateStore
}

// NewInstallState wraps a store.
func NewInstallState(store StateStore) *InstallState {
	return &InstallState{store: store}
}

// Store returns the underlying store.
func (s *InstallState) Store() StateStore {
	return s.store
}

// SeesService reports whether a service was already registered before install.
func (s *InstallState) SeesService() (bool, error) {
	return s.store.ReadBool(KeySeesService)
}

// SetSeesService records whether a service was registered before install.
func (s *InstallState) SetSeesService(v bool) error {
	return s.store.WriteBool(KeySeesService, v)
}

// ServiceRunning reports whether the service was running before install.
func (s *InstallState) ServiceRunning() (bool, error) {
	return s.store.ReadBool(KeyServiceRunning)
}

// SetServiceRunning records whether the service was running before install.
func (s *InstallState) SetServiceRunning(v bool) error {
	return s.store.WriteBool(KeyServiceRunning, v)
}

// HomeDirectoryMachineVariable is the machine-scope home variable seen before install.
func (s *InstallState) HomeDirectoryMachineVariable() (string, error) {
	return s.store.ReadString(KeyHomeDirectoryMachineVariable)
}

// SetHomeDirectoryMachineVariable records the machine-scope home variable.
func (s *InstallState) SetHomeDirectoryMachineVariable(v string) error {
	return s.store.WriteString(KeyHomeDirectoryMachineVariable, v)
}

// NewConfigDirectoryMachineVariable is the machine-scope CONF_DIR seen before install.
func (s *InstallState) NewConfigDirectoryMachineVariable() (string, error) {
	return s.store.ReadString(KeyNewConfigDirectoryMachineVariable)
}

// SetNewConfigDirectoryMachineVariable records the machine-scope CONF_DIR.
func (s *InstallState) SetNewConfigDirectoryMachineVariable(v string) error {
	return s.store.WriteString(KeyNewConfigDirectoryMachineVariable, v)
}

// OldConfigDirectoryMachineVariable is the machine-scope ES_CONFIG seen before install.
func (s *InstallState) OldConfigDirectoryMachineVariable() (string, error) {
	return s.store.ReadString(KeyOldConfigDirectoryMachineVariable)
}

// SetOldConfigDirectoryMachineVariable records the machine-scope ES_CONFIG.
func (s *InstallState) SetOldConfigDirectoryMachineVariable(v string) error {
	return s.store.WriteString(KeyOldConfigDirectoryMachineVariable, v)
}

// Clear removes every persisted key.
func (s *InstallState) Clear() {
	s.store.Clear()
}

// String lists the keys that are present, for forensic logging.
func (s *InstallState) String() string {
	var b strings.Builder
	b.WriteString("Persisted state:")
	found := false
	for _, key := range installStateKeys {
		if !s.store.Exists(key) {
			continue
		}
		found = true
		value, err := s.store.ReadString(key)
		if err != nil {
			value = fmt.Sprintf("<unreadable: %v>", err)
		}
		fmt.Fprintf(&b, "\n - %s = %s", key, value)
	}
	if !found {
		b.WriteString(" none")
	}
	return b.String()
}
