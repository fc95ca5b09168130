package stores

import (
	"strings"
	"testing"
)

func TestInstallStateAccessors(t *testing.T) {
	state := NewInstallState(NewMemoryStore())

	if err := state.SetSeesService(true); err != nil {
		t.Fatal(err)
	}
	if err := state.SetServiceRunning(false); err != nil {
		t.Fatal(err)
	}
	if err := state.SetHomeDirectoryMachineVariable("/opt/es"); err != nil {
		t.Fatal(err)
	}
	if err := state.SetNewConfigDirectoryMachineVariable("/opt/es/config"); err != nil {
		t.Fatal(err)
	}

	if v, _ := state.SeesService(); !v {
		t.Error("SeesService not persisted")
	}
	if v, _ := state.ServiceRunning(); v {
		t.Error("ServiceRunning should be false")
	}
	if v, _ := state.HomeDirectoryMachineVariable(); v != "/opt/es" {
		t.Errorf("HomeDirectoryMachineVariable = %q", v)
	}
	if v, _ := state.NewConfigDirectoryMachineVariable(); v != "/opt/es/config" {
		t.Errorf("NewConfigDirectoryMachineVariable = %q", v)
	}
	if v, _ := state.OldConfigDirectoryMachineVariable(); v != "" {
		t.Errorf("OldConfigDirectoryMachineVariable = %q, want empty", v)
	}
}

func TestInstallStateString(t *testing.T) {
	state := NewInstallState(NewMemoryStore())
	if got := state.String(); !strings.Contains(got, "none") {
		t.Errorf("empty state dump = %q", got)
	}

	_ = state.SetServiceRunning(true)
	got := state.String()
	if !strings.Contains(got, "ServiceRunning = True") {
		t.Errorf("dump missing ServiceRunning: %q", got)
	}
	if strings.Contains(got, KeySeesService) {
		t.Errorf("dump lists absent key: %q", got)
	}
}

func TestIsInstallStateKey(t *testing.T) {
	if !IsInstallStateKey(KeyServiceRunning) {
		t.Error("ServiceRunning should be a known key")
	}
	if IsInstallStateKey("Scratch") {
		t.Error("Scratch should not be a known key")
	}
}
