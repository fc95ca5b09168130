//go:build !windows

package environment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileScopeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "env.yaml")
	scope := NewFileScope(path)

	if v, err := scope.get(HomeVariable); err != nil || v != "" {
		t.Fatalf("get on missing file = %q, %v", v, err)
	}
	if err := scope.set(HomeVariable, "/opt/es"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := scope.set(OldConfigVariable, "/opt/es/config"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened := NewFileScope(path)
	if v, _ := reopened.get(HomeVariable); v != "/opt/es" {
		t.Errorf("home = %q", v)
	}

	if err := reopened.set(HomeVariable, ""); err != nil {
		t.Fatal(err)
	}
	if v, _ := reopened.get(HomeVariable); v != "" {
		t.Errorf("home not removed: %q", v)
	}
	if v, _ := reopened.get(OldConfigVariable); v != "/opt/es/config" {
		t.Errorf("unrelated variable lost: %q", v)
	}
}

func TestFileScopeNullDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "tilde", doc: "~\n"},
		{name: "null", doc: "null\n"},
		{name: "comment only", doc: "# managed by esinstall\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "env.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}

			scope := NewFileScope(path)
			if v, err := scope.get(HomeVariable); err != nil || v != "" {
				t.Fatalf("get = %q, %v", v, err)
			}
			if err := scope.set(HomeVariable, "/opt/es"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if v, _ := scope.get(HomeVariable); v != "/opt/es" {
				t.Errorf("home = %q", v)
			}
		})
	}
}

func TestSystemStoreProcessScope(t *testing.T) {
	store := &SystemStore{
		user:    NewFileScope(filepath.Join(t.TempDir(), "user.yaml")),
		machine: NewFileScope(filepath.Join(t.TempDir(), "machine.yaml")),
	}
	t.Setenv("ESINSTALL_TEST_VAR", "")

	if err := store.Set("ESINSTALL_TEST_VAR", ScopeProcess, "x"); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Get("ESINSTALL_TEST_VAR", ScopeProcess); v != "x" {
		t.Errorf("process value = %q", v)
	}
	if v, _ := store.Get("ESINSTALL_TEST_VAR", ScopeMachine); v != "" {
		t.Errorf("machine scope leaked process value: %q", v)
	}
	if _, err := store.Get("ESINSTALL_TEST_VAR", Scope("registry")); err == nil {
		t.Error("expected error for unknown scope")
	}
}
