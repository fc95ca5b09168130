package environment

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// RegistryLookup finds installed Java runtimes in the platform registry.
// Each method returns "" when nothing is registered.
type RegistryLookup interface {
	JDK64() string
	JDK32() string
	JRE64() string
	JRE32() string
}

// RuntimeSource names where a runtime home was found.
type RuntimeSource string

const (
	SourceProcess  RuntimeSource = "process"
	SourceUser     RuntimeSource = "user"
	SourceMachine  RuntimeSource = "machine"
	SourceJDK64    RuntimeSource = "registry_jdk64"
	SourceJDK32    RuntimeSource = "registry_jdk32"
	SourceJRE64    RuntimeSource = "registry_jre64"
	SourceJRE32    RuntimeSource = "registry_jre32"
	SourceNotFound RuntimeSource = ""
)

// RuntimeHome is a discovered Java home and where it came from.
type RuntimeHome struct {
	Home   string
	Source RuntimeSource
}

// Found reports whether a home was discovered.
func (h RuntimeHome) Found() bool {
	return h.Home != ""
}

// Executable returns the path of the java binary in the home.
func (h RuntimeHome) Executable() string {
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	return filepath.Join(h.Home, "bin", name)
}

// Uses32Bit reports whether the home came from a 32-bit registry view.
func (h RuntimeHome) Uses32Bit() bool {
	return h.Source == SourceJDK32 || h.Source == SourceJRE32
}

// DiscoverRuntimeHome finds JAVA_HOME using process, user and machine scope
// first and the registry after that. The registry order is JDK 64-bit,
// JDK 32-bit, JRE 64-bit, then JRE 32-bit.
func DiscoverRuntimeHome(store Store, lookup RegistryLookup) (RuntimeHome, error) {
	value, scope, err := Discover(store, JavaHomeVariable)
	if err != nil {
		return RuntimeHome{}, fmt.Errorf("failed to discover %s: %w", JavaHomeVariable, err)
	}
	if value != "" {
		return RuntimeHome{Home: value, Source: RuntimeSource(scope)}, nil
	}

	if lookup == nil {
		return RuntimeHome{}, nil
	}
	candidates := []struct {
		source RuntimeSource
		get    func() string
	}{
		{SourceJDK64, lookup.JDK64},
		{SourceJDK32, lookup.JDK32},
		{SourceJRE64, lookup.JRE64},
		{SourceJRE32, lookup.JRE32},
	}
	for _, c := range candidates {
		if home := c.get(); home != "" {
			return RuntimeHome{Home: home, Source: c.source}, nil
		}
	}
	return RuntimeHome{}, nil
}

// StaticRegistry is a RegistryLookup with fixed values.
type StaticRegistry struct {
	JDK64Home string
	JDK32Home string
	JRE64Home string
	JRE32Home string
}

func (r StaticRegistry) JDK64() string { return r.JDK64Home }
func (r StaticRegistry) JDK32() string { return r.JDK32Home }
func (r StaticRegistry) JRE64() string { return r.JRE64Home }
func (r StaticRegistry) JRE32() string { return r.JRE32Home }
