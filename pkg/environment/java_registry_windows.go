//go:build windows

package environment

import (
	"golang.org/x/sys/windows/registry"
)

const (
	jreRootPath = `SOFTWARE\JavaSoft\Java Runtime Environment`
	jdkRootPath = `SOFTWARE\JavaSoft\Java Development Kit`
)

// NewRegistryLookup reads JavaSoft keys from both registry views.
func NewRegistryLookup() RegistryLookup {
	return javaSoftRegistry{}
}

type javaSoftRegistry struct{}

func (javaSoftRegistry) JDK64() string { return javaHome(registry.WOW64_64KEY, jdkRootPath) }
func (javaSoftRegistry) JDK32() string { return javaHome(registry.WOW64_32KEY, jdkRootPath) }
func (javaSoftRegistry) JRE64() string { return javaHome(registry.WOW64_64KEY, jreRootPath) }
func (javaSoftRegistry) JRE32() string { return javaHome(registry.WOW64_32KEY, jreRootPath) }

// javaHome reads CurrentVersion under root and then JavaHome under
// root\<CurrentVersion>.
func javaHome(view uint32, root string) string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, root, registry.QUERY_VALUE|view)
	if err != nil {
		return ""
	}
	current, _, err := k.GetStringValue("CurrentVersion")
	k.Close()
	if err != nil || current == "" {
		return ""
	}

	vk, err := registry.OpenKey(registry.LOCAL_MACHINE, root+`\`+current, registry.QUERY_VALUE|view)
	if err != nil {
		return ""
	}
	defer vk.Close()
	home, _, err := vk.GetStringValue("JavaHome")
	if err != nil {
		return ""
	}
	return home
}
