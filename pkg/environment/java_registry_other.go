//go:build !windows

package environment

// NewRegistryLookup returns a lookup that never finds anything; there is no
// registry outside Windows.
func NewRegistryLookup() RegistryLookup {
	return StaticRegistry{}
}
