//go:build !windows

package provision

import (
	"errors"
	"syscall"
)

// IsConnectionRefused reports whether err was caused by the peer refusing
// the connection.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
