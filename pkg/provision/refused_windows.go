//go:build windows

package provision

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// IsConnectionRefused reports whether err was caused by the peer refusing
// the connection.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, windows.WSAECONNREFUSED) || errors.Is(err, syscall.ECONNREFUSED)
}
