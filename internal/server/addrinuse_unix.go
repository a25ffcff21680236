//go:build !windows

package server

import (
	"errors"
	"syscall"
)

// isAddrInUse reports whether err is the bind failure for an occupied port.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
