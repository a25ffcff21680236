//go:build windows

package server

import (
	"errors"
	"syscall"
)

// Winsock reports an occupied port as WSAEADDRINUSE, which is not what the
// syscall package's EADDRINUSE maps to on Windows.
const wsaEADDRINUSE = syscall.Errno(10048)

// isAddrInUse reports whether err is the bind failure for an occupied port.
func isAddrInUse(err error) bool {
	return errors.Is(err, wsaEADDRINUSE) || errors.Is(err, syscall.EADDRINUSE)
}
