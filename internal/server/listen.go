package server

import (
	"fmt"
	"net"
	"strconv"
)

// maxTCPPort is where retrying stops; ports past 65535 do not exist.
const maxTCPPort = 65535

// Listen binds the first free TCP port starting at cfg.Port. A busy port
// moves the attempt to port+1, up to cfg.MaxPortAttempts tries; any other
// bind error aborts immediately.
func (s *Server) Listen() error {
	port := s.cfg.Port
	attempts := s.cfg.MaxPortAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts && port <= maxTCPPort; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)))
		if err == nil {
			s.listener = ln
			s.port = ln.Addr().(*net.TCPAddr).Port
			return nil
		}
		if !isAddrInUse(err) {
			return fmt.Errorf("bind port %d: %w", port, err)
		}
		if i < attempts-1 && port < maxTCPPort {
			fmt.Fprintf(s.out, "⚠️  Port %d is busy, trying %d...\n", port, port+1)
		}
		port++
	}

	return fmt.Errorf("no free port between %d and %d", s.cfg.Port, port-1)
}
