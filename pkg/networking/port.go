package networking

import (
	"fmt"
	"math/rand"
	"net"
)

const (
	// MinPort is the minimum port number to use for auto-selected ports
	MinPort = 10000
	// MaxPort is the maximum port number to use for auto-selected ports
	MaxPort = 65535
	// MaxAttempts is the maximum number of attempts to find an available port
	MaxAttempts = 10
)

// IsAvailable checks if a TCP port can be bound on the loopback interface.
func IsAvailable(port int) bool {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()

	return true
}

// FindAvailable finds an available port, returning 0 if none could be found.
func FindAvailable() int {
	for i := 0; i < MaxAttempts; i++ {
		port := rand.Intn(MaxPort-MinPort) + MinPort
		if IsAvailable(port) {
			return port
		}
	}
	return 0
}

// FindOrUsePort returns the requested port if it is available, or an
// auto-selected one when the requested port is 0.
func FindOrUsePort(port int) (int, error) {
	if port == 0 {
		port = FindAvailable()
		if port == 0 {
			return 0, fmt.Errorf("no available ports found between %d and %d", MinPort, MaxPort)
		}
		return port, nil
	}

	if port < 0 || port > MaxPort {
		return 0, fmt.Errorf("invalid port %d", port)
	}

	if !IsAvailable(port) {
		return 0, fmt.Errorf("port %d is already in use", port)
	}

	return port, nil
}
