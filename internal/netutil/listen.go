// Package netutil reserves TCP listeners before the services that use them
// start. A listener bound here is handed straight to the HTTP server, so
// there is no window between picking a free port and binding it.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// DefaultMaxAttempts bounds the fallback port search.
const DefaultMaxAttempts = 100

// AddressInUseError is returned when the requested port is taken.
type AddressInUseError struct {
	Address string
	Port    int
	Err     error
}

func (e *AddressInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use on %s", e.Port, e.Address)
}

func (e *AddressInUseError) Unwrap() error {
	return e.Err
}

// BindTCP binds an IPv4 TCP listener on address:port.
func BindTCP(address string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(address, fmt.Sprint(port))
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		if IsAddressInUseError(err) {
			return nil, &AddressInUseError{Address: address, Port: port, Err: err}
		}
		return nil, fmt.Errorf("failed to bind TCP to %s: %w", addr, err)
	}
	return listener, nil
}

// BindTCPWithFallback binds preferredPort, or the next free port after it
// when it is taken, trying at most maxAttempts ports. It returns the
// listener and the port actually bound.
func BindTCPWithFallback(address string, preferredPort, maxAttempts int) (net.Listener, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for port := preferredPort; port < preferredPort+maxAttempts && port <= 65535; port++ {
		listener, err := BindTCP(address, port)
		if err != nil {
			var inUse *AddressInUseError
			if errors.As(err, &inUse) {
				continue
			}
			return nil, 0, fmt.Errorf("failed to bind TCP starting from port %d: %w", preferredPort, err)
		}
		return listener, port, nil
	}

	return nil, 0, fmt.Errorf("no available TCP port found in range %d-%d on %s",
		preferredPort, preferredPort+maxAttempts-1, address)
}

// ListenerPort returns the port a TCP listener is bound to.
func ListenerPort(listener net.Listener) (int, error) {
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener is not a TCP listener: %T", listener.Addr())
	}
	return tcpAddr.Port, nil
}
