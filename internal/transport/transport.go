// Package transport is the uniform byte-stream boundary the engine
// consumes (spec.md §6): an address is "scheme://specific", split on
// "://" and resolved against a small registry of named transports.
// Concrete transports (tcp, ipc) are the only place that dials or
// listens; the engine, pipes and acceptors work with the net.Conn and
// net.Listener values they return and never choose a network themselves.
package transport

import (
	"fmt"
	"net"
	"strings"
)

// Transport connects or binds to the "specific" part of an address.
type Transport interface {
	Connect(specific string) (net.Conn, error)
	Listen(specific string) (net.Listener, error)
}

var registry = map[string]Transport{
	"tcp": tcpTransport{},
	"ipc": ipcTransport{},
}

// Register installs a transport under scheme, overwriting any existing
// registration. Exists so an embedding application can add its own
// transport without forking the engine.
func Register(scheme string, t Transport) {
	registry[scheme] = t
}

// Split parses "scheme://specific" into its two parts.
func Split(addr string) (scheme, specific string, err error) {
	i := strings.Index(addr, "://")
	if i < 0 {
		return "", "", fmt.Errorf("sp: malformed address %q: missing scheme://", addr)
	}
	return addr[:i], addr[i+3:], nil
}

// Resolve looks up the transport named by addr's scheme.
func Resolve(addr string) (Transport, string, error) {
	scheme, specific, err := Split(addr)
	if err != nil {
		return nil, "", err
	}
	t, ok := registry[scheme]
	if !ok {
		return nil, "", fmt.Errorf("sp: unknown transport scheme %q", scheme)
	}
	return t, specific, nil
}
