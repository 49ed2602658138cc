package transport

import "net"

// tcpTransport dials/listens on plain TCP. specific is "host:port".
type tcpTransport struct{}

func (tcpTransport) Connect(specific string) (net.Conn, error) {
	return net.Dial("tcp", specific)
}

func (tcpTransport) Listen(specific string) (net.Listener, error) {
	return net.Listen("tcp", specific)
}
