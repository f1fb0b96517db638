// Package transport provides the network transports the engine sends queries
// and receives responses over.
//
// Implementations:
//   - UDPv4Transport: IPv4 multicast on 224.0.0.251:5353
//   - UDPv6Transport: IPv6 multicast on [ff02::fb]:5353
//   - MockTransport: in-memory double for tests
package transport

import (
	"context"
	"net"
)

// Transport abstracts network operations for sending and receiving mDNS packets.
type Transport interface {
	// Send transmits a packet to dest.
	//
	// Returns a NetworkError on transmission failure or when ctx is already done.
	Send(ctx context.Context, packet []byte, dest net.Addr) error

	// Receive waits for the next packet.
	//
	// interfaceIndex is the OS index of the receiving interface when control
	// messages are available, 0 otherwise. A ctx deadline is propagated to
	// the socket read deadline. Closing the transport unblocks Receive.
	Receive(ctx context.Context) (packet []byte, srcAddr net.Addr, interfaceIndex int, err error)

	// Group is the multicast group and port this transport serves.
	Group() *net.UDPAddr

	// Close releases network resources and propagates the close error.
	Close() error
}
