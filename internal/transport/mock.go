package transport

import (
	"context"
	"net"
	"sync"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// SentPacket is one Send call recorded by MockTransport.
type SentPacket struct {
	Packet []byte
	Dest   net.Addr
}

type inbound struct {
	packet  []byte
	src     net.Addr
	ifIndex int
}

// MockTransport is an in-memory Transport. Packets passed to Inject are
// returned by Receive; Send calls are recorded and published on Sends.
type MockTransport struct {
	group *net.UDPAddr

	inbox  chan inbound
	sends  chan SentPacket
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	sent    []SentPacket
	sendErr error
}

// NewMockTransport returns a mock serving the IPv4 mDNS group.
func NewMockTransport() *MockTransport {
	return NewMockTransportFor(&net.UDPAddr{IP: net.ParseIP(protocol.MulticastAddrIPv4), Port: protocol.Port})
}

// NewMockTransportFor returns a mock serving group.
func NewMockTransportFor(group *net.UDPAddr) *MockTransport {
	return &MockTransport{
		group:  group,
		inbox:  make(chan inbound, 64),
		sends:  make(chan SentPacket, 64),
		closed: make(chan struct{}),
	}
}

// Inject queues a packet for Receive.
func (m *MockTransport) Inject(packet []byte, src net.Addr, ifIndex int) {
	select {
	case m.inbox <- inbound{packet: packet, src: src, ifIndex: ifIndex}:
	case <-m.closed:
	}
}

// SetSendError makes subsequent Send calls fail with err.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Sent returns every recorded Send call.
func (m *MockTransport) Sent() []SentPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentPacket, len(m.sent))
	copy(out, m.sent)
	return out
}

// Sends publishes each successful Send. Publication is dropped when the
// buffer is full.
func (m *MockTransport) Sends() <-chan SentPacket {
	return m.sends
}

// Group implements Transport.
func (m *MockTransport) Group() *net.UDPAddr {
	return m.group
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	if err := ctx.Err(); err != nil {
		return &errors.NetworkError{Operation: "send query", Err: err, Details: "context canceled before send"}
	}

	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return &errors.NetworkError{Operation: "send query", Err: err, Details: "mock send failure"}
	}
	p := SentPacket{Packet: append([]byte(nil), packet...), Dest: dest}
	m.sent = append(m.sent, p)
	m.mu.Unlock()

	select {
	case m.sends <- p:
	default:
	}
	return nil
}

// Receive implements Transport.
func (m *MockTransport) Receive(ctx context.Context) ([]byte, net.Addr, int, error) {
	select {
	case in := <-m.inbox:
		return in.packet, in.src, in.ifIndex, nil
	case <-ctx.Done():
		return nil, nil, 0, &errors.NetworkError{Operation: "receive response", Err: ctx.Err(), Details: "context done"}
	case <-m.closed:
		return nil, nil, 0, &errors.NetworkError{Operation: "receive response", Err: net.ErrClosed, Details: "transport closed"}
	}
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
