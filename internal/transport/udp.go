package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// UDPv4Transport implements Transport for IPv4 multicast.
//
// The socket binds 0.0.0.0:5353 with address reuse, joins 224.0.0.251 on
// every selected interface and reports the receiving interface index from
// IP_PKTINFO / IP_RECVIF control messages.
type UDPv4Transport struct {
	conn     net.PacketConn
	ipv4Conn *ipv4.PacketConn
	group    *net.UDPAddr
}

// NewUDPv4Transport opens the IPv4 mDNS socket. With no interfaces given, the
// group is joined on every up multicast interface.
//
// Returns a NetworkError if the socket cannot be created or no interface
// could join the group.
func NewUDPv4Transport(ifaces []net.Interface) (*UDPv4Transport, error) {
	group := &net.UDPAddr{IP: net.ParseIP(protocol.MulticastAddrIPv4), Port: protocol.Port}

	conn, err := listenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(protocol.Port)))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp4 port %d", protocol.Port),
		}
	}

	p := ipv4.NewPacketConn(conn)
	joined, err := joinIPv4(p, group, ifaces)
	if err != nil || joined == 0 {
		_ = conn.Close()
		if err == nil {
			err = fmt.Errorf("no interface joined %s", group.IP)
		}
		return nil, &errors.NetworkError{
			Operation: "join multicast group",
			Err:       err,
			Details:   group.String(),
		}
	}

	// RFC 6762 §11: mDNS packets carry IP TTL 255.
	if err := p.SetMulticastTTL(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set multicast TTL"}
	}
	_ = p.SetMulticastLoopback(true)

	// Control messages are unavailable on some platforms; Receive then
	// reports interface index 0.
	_ = p.SetControlMessage(ipv4.FlagInterface, true)

	return &UDPv4Transport{conn: conn, ipv4Conn: p, group: group}, nil
}

func joinIPv4(p *ipv4.PacketConn, group *net.UDPAddr, ifaces []net.Interface) (int, error) {
	candidates, err := multicastInterfaces(ifaces)
	if err != nil {
		return 0, err
	}
	joined := 0
	for i := range candidates {
		if p.JoinGroup(&candidates[i], &net.UDPAddr{IP: group.IP}) == nil {
			joined++
		}
	}
	return joined, nil
}

// Group implements Transport.
func (t *UDPv4Transport) Group() *net.UDPAddr {
	return t.group
}

// Send implements Transport.
func (t *UDPv4Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	return sendPacket(ctx, t.conn, packet, dest)
}

// Receive implements Transport.
func (t *UDPv4Transport) Receive(ctx context.Context) ([]byte, net.Addr, int, error) {
	if err := prepareRead(ctx, t.conn); err != nil {
		return nil, nil, 0, err
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, cm, srcAddr, err := t.ipv4Conn.ReadFrom(buffer)
	if err != nil {
		return nil, nil, 0, readError(err)
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}

	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, ifIndex, nil
}

// Close implements Transport.
func (t *UDPv4Transport) Close() error {
	return closeConn(t.conn)
}

func sendPacket(ctx context.Context, conn net.PacketConn, packet []byte, dest net.Addr) error {
	if err := ctx.Err(); err != nil {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       err,
			Details:   "context canceled before send",
		}
	}

	n, err := conn.WriteTo(packet, dest)
	if err != nil {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(packet), dest),
		}
	}
	if n != len(packet) {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(packet)),
			Details:   "incomplete transmission",
		}
	}
	return nil
}

func prepareRead(ctx context.Context, conn net.PacketConn) error {
	if err := ctx.Err(); err != nil {
		return &errors.NetworkError{
			Operation: "receive response",
			Err:       err,
			Details:   "context canceled before receive",
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return &errors.NetworkError{
				Operation: "set read timeout",
				Err:       err,
				Details:   fmt.Sprintf("failed to set deadline %v", deadline),
			}
		}
	}
	return nil
}

func readError(err error) error {
	details := "failed to read from socket"
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		details = "timeout"
	}
	return &errors.NetworkError{Operation: "receive response", Err: err, Details: details}
}

func closeConn(conn net.PacketConn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   "failed to close UDP connection",
		}
	}
	return nil
}
