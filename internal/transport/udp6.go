package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// UDPv6Transport implements Transport for IPv6 multicast on ff02::fb.
type UDPv6Transport struct {
	conn     net.PacketConn
	ipv6Conn *ipv6.PacketConn
	group    *net.UDPAddr
}

// NewUDPv6Transport opens the IPv6 mDNS socket, joining the link-local group
// on each selected interface.
func NewUDPv6Transport(ifaces []net.Interface) (*UDPv6Transport, error) {
	group := &net.UDPAddr{IP: net.ParseIP(protocol.MulticastAddrIPv6), Port: protocol.Port}

	conn, err := listenPacket("udp6", net.JoinHostPort("::", strconv.Itoa(protocol.Port)))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp6 port %d", protocol.Port),
		}
	}

	p := ipv6.NewPacketConn(conn)
	candidates, err := multicastInterfaces(ifaces)
	joined := 0
	for i := range candidates {
		if p.JoinGroup(&candidates[i], &net.UDPAddr{IP: group.IP}) == nil {
			joined++
		}
	}
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

	if err := p.SetMulticastHopLimit(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set multicast hop limit"}
	}
	_ = p.SetMulticastLoopback(true)
	_ = p.SetControlMessage(ipv6.FlagInterface, true)

	return &UDPv6Transport{conn: conn, ipv6Conn: p, group: group}, nil
}

// Group implements Transport.
func (t *UDPv6Transport) Group() *net.UDPAddr {
	return t.group
}

// Send implements Transport.
func (t *UDPv6Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	return sendPacket(ctx, t.conn, packet, dest)
}

// Receive implements Transport.
func (t *UDPv6Transport) Receive(ctx context.Context) ([]byte, net.Addr, int, error) {
	if err := prepareRead(ctx, t.conn); err != nil {
		return nil, nil, 0, err
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, cm, srcAddr, err := t.ipv6Conn.ReadFrom(buffer)
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
func (t *UDPv6Transport) Close() error {
	return closeConn(t.conn)
}
