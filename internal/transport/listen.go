package transport

import (
	"context"
	"net"
	"syscall"
)

// listenConfig binds with address reuse enabled.
var listenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = setSocketOptions(fd)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

func listenPacket(network, address string) (net.PacketConn, error) {
	return listenConfig.ListenPacket(context.Background(), network, address)
}

// multicastInterfaces returns ifaces, or every up multicast-capable
// interface when ifaces is empty.
func multicastInterfaces(ifaces []net.Interface) ([]net.Interface, error) {
	if len(ifaces) > 0 {
		return ifaces, nil
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagMulticast != 0 {
			out = append(out, iface)
		}
	}
	return out, nil
}
