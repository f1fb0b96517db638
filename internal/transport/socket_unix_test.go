//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"testing"

	"golang.org/x/sys/unix"
)

// TestSetSocketOptions_Unix verifies SO_REUSEADDR and SO_REUSEPORT are set.
func TestSetSocketOptions_Unix(t *testing.T) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		t.Fatalf("Failed to create socket: %v", err)
	}
	defer func() { _ = unix.Close(fd) }()

	if err := setSocketOptions(uintptr(fd)); err != nil {
		t.Fatalf("setSocketOptions() failed: %v", err)
	}

	for name, opt := range map[string]int{"SO_REUSEADDR": unix.SO_REUSEADDR, "SO_REUSEPORT": unix.SO_REUSEPORT} {
		v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, opt)
		if err != nil {
			t.Fatalf("GetsockoptInt(%s) failed: %v", name, err)
		}
		if v == 0 {
			t.Errorf("%s = 0, want enabled", name)
		}
	}
}
