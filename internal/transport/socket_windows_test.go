//go:build windows

package transport

import (
	"syscall"
	"testing"
)

// TestSetSocketOptions_Windows verifies SO_REUSEADDR can be set on Windows.
// Windows has no SO_REUSEPORT.
func TestSetSocketOptions_Windows(t *testing.T) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		t.Fatalf("Failed to create socket: %v", err)
	}
	defer func() { _ = syscall.Close(fd) }()

	if err := setSocketOptions(uintptr(fd)); err != nil {
		t.Fatalf("setSocketOptions() failed: %v", err)
	}
}
