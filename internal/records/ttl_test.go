package records

import (
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// TestEntry_RemainingTTL tests remaining TTL calculation.
//
// RFC 6762 §10: TTL values decrease over time
func TestEntry_RemainingTTL(t *testing.T) {
	tests := []struct {
		name       string
		ttl        uint32
		elapsed    time.Duration
		wantRemain uint32
	}{
		{
			name:       "fresh record - no time elapsed",
			ttl:        protocol.TTLOther,
			elapsed:    0,
			wantRemain: 4500,
		},
		{
			name:       "half TTL elapsed",
			ttl:        protocol.TTLHost,
			elapsed:    60 * time.Second,
			wantRemain: 60,
		},
		{
			name:       "partial second rounds down",
			ttl:        protocol.TTLHost,
			elapsed:    500 * time.Millisecond,
			wantRemain: 119,
		},
		{
			name:       "fully elapsed returns 0",
			ttl:        protocol.TTLHost,
			elapsed:    120 * time.Second,
			wantRemain: 0,
		},
		{
			name:       "over-elapsed returns 0",
			ttl:        protocol.TTLHost,
			elapsed:    200 * time.Second,
			wantRemain: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry("host.local.", dns.TypeA, protocol.ClassIN, tt.ttl, epoch)

			gotRemain := entry.RemainingTTL(epoch.Add(tt.elapsed))
			if gotRemain != tt.wantRemain {
				t.Errorf("RemainingTTL() = %d, want %d (ttl=%d, elapsed=%v)",
					gotRemain, tt.wantRemain, tt.ttl, tt.elapsed)
			}
		})
	}
}

// TestEntry_IsExpired tests expiration checking.
//
// RFC 6762 §10: Records expire when TTL reaches zero
func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name        string
		ttl         uint32
		elapsed     time.Duration
		wantExpired bool
	}{
		{
			name:        "fresh record not expired",
			ttl:         protocol.TTLHost,
			elapsed:     0,
			wantExpired: false,
		},
		{
			name:        "one millisecond before expiry not expired",
			ttl:         protocol.TTLHost,
			elapsed:     120*time.Second - time.Millisecond,
			wantExpired: false,
		},
		{
			name:        "exactly at TTL is expired",
			ttl:         protocol.TTLHost,
			elapsed:     120 * time.Second,
			wantExpired: true,
		},
		{
			name:        "zero TTL is expired immediately",
			ttl:         0,
			elapsed:     0,
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry("host.local.", dns.TypeA, protocol.ClassIN, tt.ttl, epoch)

			gotExpired := entry.IsExpired(epoch.Add(tt.elapsed))
			if gotExpired != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v (ttl=%d, elapsed=%v)",
					gotExpired, tt.wantExpired, tt.ttl, tt.elapsed)
			}
		})
	}
}

// TestEntry_ClassAndKey covers the cache-flush bit and case folding.
//
// RFC 6762 §10.2: the top bit of the rrclass field is the cache-flush bit.
func TestEntry_ClassAndKey(t *testing.T) {
	entry := NewEntry("MyHost.Local", dns.TypeA, protocol.ClassINUnique, protocol.TTLHost, epoch)

	if entry.Name != "MyHost.Local." {
		t.Errorf("Name = %q, want fully qualified %q", entry.Name, "MyHost.Local.")
	}
	if entry.Key() != "myhost.local." {
		t.Errorf("Key() = %q, want %q", entry.Key(), "myhost.local.")
	}
	if !entry.Unique() {
		t.Error("Unique() = false, want true for ClassINUnique")
	}
	if entry.BaseClass() != protocol.ClassIN {
		t.Errorf("BaseClass() = %d, want %d", entry.BaseClass(), protocol.ClassIN)
	}
	if entry.TypeName() != "A" {
		t.Errorf("TypeName() = %q, want A", entry.TypeName())
	}
}

// TestTTL_Values validates the RFC 6762 §10 TTL constants.
func TestTTL_Values(t *testing.T) {
	if protocol.TTLHost != 120 {
		t.Errorf("protocol.TTLHost = %d, want 120", protocol.TTLHost)
	}
	if protocol.TTLOther != 4500 {
		t.Errorf("protocol.TTLOther = %d, want 4500 (75 minutes)", protocol.TTLOther)
	}
}
