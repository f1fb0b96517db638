// Package protocol holds the mDNS and DNS-SD constants shared by the record
// model, the transport and the resolution driver.
//
// RFC 6762 §5: mDNS uses UDP port 5353 with the groups 224.0.0.251 and ff02::fb.
package protocol

import (
	"time"

	"github.com/miekg/dns"
)

const (
	// Port is the mDNS UDP port.
	Port = 5353

	// MulticastAddrIPv4 is the IPv4 mDNS group address.
	MulticastAddrIPv4 = "224.0.0.251"

	// MulticastAddrIPv6 is the link-local IPv6 mDNS group address.
	MulticastAddrIPv6 = "ff02::fb"

	// MaxMessageSize bounds a single mDNS datagram (RFC 6762 §17).
	MaxMessageSize = 9000
)

const (
	// ClassIN is the Internet class.
	ClassIN uint16 = dns.ClassINET

	// ClassUnique is the top bit of the class field. In resource records it is
	// the cache-flush bit (RFC 6762 §10.2); in questions it requests a unicast
	// response (RFC 6762 §5.4).
	ClassUnique uint16 = 0x8000

	// ClassMask strips ClassUnique from a class value.
	ClassMask uint16 = 0x7fff

	// ClassINUnique marks a record set as owned by a single host.
	ClassINUnique = ClassIN | ClassUnique
)

// RFC 6762 §10: host-bound records (A, AAAA, SRV, NSEC) use 120 s, all
// others 75 minutes.
const (
	TTLHost  uint32 = 120
	TTLOther uint32 = 4500
)

const (
	// ListenerTime is the delay before the first retransmission of a query.
	ListenerTime = 200 * time.Millisecond

	// JitterMin and JitterMax bound the random delay added to each
	// retransmission so that queriers on a link do not synchronise.
	JitterMin = 20 * time.Millisecond
	JitterMax = 120 * time.Millisecond

	// LoadedSystemTimeout is the grace period a blocking request grants the
	// engine beyond the caller's timeout before declaring it blocked.
	LoadedSystemTimeout = 10 * time.Second

	// CacheCleanupInterval is how often the engine evicts expired records.
	CacheCleanupInterval = 10 * time.Second

	// GoodbyeTTL replaces a received TTL of zero (RFC 6762 §10.1).
	GoodbyeTTL uint32 = 1

	// FlushGrace is the age below which a record survives a cache-flush of
	// its RRset (RFC 6762 §10.2).
	FlushGrace = time.Second
)
