package serviceinfo_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuafuller/svcinfo/engine"
	"github.com/joshuafuller/svcinfo/internal/logger"
	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/records"
	"github.com/joshuafuller/svcinfo/internal/transport"
	"github.com/joshuafuller/svcinfo/serviceinfo"
)

const (
	serviceType = "_ipp._tcp.local."
	instance    = "Office Printer._ipp._tcp.local."
	host        = "office-printer.local."
)

func startEngine(t *testing.T) (*engine.Engine, *transport.MockTransport) {
	t.Helper()
	mock := transport.NewMockTransport()
	eng, err := engine.New(engine.WithTransports(mock), engine.WithLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })
	return eng, mock
}

func printerResponse(t *testing.T) []byte {
	t.Helper()
	unique := protocol.ClassINUnique

	txt, err := records.TextRR(dns.RR_Header{Name: instance, Class: unique, Ttl: 4500}, []byte("\x0arp=printer\x07color=T"))
	require.NoError(t, err)

	m := new(dns.Msg)
	m.Response = true
	m.Authoritative = true
	m.Answer = []dns.RR{
		&dns.SRV{Hdr: dns.RR_Header{Name: instance, Rrtype: dns.TypeSRV, Class: unique, Ttl: 120}, Port: 631, Target: host},
		txt,
	}
	m.Extra = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: host, Rrtype: dns.TypeA, Class: unique, Ttl: 120}, A: net.IPv4(192, 168, 1, 50).To4()},
		&dns.AAAA{Hdr: dns.RR_Header{Name: host, Rrtype: dns.TypeAAAA, Class: unique, Ttl: 120}, AAAA: net.ParseIP("fe80::50")},
	}
	packet, err := m.Pack()
	require.NoError(t, err)
	return packet
}

func TestResolve_OverEngine(t *testing.T) {
	eng, mock := startEngine(t)
	response := printerResponse(t)

	go func() {
		select {
		case query := <-mock.Sends():
			msg := new(dns.Msg)
			if msg.Unpack(query.Packet) != nil || len(msg.Question) == 0 {
				return
			}
			mock.Inject(response, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: protocol.Port}, 2)
		case <-time.After(5 * time.Second):
		}
	}()

	info, err := serviceinfo.New(serviceType, instance, serviceinfo.WithInterfaceIndex(2))
	require.NoError(t, err)

	ok, err := info.Request(context.Background(), eng, 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, host, info.Server())
	port, _ := info.Port()
	assert.Equal(t, uint16(631), port)
	assert.Equal(t, []byte("printer"), info.Properties()["rp"])
	assert.Equal(t, []string{"192.168.1.50"}, info.ParsedAddresses(serviceinfo.V4Only))

	// The AAAA record arrived in the same packet, so it is cached even if
	// the request completed before it was applied.
	again, err := serviceinfo.New(serviceType, instance, serviceinfo.WithInterfaceIndex(2))
	require.NoError(t, err)
	require.True(t, again.LoadFromCache(eng.Cache(), time.Time{}))
	assert.Equal(t, []string{"192.168.1.50", "fe80::50%2"}, again.ParsedScopedAddresses(serviceinfo.All))

	sent := mock.Sent()
	require.NotEmpty(t, sent)
	first := new(dns.Msg)
	require.NoError(t, first.Unpack(sent[0].Packet))
	for _, q := range first.Question {
		assert.Equal(t, protocol.ClassINUnique, q.Qclass, "first query asks for unicast responses")
	}
}

func TestResolve_CacheAvoidsTraffic(t *testing.T) {
	eng, mock := startEngine(t)

	first, err := serviceinfo.New(serviceType, instance)
	require.NoError(t, err)

	response := printerResponse(t)
	go func() {
		<-mock.Sends()
		mock.Inject(response, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: protocol.Port}, 0)
	}()
	ok, err := first.Request(context.Background(), eng, 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	sends := len(mock.Sent())

	second, err := serviceinfo.New(serviceType, instance)
	require.NoError(t, err)
	ok, err = second.Request(context.Background(), eng, 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, mock.Sent(), sends, "second resolution is answered by the cache")
}

// recursiveListener tries a blocking Request from inside an engine callback.
type recursiveListener struct {
	eng    *engine.Engine
	info   *serviceinfo.Info
	result chan error
}

func (l *recursiveListener) UpdateRecords(ctx context.Context, _ serviceinfo.Cache, _ time.Time, _ []serviceinfo.Update) {
	_, err := l.info.Request(ctx, l.eng, time.Second)
	select {
	case l.result <- err:
	default:
	}
}

func (l *recursiveListener) UpdateRecordsComplete() {}

func TestResolve_BlockingRequestFromCallback(t *testing.T) {
	eng, mock := startEngine(t)
	info, err := serviceinfo.New(serviceType, instance)
	require.NoError(t, err)

	l := &recursiveListener{eng: eng, info: info, result: make(chan error, 1)}
	eng.AddListener(l, nil)
	mock.Inject(printerResponse(t), &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: protocol.Port}, 0)

	select {
	case err := <-l.result:
		assert.ErrorIs(t, err, serviceinfo.ErrWrongContext)
	case <-time.After(3 * time.Second):
		t.Fatal("listener was not called")
	}
}
