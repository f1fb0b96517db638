package serviceinfo

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuafuller/svcinfo/internal/cache"
	"github.com/joshuafuller/svcinfo/internal/protocol"
)

func questionTypes(msg *dns.Msg) map[string][]uint16 {
	out := make(map[string][]uint16)
	for _, q := range msg.Question {
		out[q.Name] = append(out[q.Name], q.Qtype)
	}
	return out
}

func TestGenerateRequestQuery_EmptyCache(t *testing.T) {
	info, _ := newTestInfo(t)
	c := cache.New()

	msg := info.GenerateRequestQuery(c, epoch, QuestionUnicast)
	assert.Equal(t, map[string][]uint16{
		testName: {dns.TypeSRV, dns.TypeTXT, dns.TypeA, dns.TypeAAAA},
	}, questionTypes(msg))
	for _, q := range msg.Question {
		assert.Equal(t, protocol.ClassINUnique, q.Qclass, "QU bit set")
	}
	assert.Empty(t, msg.Answer)
	assert.False(t, msg.Response)
	assert.Zero(t, msg.Id)

	info.SetServer(testHost)
	msg = info.GenerateRequestQuery(c, epoch, QuestionMulticast)
	assert.Equal(t, map[string][]uint16{
		testName: {dns.TypeSRV, dns.TypeTXT},
		testHost: {dns.TypeA, dns.TypeAAAA},
	}, questionTypes(msg))
	for _, q := range msg.Question {
		assert.Equal(t, protocol.ClassIN, q.Qclass, "QM question")
	}
}

func TestGenerateRequestQuery_KnownAnswers(t *testing.T) {
	info, _ := newTestInfo(t, WithServer(testHost))
	c := cache.New()
	c.Add(srvRecord(testHost, 631, epoch))
	c.Add(addressRecord(testHost, "10.0.0.1", 120, epoch))
	c.Add(addressRecord(testHost, "10.0.0.2", 120, epoch))
	c.Add(txtRecord("\x03a=1", epoch.Add(-time.Hour*2)))

	now := epoch.Add(20 * time.Second)
	msg := info.GenerateRequestQuery(c, now, QuestionMulticast)

	assert.Equal(t, map[string][]uint16{
		testName: {dns.TypeTXT},
		testHost: {dns.TypeAAAA},
	}, questionTypes(msg), "expired TXT is asked again")

	require.Len(t, msg.Answer, 3)
	srv, ok := msg.Answer[0].(*dns.SRV)
	require.True(t, ok)
	assert.Equal(t, uint32(100), srv.Hdr.Ttl, "known answers carry their remaining TTL")
	assert.Equal(t, uint16(631), srv.Port)
	for _, rr := range msg.Answer[1:] {
		a, ok := rr.(*dns.A)
		require.True(t, ok)
		assert.Equal(t, uint32(100), a.Hdr.Ttl)
	}

	_, err := msg.Pack()
	require.NoError(t, err)
}

func TestGenerateRequestQuery_NothingToAsk(t *testing.T) {
	info, _ := newTestInfo(t, WithServer(testHost))
	c := cache.New()
	c.Add(srvRecord(testHost, 631, epoch))
	c.Add(txtRecord("", epoch))
	c.Add(addressRecord(testHost, "10.0.0.1", 120, epoch))
	c.Add(addressRecord(testHost, "fd00::1", 120, epoch))

	msg := info.GenerateRequestQuery(c, epoch, QuestionUnicast)
	assert.Empty(t, msg.Question)
	assert.Len(t, msg.Answer, 4)
}
