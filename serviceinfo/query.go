package serviceinfo

import (
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/records"
)

// GenerateRequestQuery builds the next query for the service. SRV and TXT are
// asked for the instance name and A/AAAA for the server (or the instance name
// when no server is known), each unless c already holds a live answer. Live
// cached answers are attached as known answers with their remaining TTL
// (RFC 6762 §7.1). The message has no questions when nothing needs asking.
//
// QuestionUnicast sets the unicast-response bit on every question; any
// other value asks for multicast responses.
func (i *Info) GenerateRequestQuery(c Cache, now time.Time, qt QuestionType) *dns.Msg {
	i.mu.Lock()
	name := i.name
	target := i.server
	if target == "" {
		target = i.name
	}
	i.mu.Unlock()

	qclass := protocol.ClassIN
	if qt == QuestionUnicast {
		qclass |= protocol.ClassUnique
	}

	msg := &dns.Msg{Compress: true}
	ask := func(owner string, rrtype uint16) {
		msg.Question = append(msg.Question, dns.Question{Name: dns.Fqdn(owner), Qtype: rrtype, Qclass: qclass})
	}
	knownAnswer := func(r Record) {
		rr, err := records.Restamp(r, r.Header().RemainingTTL(now), now).RR()
		if err != nil {
			return
		}
		msg.Answer = append(msg.Answer, rr)
	}

	for _, rrtype := range []uint16{dns.TypeSRV, dns.TypeTXT} {
		cached := c.GetOne(name, rrtype, protocol.ClassIN)
		if cached == nil || cached.Header().IsExpired(now) {
			ask(name, rrtype)
			continue
		}
		knownAnswer(cached)
	}

	for _, rrtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		live := 0
		for _, cached := range c.GetAll(target, rrtype, protocol.ClassIN) {
			if cached.Header().IsExpired(now) {
				continue
			}
			knownAnswer(cached)
			live++
		}
		if live == 0 {
			ask(target, rrtype)
		}
	}

	return msg
}
