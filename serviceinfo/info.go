package serviceinfo

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/ledger"
	"github.com/joshuafuller/svcinfo/internal/logger"
	"github.com/joshuafuller/svcinfo/internal/names"
	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/txt"
	"github.com/joshuafuller/svcinfo/internal/waiters"
)

// attributeCell caches the decoded TXT attributes. It is either uncomputed
// or holds the decoding of the current text.
type attributeCell struct {
	computed bool
	attrs    map[string][]byte
}

// Info is the live state of one service instance.
//
// All methods are safe for concurrent use. Records can be applied from the
// engine loop while other goroutines read the state or drive a Request.
type Info struct {
	mu sync.Mutex

	serviceType string
	name        string
	key         string
	server      string
	serverKey   string

	port     uint16
	hasPort  bool
	weight   uint16
	priority uint16

	text  []byte
	attrs attributeCell

	ipv4 *ledger.Ledger
	ipv6 *ledger.Ledger

	hostTTL        uint32
	otherTTL       uint32
	interfaceIndex int

	waiters *waiters.Registry
	clock   clock.Clock
	log     *slog.Logger
}

type settings struct {
	port     uint16
	hasPort  bool
	weight   uint16
	priority uint16
	server   string

	text []byte

	addresses    [][]byte
	parsed       []string
	hasAddresses bool
	hasParsed    bool

	hostTTL        uint32
	otherTTL       uint32
	interfaceIndex int

	clock  clock.Clock
	logger *slog.Logger
}

// Option configures an Info at construction.
type Option func(*settings) error

// WithPort sets the service port.
func WithPort(port uint16) Option {
	return func(s *settings) error {
		s.port, s.hasPort = port, true
		return nil
	}
}

// WithWeight sets the SRV weight.
func WithWeight(weight uint16) Option {
	return func(s *settings) error {
		s.weight = weight
		return nil
	}
}

// WithPriority sets the SRV priority.
func WithPriority(priority uint16) Option {
	return func(s *settings) error {
		s.priority = priority
		return nil
	}
}

// WithServer sets the target host name. A missing trailing dot is added.
func WithServer(server string) Option {
	return func(s *settings) error {
		s.server = server
		return nil
	}
}

// WithText sets the raw TXT payload.
func WithText(raw []byte) Option {
	return func(s *settings) error {
		s.text = bytes.Clone(raw)
		return nil
	}
}

// WithProperties encodes attrs as the TXT payload. See txt.EncodeValues for
// how values are converted.
func WithProperties(attrs map[string]any) Option {
	return func(s *settings) error {
		raw, err := txt.EncodeValues(attrs)
		if err != nil {
			return err
		}
		s.text = raw
		return nil
	}
}

// WithAddresses sets addresses in packed form (4 or 16 bytes each).
func WithAddresses(addrs ...[]byte) Option {
	return func(s *settings) error {
		s.addresses, s.hasAddresses = addrs, true
		return nil
	}
}

// WithParsedAddresses sets addresses in textual form.
func WithParsedAddresses(addrs ...string) Option {
	return func(s *settings) error {
		s.parsed, s.hasParsed = addrs, true
		return nil
	}
}

// WithHostTTL overrides the TTL of address, SRV and NSEC records.
func WithHostTTL(ttl uint32) Option {
	return func(s *settings) error {
		s.hostTTL = ttl
		return nil
	}
}

// WithOtherTTL overrides the TTL of PTR and TXT records.
func WithOtherTTL(ttl uint32) Option {
	return func(s *settings) error {
		s.otherTTL = ttl
		return nil
	}
}

// WithInterfaceIndex sets the interface link-local IPv6 addresses are scoped to.
func WithInterfaceIndex(index int) Option {
	return func(s *settings) error {
		if index < 0 {
			return &errors.ValidationError{Field: "interface index", Value: index, Message: "must not be negative"}
		}
		s.interfaceIndex = index
		return nil
	}
}

// WithClock sets the clock used to stamp emitted records.
func WithClock(c clock.Clock) Option {
	return func(s *settings) error {
		s.clock = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) error {
		s.logger = l
		return nil
	}
}

// New creates the state for instance name of serviceType, for example
// New("_http._tcp.local.", "My Printer._http._tcp.local.", WithPort(631)).
//
// It fails with an error wrapping ErrBadTypeInName when name does not belong
// to serviceType, and ErrConflictingAddresses when both WithAddresses and
// WithParsedAddresses are given. Malformed addresses are logged and skipped.
func New(serviceType, name string, opts ...Option) (*Info, error) {
	derived, err := names.ServiceTypeName(name, false)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(serviceType, derived) {
		return nil, &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("does not belong to service type %q", serviceType),
			Err:     errors.ErrBadTypeInName,
		}
	}

	s := settings{
		hostTTL:  protocol.TTLHost,
		otherTTL: protocol.TTLOther,
	}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}
	if s.hasAddresses && s.hasParsed {
		return nil, errors.ErrConflictingAddresses
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = logger.Logger("serviceinfo")
	}
	if s.text == nil {
		s.text = []byte{}
	}

	info := &Info{
		serviceType:    serviceType,
		name:           name,
		key:            strings.ToLower(name),
		port:           s.port,
		hasPort:        s.hasPort,
		weight:         s.weight,
		priority:       s.priority,
		text:           s.text,
		ipv4:           ledger.New(),
		ipv6:           ledger.New(),
		hostTTL:        s.hostTTL,
		otherTTL:       s.otherTTL,
		interfaceIndex: s.interfaceIndex,
		waiters:        waiters.NewRegistry(),
		clock:          s.clock,
		log:            s.logger.With("service", name),
	}
	info.setServerLocked(s.server)

	switch {
	case s.hasAddresses:
		info.setPackedAddressesLocked(s.addresses)
	case s.hasParsed:
		info.setParsedAddressesLocked(s.parsed)
	}
	return info, nil
}

// Type returns the service type.
func (i *Info) Type() string {
	return i.serviceType
}

// Name returns the fully qualified instance name.
func (i *Info) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.name
}

// Key returns the lowercased instance name.
func (i *Info) Key() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.key
}

// SetName replaces the instance name.
func (i *Info) SetName(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.name = name
	i.key = strings.ToLower(name)
}

// InstanceName returns the name without the service type suffix, e.g.
// "My Printer" for "My Printer._http._tcp.local.".
func (i *Info) InstanceName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return names.InstanceName(i.name, i.serviceType)
}

// Server returns the target host name, or "" when unknown.
func (i *Info) Server() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.server
}

// ServerKey returns the lowercased host name.
func (i *Info) ServerKey() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.serverKey
}

// SetServer replaces the target host name.
func (i *Info) SetServer(server string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.setServerLocked(server)
}

// SetServerIfMissing defaults the host name to the instance name.
func (i *Info) SetServerIfMissing() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.server == "" {
		i.setServerLocked(i.name)
	}
}

func (i *Info) setServerLocked(server string) {
	if server != "" {
		server = dns.Fqdn(server)
	}
	i.server = server
	i.serverKey = strings.ToLower(server)
}

// Port returns the service port; ok is false until one is known.
func (i *Info) Port() (port uint16, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.port, i.hasPort
}

// SetPort sets the service port.
func (i *Info) SetPort(port uint16) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.port, i.hasPort = port, true
}

// Weight returns the SRV weight.
func (i *Info) Weight() uint16 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.weight
}

// Priority returns the SRV priority.
func (i *Info) Priority() uint16 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.priority
}

// HostTTL returns the TTL used for address, SRV and NSEC records.
func (i *Info) HostTTL() uint32 {
	return i.hostTTL
}

// OtherTTL returns the TTL used for PTR and TXT records.
func (i *Info) OtherTTL() uint32 {
	return i.otherTTL
}

// InterfaceIndex returns the scope for link-local IPv6 addresses, 0 if unknown.
func (i *Info) InterfaceIndex() int {
	return i.interfaceIndex
}

// Text returns a copy of the raw TXT payload.
func (i *Info) Text() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return bytes.Clone(i.text)
}

// SetText replaces the raw TXT payload.
func (i *Info) SetText(raw []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.setTextLocked(raw)
}

// setTextLocked reports whether the payload changed.
func (i *Info) setTextLocked(raw []byte) bool {
	if raw == nil {
		raw = []byte{}
	}
	if bytes.Equal(i.text, raw) {
		return false
	}
	i.text = bytes.Clone(raw)
	i.attrs = attributeCell{}
	return true
}

// Properties returns the decoded TXT attributes. Keys without a value, or with
// an empty one, map to nil.
func (i *Info) Properties() map[string][]byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.attrs.computed {
		i.attrs = attributeCell{computed: true, attrs: txt.Decode(i.text)}
	}
	return maps.Clone(i.attrs.attrs)
}

// SetProperties encodes attrs and replaces the TXT payload with the result.
func (i *Info) SetProperties(attrs map[string]any) error {
	raw, err := txt.EncodeValues(attrs)
	if err != nil {
		return err
	}
	i.SetText(raw)
	return nil
}

// Complete reports whether the TXT payload and at least one address are known.
func (i *Info) Complete() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.completeLocked()
}

func (i *Info) completeLocked() bool {
	return i.text != nil && (i.ipv4.Len() > 0 || i.ipv6.Len() > 0)
}

// Equal reports whether both describe the same instance name.
func (i *Info) Equal(other *Info) bool {
	if other == nil {
		return false
	}
	return strings.EqualFold(i.Name(), other.Name())
}

func (i *Info) String() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	port := "-"
	if i.hasPort {
		port = fmt.Sprint(i.port)
	}
	return fmt.Sprintf("Info(type=%q, name=%q, server=%q, port=%s, weight=%d, priority=%d, addresses=%v, text=%q)",
		i.serviceType, i.name, i.server, port, i.weight, i.priority,
		append(i.ipv4.Addrs(), i.ipv6.Addrs()...), i.text)
}
