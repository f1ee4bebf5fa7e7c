package domain

import (
	"browser-core/network/ip"
	"context"
	"maps"
	"net"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrLookupFailed   = errors.New("lookup failed")
)

// Lookuper asks some name service for the addresses of one host.
// A zero family means addresses of any family, in the order the service returns them.
type Lookuper interface {
	LookupIP(ctx context.Context, domain string, family ip.Family) (addrs []ip.Addr, err error)
}

type mapLookuper struct {
	set map[string][]ip.Addr
	mu  sync.RWMutex

	calls int
}

var _ Lookuper = (*mapLookuper)(nil)

func NewMapLookuper(set map[string][]ip.Addr) *mapLookuper {
	if set == nil {
		set = make(map[string][]ip.Addr)
	}
	return &mapLookuper{set: maps.Clone(set)}
}

func (m *mapLookuper) LookupIP(ctx context.Context, domain string, family ip.Family) (addrs []ip.Addr, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	all, ok := m.set[domain]
	if !ok {
		return nil, ErrDomainNotFound
	}

	return filterFamily(all, family), nil
}

func (m *mapLookuper) Set(domain string, addrs []ip.Addr) {
	if len(addrs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[domain] = addrs
}

func (m *mapLookuper) Del(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, domain)
}

// Calls reports how many lookups reached the map.
func (m *mapLookuper) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// SystemLookuper queries the operating system's resolver.
type SystemLookuper struct {
	Resolver *net.Resolver
}

var _ Lookuper = SystemLookuper{}

func (s SystemLookuper) LookupIP(ctx context.Context, domain string, family ip.Family) ([]ip.Addr, error) {
	resolver := s.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	network := "ip"
	switch family {
	case ip.V4:
		network = "ip4"
	case ip.V6:
		network = "ip6"
	}

	found, err := resolver.LookupIP(ctx, network, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errors.Wrap(ErrDomainNotFound, dnsErr.Error())
		}
		return nil, errors.Wrap(ErrLookupFailed, err.Error())
	}

	addrs := make([]ip.Addr, 0, len(found))
	for _, nip := range found {
		if addr, ok := ip.FromNetIP(nip, ""); ok {
			addrs = append(addrs, addr)
		}
	}

	return filterFamily(addrs, family), nil
}

func filterFamily(addrs []ip.Addr, family ip.Family) []ip.Addr {
	if family == 0 {
		return addrs
	}

	out := make([]ip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Family == family {
			out = append(out, addr)
		}
	}
	return out
}
