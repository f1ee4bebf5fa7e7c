package domain

import (
	"browser-core/network/ip"
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// NameserverLookuper asks one configured nameserver directly, bypassing the system resolver.
type NameserverLookuper struct {
	// Server is host:port of the nameserver. The port defaults to 53.
	Server  string
	Timeout time.Duration

	client *dns.Client
}

var _ Lookuper = (*NameserverLookuper)(nil)

func NewNameserverLookuper(server string, timeout time.Duration) *NameserverLookuper {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(strings.Trim(server, "[]"), "53")
	}

	return &NameserverLookuper{
		Server:  server,
		Timeout: timeout,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (n *NameserverLookuper) LookupIP(ctx context.Context, domain string, family ip.Family) ([]ip.Addr, error) {
	var qtypes []uint16
	switch family {
	case ip.V4:
		qtypes = []uint16{dns.TypeA}
	case ip.V6:
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeAAAA, dns.TypeA}
	}

	var (
		addrs    []ip.Addr
		notFound bool
	)
	for _, qtype := range qtypes {
		found, err := n.query(ctx, domain, qtype)
		if err != nil {
			if errors.Is(err, ErrDomainNotFound) {
				notFound = true
				continue
			}
			return nil, err
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 && notFound {
		return nil, errors.Wrapf(ErrDomainNotFound, "nameserver %s", n.Server)
	}

	return addrs, nil
}

func (n *NameserverLookuper) query(ctx context.Context, domain string, qtype uint16) ([]ip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	in, _, err := n.client.ExchangeContext(ctx, msg, n.Server)
	if err != nil {
		return nil, errors.Wrap(ErrLookupFailed, err.Error())
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrDomainNotFound
	default:
		return nil, errors.Wrapf(ErrLookupFailed, "rcode %s", dns.RcodeToString[in.Rcode])
	}

	addrs := make([]ip.Addr, 0, len(in.Answer))
	for _, rr := range in.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			if addr, ok := ip.FromNetIP(rr.A, ""); ok {
				addrs = append(addrs, addr)
			}
		case *dns.AAAA:
			if addr, ok := ip.FromNetIP(rr.AAAA, ""); ok {
				addrs = append(addrs, addr)
			}
		}
	}

	return addrs, nil
}
