package client

import (
	"browser-core/session/tls"
	"strings"
	"sync"
)

// Flags are workarounds applied to every request sent to a host.
type Flags uint16

const (
	FlagHTTP10 Flags = 1 << iota
	FlagNoAcceptLanguage
	FlagNoCharset
	FlagNoRange
	FlagNoCompression
	FlagNoBzip2
	FlagIgnoreCertificate
	FlagIgnoreDowngrade
	FlagIgnoreCipher
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

func (f Flags) overrides() tls.Overrides {
	return tls.Overrides{
		IgnoreCertificate: f.Has(FlagIgnoreCertificate),
		IgnoreDowngrade:   f.Has(FlagIgnoreDowngrade),
		IgnoreCipher:      f.Has(FlagIgnoreCipher),
	}
}

// Blacklist remembers workaround flags per host for the life of the process.
type Blacklist struct {
	hosts map[string]Flags
	mu    sync.RWMutex
}

func NewBlacklist() *Blacklist {
	return &Blacklist{hosts: make(map[string]Flags)}
}

// Add sets flags for host and reports whether any of them was new.
func (b *Blacklist) Add(host string, flags Flags) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	host = strings.ToLower(host)
	old := b.hosts[host]
	b.hosts[host] = old | flags

	return old|flags != old
}

func (b *Blacklist) Del(host string, flags Flags) {
	b.mu.Lock()
	defer b.mu.Unlock()

	host = strings.ToLower(host)
	rest := b.hosts[host] &^ flags
	if rest == 0 {
		delete(b.hosts, host)
		return
	}
	b.hosts[host] = rest
}

func (b *Blacklist) Get(host string) Flags {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hosts[strings.ToLower(host)]
}

func (b *Blacklist) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.hosts)
}

type signature struct {
	product string
	flags   Flags
}

// Servers known to mishandle parts of HTTP/1.1, matched against the Server header.
var signatures = []signature{
	{"mod_czech/3.1.0", FlagHTTP10},
	{"Purveyor", FlagHTTP10},
	{"Netscape-Enterprise", FlagHTTP10 | FlagNoAcceptLanguage},
}

// SignatureFlags returns the workarounds a Server header value calls for.
func SignatureFlags(server string) Flags {
	var flags Flags
	for _, sig := range signatures {
		if strings.Contains(server, sig.product) {
			flags |= sig.flags
		}
	}
	return flags
}
