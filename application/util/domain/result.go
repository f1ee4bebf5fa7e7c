package domain

import (
	"browser-core/network/ip"
	"slices"
	"strings"
)

type Preference uint8

const (
	PreferDefault Preference = iota
	V4Only
	V6Only
	PreferV4
	PreferV6
)

func ParsePreference(s string) (Preference, bool) {
	switch strings.ToLower(s) {
	case "", "default":
		return PreferDefault, true
	case "ipv4-only", "v4-only":
		return V4Only, true
	case "ipv6-only", "v6-only":
		return V6Only, true
	case "ipv4", "prefer-ipv4":
		return PreferV4, true
	case "ipv6", "prefer-ipv6":
		return PreferV6, true
	}
	return PreferDefault, false
}

// families returns the families queried for the preference.
// A zero family asks the service for every family at once.
func (p Preference) families() []ip.Family {
	switch p {
	case V4Only:
		return []ip.Family{ip.V4}
	case V6Only:
		return []ip.Family{ip.V6}
	}
	return []ip.Family{0}
}

func (p Preference) accepts(family ip.Family) bool {
	switch p {
	case V4Only:
		return family == ip.V4
	case V6Only:
		return family == ip.V6
	}
	return true
}

// LookupResult is the ordered address list of one host. Order is the order of preference.
type LookupResult struct {
	Addrs []ip.Addr
	max   int
}

func NewLookupResult(max int) *LookupResult {
	return &LookupResult{Addrs: make([]ip.Addr, 0, max), max: max}
}

func (r *LookupResult) Len() int { return len(r.Addrs) }

func (r *LookupResult) Full() bool { return r.max > 0 && len(r.Addrs) >= r.max }

func (r *LookupResult) Clone() *LookupResult {
	return &LookupResult{Addrs: slices.Clone(r.Addrs), max: r.max}
}

func (r *LookupResult) Index(addr ip.Addr) int {
	return slices.IndexFunc(r.Addrs, addr.Equal)
}

// Add inserts addr unless it is a duplicate or the result is full.
// A preferred-family address goes in front of the first address of another family, so
// the preferred family stays grouped at the front regardless of arrival order.
func (r *LookupResult) Add(addr ip.Addr, pref Preference) bool {
	if !pref.accepts(addr.Family) || r.Full() || r.Index(addr) >= 0 {
		return false
	}

	at := len(r.Addrs)
	preferred := (pref == PreferV4 && addr.Family == ip.V4) || (pref == PreferV6 && addr.Family == ip.V6)
	if preferred {
		if idx := slices.IndexFunc(r.Addrs, func(a ip.Addr) bool { return a.Family != addr.Family }); idx >= 0 {
			at = idx
		}
	}

	r.Addrs = slices.Insert(r.Addrs, at, addr)
	return true
}

// Rotate moves the first address whose family differs from the first one to the
// second position, so a failover right after the first address tries the other family.
// It does nothing for fewer than three addresses or for a single family.
func (r *LookupResult) Rotate() {
	if len(r.Addrs) < 3 {
		return
	}

	first := r.Addrs[0].Family
	idx := slices.IndexFunc(r.Addrs[1:], func(a ip.Addr) bool { return a.Family != first })
	if idx < 0 {
		return
	}
	idx++

	if idx > 1 {
		moved := r.Addrs[idx]
		copy(r.Addrs[2:idx+1], r.Addrs[1:idx])
		r.Addrs[1] = moved
	}
}

// setPriority moves addr to the front when prefer is set, to the back otherwise.
func (r *LookupResult) setPriority(addr ip.Addr, prefer bool) bool {
	idx := r.Index(addr)
	if idx < 0 {
		return false
	}

	r.Addrs = slices.Delete(r.Addrs, idx, idx+1)
	if prefer {
		r.Addrs = slices.Insert(r.Addrs, 0, addr)
	} else {
		r.Addrs = append(r.Addrs, addr)
	}
	return true
}
