// Package ip holds the resolved host addresses a connection can be made to.
package ip

import (
	"bytes"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Family uint8

const (
	V4 Family = 4
	V6 Family = 6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "ipv4"
	case V6:
		return "ipv6"
	}
	return "unknown"
}

// Addr is a host address produced by resolution. It is a value type and never mutated.
type Addr struct {
	Family Family
	IP     [16]byte // only the first 4 bytes are used for V4.
	Scope  uint32   // link-local scope id for V6.
}

func FromV4(v4 [4]byte) Addr {
	a := Addr{Family: V4}
	copy(a.IP[:4], v4[:])
	return a
}

func FromV6(v6 [16]byte, scope uint32) Addr {
	return Addr{Family: V6, IP: v6, Scope: scope}
}

// FromNetIP converts addresses returned by the system resolver.
func FromNetIP(nip net.IP, zone string) (Addr, bool) {
	if v4 := nip.To4(); v4 != nil {
		return FromV4([4]byte(v4)), true
	}
	if v6 := nip.To16(); v6 != nil {
		return FromV6([16]byte(v6), zoneToScope(zone)), true
	}
	return Addr{}, false
}

func (a Addr) Raw() []byte {
	if a.Family == V4 {
		return bytes.Clone(a.IP[:4])
	}
	return bytes.Clone(a.IP[:])
}

func (a Addr) Net() net.IP { return net.IP(a.Raw()) }

func (a Addr) Zone() string {
	if a.Scope == 0 {
		return ""
	}
	if iface, err := net.InterfaceByIndex(int(a.Scope)); err == nil {
		return iface.Name
	}
	return strconv.FormatUint(uint64(a.Scope), 10)
}

func (a Addr) Equal(other Addr) bool { return a == other }

func (a Addr) IsZero() bool { return a.Family == 0 }

func (a Addr) String() string {
	s := a.Net().String()
	if a.Family == V6 && a.Scope != 0 {
		s += "%" + strconv.FormatUint(uint64(a.Scope), 10)
	}
	return s
}

var ErrNotLiteral = errors.New("host is not a numeric address")

// ParseLiteral recognizes numeric hosts: dotted quads, bracketed IPv6 and IPv6 with
// a "%scope" suffix.
func ParseLiteral(host string) (Addr, error) {
	if v4, err := parseV4(host); err == nil {
		return FromV4(v4), nil
	}

	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	literal, zone, _ := strings.Cut(host, "%")
	if !strings.Contains(literal, ":") {
		return Addr{}, ErrNotLiteral
	}

	v6, err := parseV6(literal)
	if err != nil {
		return Addr{}, errors.Wrap(ErrNotLiteral, err.Error())
	}

	return FromV6(v6, zoneToScope(zone)), nil
}

func zoneToScope(zone string) uint32 {
	if zone == "" {
		return 0
	}
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n)
	}
	if iface, err := net.InterfaceByName(zone); err == nil {
		return uint32(iface.Index)
	}
	return 0
}
