package transport

import (
	"browser-core/network/ip"
	"context"
	"net"
	"strconv"
)

type Protocol string

const (
	TCP Protocol = "tcp"
)

type Addr struct {
	IP   ip.Addr
	Port uint16
}

func NewAddr(ipAddr ip.Addr, port uint16) Addr {
	return Addr{IP: ipAddr, Port: port}
}

func (a Addr) Network() string { return string(TCP) }

func (a Addr) String() string {
	host := a.IP.Net().String()
	if zone := a.IP.Zone(); zone != "" {
		host += "%" + zone
	}
	return net.JoinHostPort(host, strconv.FormatUint(uint64(a.Port), 10))
}

// ConnDialer opens a stream to one address.
type ConnDialer interface {
	Dial(ctx context.Context, addr Addr) (net.Conn, error)
}
