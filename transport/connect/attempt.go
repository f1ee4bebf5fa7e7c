package connect

import (
	"browser-core/application/util/domain"
	"browser-core/transport"
	"browser-core/transport/socks"
	ctls "crypto/tls"
	"net"
	"sync"
	"time"
)

type State uint8

const (
	StateWait State = iota
	StateResolve
	StateConnecting
	StateSocks
	StateTLS
	StateReady
	StateRetryNextAddress
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWait:
		return "wait"
	case StateResolve:
		return "resolve"
	case StateConnecting:
		return "connecting"
	case StateSocks:
		return "socks"
	case StateTLS:
		return "tls"
	case StateReady:
		return "ready"
	case StateRetryNextAddress:
		return "retry next address"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Attempt is the state of one connection setup, possibly spanning several addresses.
// An Attempt is driven once; reuse is a programming error.
type Attempt struct {
	Host string
	Port uint16
	// Proxy, when set, is resolved and dialed instead of Host; the proxy is then
	// asked to reach Host:Port.
	Proxy *socks.Proxy
	TLS   bool
	// ServerName is presented during the TLS handshake. Defaults to Host.
	ServerName string
	NoCache    bool

	// IdleTimeout overrides the connector's idle timeout for this attempt.
	IdleTimeout time.Duration

	// OnState observes every state change. It runs on the connecting goroutine.
	OnState func(State)

	state         State
	result        *domain.LookupResult
	index         int
	noMoreServers bool
	firstErr      error
	downgrades    int

	mu sync.Mutex
}

func (a *Attempt) setState(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	if a.OnState != nil {
		a.OnState(state)
	}
}

func (a *Attempt) start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateWait {
		panic("connect: attempt started twice")
	}
	a.state = StateResolve
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Index is the position of the address currently tried in Addrs.
func (a *Attempt) Index() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index
}

func (a *Attempt) Addrs() []transport.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.result == nil {
		return nil
	}
	addrs := make([]transport.Addr, 0, a.result.Len())
	for _, addr := range a.result.Addrs {
		addrs = append(addrs, transport.NewAddr(addr, a.dialPort()))
	}
	return addrs
}

// FirstErr is the first failure met, kept across failovers.
func (a *Attempt) FirstErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstErr
}

// NoMoreServers is set once an address worked well enough that failing over
// would only add churn.
func (a *Attempt) NoMoreServers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.noMoreServers
}

func (a *Attempt) Downgrades() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.downgrades
}

func (a *Attempt) dialHost() string {
	if a.Proxy != nil {
		return a.Proxy.Host
	}
	return a.Host
}

func (a *Attempt) dialPort() uint16 {
	if a.Proxy != nil {
		return a.Proxy.Port
	}
	return a.Port
}

func (a *Attempt) serverName() string {
	if a.ServerName != "" {
		return a.ServerName
	}
	return a.Host
}

// Conn is an established, possibly TLS wrapped, stream.
type Conn struct {
	net.Conn

	Remote     transport.Addr
	Downgrades int
}

// TLSState returns the negotiated parameters of a TLS connection.
func (c *Conn) TLSState() (ctls.ConnectionState, bool) {
	tc, ok := c.Conn.(*ctls.Conn)
	if !ok {
		return ctls.ConnectionState{}, false
	}
	return tc.ConnectionState(), true
}
