// Package connect turns a host and port into an established stream: it resolves,
// dials each address in turn, optionally negotiates SOCKS4 and TLS, and records
// which address worked.
package connect

import (
	"browser-core/application/util/domain"
	"browser-core/network/ip"
	"browser-core/session/tls"
	"browser-core/transport"
	"browser-core/transport/socks"
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Options struct {
	// ConnectTimeout bounds the dial of one address while more addresses are left.
	// The last address gets no timeout of its own.
	ConnectTimeout time.Duration
	// IdleTimeout tears down a try of one address that made no progress for this
	// long, covering the dial, the SOCKS exchange and the TLS handshake. Zero disables it.
	IdleTimeout time.Duration
}

var DefaultOptions = Options{
	ConnectTimeout: 10 * time.Second,
	IdleTimeout:    120 * time.Second,
}

type Connector struct {
	resolver   *domain.Resolver
	dialer     transport.ConnDialer
	downgrader *tls.Downgrader

	logger *slog.Logger
	clock  clock.Clock
	opts   Options
}

func New(
	resolver *domain.Resolver,
	dialer transport.ConnDialer,
	downgrader *tls.Downgrader,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Connector {
	if downgrader == nil {
		downgrader = tls.NewDowngrader(tls.Options{})
	}

	return &Connector{
		resolver:   resolver,
		dialer:     dialer,
		downgrader: downgrader,
		logger:     logger,
		clock:      clock,
		opts:       opts,
	}
}

// Connect drives a to READY or FAILED.
//
// A failure on one address moves on to the next one unless the error is terminal
// or an earlier step already succeeded. When every address failed, the error of the
// first one is returned and the host is dropped from the resolver cache.
func (c *Connector) Connect(ctx context.Context, a *Attempt) (*Conn, error) {
	a.start()
	if a.OnState != nil {
		a.OnState(StateResolve)
	}

	host := a.dialHost()
	result, err := c.resolver.Lookup(ctx, host, domain.ResolveOptions{NoCache: a.NoCache})
	if err != nil {
		a.setState(StateFailed)
		return nil, errors.Wrapf(err, "resolving %s", host)
	}
	if result.Len() == 0 {
		a.setState(StateFailed)
		return nil, errors.Wrapf(domain.ErrDomainNotFound, "resolving %s", host)
	}

	a.mu.Lock()
	a.result = result
	a.index = 0
	a.mu.Unlock()

	for {
		a.mu.Lock()
		idx := a.index
		addr := a.result.Addrs[idx]
		remaining := a.result.Len() - idx
		a.mu.Unlock()

		conn, err := c.try(ctx, a, addr, remaining)
		if err == nil {
			if idx > 0 {
				c.resolver.Promote(host, a.result.Addrs, idx)
			}
			a.setState(StateReady)

			c.logger.Debug("connected",
				slog.String("host", host), slog.String("addr", conn.Remote.String()), slog.Int("index", idx))
			return conn, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			a.setState(StateFailed)
			return nil, errors.Wrap(ctxErr, "connecting")
		}

		a.mu.Lock()
		if a.firstErr == nil {
			a.firstErr = err
		}
		a.mu.Unlock()

		if tls.Downgradable(err) {
			if err := c.downgrade(a); err != nil {
				a.setState(StateFailed)
				return nil, err
			}
			continue
		}

		if terminal(err) || a.NoMoreServers() {
			a.setState(StateFailed)
			return nil, err
		}

		if !c.nextAddress(a) {
			a.setState(StateFailed)
			c.resolver.ClearHost(host)

			c.logger.Debug("all addresses failed", slog.String("host", host), slog.Any("error", a.FirstErr()))
			return nil, errors.Wrapf(a.FirstErr(), "connecting to %s", host)
		}

		c.logger.Debug("trying next address",
			slog.String("host", host), slog.Int("index", a.Index()), slog.Any("error", err))
	}
}

// nextAddress advances to the next address. On the first failover the list is
// rotated so that the other address family gets tried next.
func (c *Connector) nextAddress(a *Attempt) bool {
	a.setState(StateRetryNextAddress)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index+1 >= a.result.Len() {
		return false
	}

	a.index++
	if a.index == 1 {
		a.result.Rotate()
	}
	return true
}

// downgrade prepares another try of the same address with one TLS version less.
func (c *Connector) downgrade(a *Attempt) error {
	a.mu.Lock()
	a.downgrades++
	level := a.downgrades
	a.noMoreServers = true
	lastErr := a.firstErr
	a.mu.Unlock()

	if level > tls.MaxDowngrades() {
		return errors.Wrapf(tls.ErrDowngradeExhausted, "after %d tries: %v", level, lastErr)
	}

	c.downgrader.DiscardSession(a.serverName())

	maxVersion, _ := tls.MaxVersion(level)
	c.logger.Debug("tls downgrade",
		slog.String("host", a.serverName()), slog.String("max_version", tls.VersionName(maxVersion)))
	return nil
}

func (c *Connector) try(ctx context.Context, a *Attempt, addr ip.Addr, remaining int) (*Conn, error) {
	a.setState(StateConnecting)

	remote := transport.NewAddr(addr, a.dialPort())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idle := a.IdleTimeout
	if idle == 0 {
		idle = c.opts.IdleTimeout
	}
	wd := transport.NewWatchdog(c.clock, idle, cancel)
	defer wd.Stop()

	conn, err := c.establish(ctx, a, remote, remaining, wd)
	if err != nil {
		if wd.Fired() {
			return nil, errors.Wrapf(transport.ErrTimeout, "%s idle for %s", remote, idle)
		}
		return nil, err
	}
	return conn, nil
}

// establish dials remote and runs SOCKS and TLS over it. Every byte moved kicks wd.
func (c *Connector) establish(
	ctx context.Context, a *Attempt, remote transport.Addr, remaining int, wd *transport.Watchdog,
) (*Conn, error) {
	dialCtx := ctx
	if remaining > 1 && c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = c.clock.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	raw, err := c.dialer.Dial(dialCtx, remote)
	if err != nil {
		return nil, errors.Wrapf(transport.MapError(err), "dialing %s", remote)
	}
	wd.Kick()
	conn := &progressConn{Conn: raw, wd: wd}

	if a.Proxy != nil {
		a.setState(StateSocks)

		err := withContext(ctx, conn, func() error {
			return socks.Negotiate(conn, a.Proxy.User, a.Host, a.Port)
		})
		if err != nil {
			raw.Close()
			return nil, errors.Wrapf(err, "socks via %s", remote)
		}
	}

	result := &Conn{Conn: raw, Remote: remote}

	if a.TLS {
		a.setState(StateTLS)

		tlsConn, err := c.downgrader.Handshake(ctx, conn, a.serverName(), a.Downgrades())
		if err != nil {
			raw.Close()
			return nil, errors.Wrapf(err, "tls with %s", remote)
		}
		result.Conn = tlsConn
		result.Downgrades = a.Downgrades()
	}

	return result, nil
}

// progressConn reports every read or write that moved bytes to a watchdog.
type progressConn struct {
	net.Conn
	wd *transport.Watchdog
}

func (pc *progressConn) Read(p []byte) (int, error) {
	n, err := pc.Conn.Read(p)
	if n > 0 {
		pc.wd.Kick()
	}
	return n, err
}

func (pc *progressConn) Write(p []byte) (int, error) {
	n, err := pc.Conn.Write(p)
	if n > 0 {
		pc.wd.Kick()
	}
	return n, err
}

// withContext runs a blocking exchange on conn that ends early when ctx does.
func withContext(ctx context.Context, conn net.Conn, fn func() error) error {
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	return fn()
}

// terminal reports errors no other address can fix.
func terminal(err error) bool {
	for _, target := range []error{
		socks.ErrBadVersion,
		socks.ErrNoIdentd,
		socks.ErrBadUserID,
		socks.ErrUnknownReply,
		tls.ErrInvalidCertificate,
		tls.ErrDowngradeExhausted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
