// Package client retrieves URLs over HTTP/1.x into cache entries.
package client

import (
	"browser-core/application/http"
	"browser-core/application/http/content"
	"browser-core/application/http/status"
	"browser-core/application/http/transfer"
	"browser-core/session/tls"
	"browser-core/transport"
	"browser-core/transport/connect"
	"bytes"
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var ErrPolicyRejected = errors.New("connection rejected by tls policy")

type Client struct {
	connector *connect.Connector
	connPool  *connPool
	blacklist *Blacklist
	jar       CookieJar
	transfer  *transfer.Registry

	opts Options

	logger *slog.Logger
	clock  clock.Clock
}

func New(
	connector *connect.Connector,
	blacklist *Blacklist,
	jar CookieJar,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	if blacklist == nil {
		blacklist = NewBlacklist()
	}
	if jar == nil {
		jar = NopJar{}
	}

	return &Client{
		connector: connector,
		connPool:  newConnPool(opts.Conn.MaxIdle, opts.Timeout.Idle, clock, logger),
		blacklist: blacklist,
		jar:       jar,
		transfer:  transfer.NewRegistry(append(content.TransferDecoders(), opts.ExtraTransferDecoders...)...),
		opts:      opts,
		logger:    logger,
		clock:     clock,
	}
}

// Do performs one HTTP exchange for req and stores the response in req.Entry.
//
// A kept-alive connection that dies before answering is replaced by a fresh one
// once. Any other failure leaves the entry incomplete and is returned for the
// caller to decide whether to try again.
func (c *Client) Do(ctx context.Context, req Request) (Outcome, error) {
	x, err := c.prepare(req)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "preparing request")
	}

	for first := true; ; first = false {
		conn, reused, err := c.getConn(ctx, x)
		if err != nil {
			return Outcome{}, err
		}

		outcome, restartable, err := c.roundTrip(ctx, x, conn)
		if err != nil && reused && restartable && first {
			c.logger.Debug("kept-alive connection failed, reconnecting",
				slog.String("host", x.host), slog.Any("error", err))
			continue
		}
		return outcome, err
	}
}

// Close drops every idle connection.
func (c *Client) Close() {
	c.connPool.close()
}

// Idle is the number of connections waiting for reuse.
func (c *Client) Idle() uint { return c.connPool.len() }

func (c *Client) getConn(ctx context.Context, x *exchange) (_ *connect.Conn, reused bool, _ error) {
	if conn, ok := c.connPool.get(x.key()); ok {
		c.logger.Debug("reusing connection", slog.String("host", x.host), slog.String("addr", conn.Remote.String()))
		return conn, true, nil
	}

	a := &connect.Attempt{
		Host:    x.host,
		Port:    x.port,
		TLS:     x.target.Scheme == "https" && x.proxy == nil,
		Proxy:   x.socks,
		NoCache: x.Reload,

		IdleTimeout: c.opts.Timeout.Receive,
	}
	if x.proxy != nil {
		a.Host, a.Port = x.proxy.host, x.proxy.port
	}

	conn, err := c.connector.Connect(ctx, a)
	if err != nil {
		return nil, false, err
	}

	if state, ok := conn.TLSState(); ok {
		verdict, err := c.opts.TLSPolicy.Check(state, x.host, conn.Downgrades, x.flags.overrides())
		switch verdict {
		case tls.Warn:
			c.logger.Warn("accepting questionable tls connection", slog.String("host", x.host), slog.Any("error", err))
		case tls.Reject:
			conn.Close()
			return nil, false, errors.Wrapf(ErrPolicyRejected, "%s: %v", x.host, err)
		}
	}

	return conn, false, nil
}

// roundTrip sends x over conn and reads the response. restartable reports a
// failure that happened before any byte of response arrived.
func (c *Client) roundTrip(ctx context.Context, x *exchange, conn *connect.Conn) (_ Outcome, restartable bool, _ error) {
	keep := false
	defer func() {
		if keep {
			c.connPool.put(x.key(), conn)
			return
		}
		conn.Close()
	}()

	wd := transport.NewWatchdog(c.clock, c.opts.Timeout.Receive, func() { conn.Close() })
	defer wd.Stop()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// The watchdog and cancellation both close the connection, which reads as
	// an ordinary end of stream. interrupted tells them apart.
	interrupted := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "request interrupted")
		}
		if wd.Fired() {
			return errors.Wrapf(transport.ErrTimeout, "no data from %s", x.host)
		}
		return err
	}

	var head bytes.Buffer
	if err := http.NewRequestEncoder(&head, c.opts.Send.Encode).Encode(c.compose(x)); err != nil {
		return Outcome{}, false, errors.Wrap(err, "encoding request")
	}

	wb := transport.NewWriteBuffer(conn)
	wb.OnProgress = func(int) { wd.Kick() }
	wb.Enqueue(head.Bytes())
	if err := wb.Flush(nil); err != nil {
		return Outcome{}, true, interrupted(errors.Wrapf(err, "sending request to %s", x.host))
	}

	received := false
	rb := transport.NewReadBuffer(conn)
	rb.OnProgress = func(int) {
		received = true
		wd.Kick()
	}

	var (
		res   *http.Response
		block []byte
		err   error
	)
	for {
		res, block, err = readHead(rb, c.opts.Receive.Decode)
		if err != nil {
			return Outcome{}, !received, interrupted(errors.Wrapf(err, "reading response from %s", x.host))
		}
		if res.StatusCode == status.SwitchingProtocols {
			return Outcome{}, false, errors.Wrapf(ErrUnexpectedSwitch, "from %s", x.host)
		}
		if !status.IsInformational(res.StatusCode) || res.Version == http.Version09 {
			break
		}
		c.logger.Debug("interim response", slog.String("host", x.host), slog.Int("code", int(res.StatusCode)))
	}

	outcome, action := c.handle(x, res, block)

	framed := true
	switch action {
	case bodyAbandon:
		return outcome, false, nil
	case bodyStore:
		framed, err = c.readBody(x, rb, res, interrupted)
		if err != nil {
			return Outcome{}, false, errors.Wrapf(err, "reading body from %s", x.host)
		}
	}

	wd.Stop()
	keep = framed && rb.Len() == 0 && keepAlive(res, x.proxy != nil) && !wd.Fired() && stop()
	return outcome, false, nil
}
