// Package tcp dials Transmission Control Protocol streams through the operating system.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9293
package tcp

import (
	"browser-core/transport"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

type Dialer struct {
	// KeepAlive is the keep-alive probe period. Zero uses the system default.
	KeepAlive time.Duration
}

var _ transport.ConnDialer = Dialer{}

// Dial connects without a deadline of its own. Callers bound it through ctx.
func (d Dialer) Dial(ctx context.Context, addr transport.Addr) (net.Conn, error) {
	nd := net.Dialer{KeepAlive: d.KeepAlive}

	conn, err := nd.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, errors.Wrapf(transport.MapError(err), "dialing %s", addr)
	}

	return conn, nil
}
