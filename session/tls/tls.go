// Package tls wraps the platform TLS implementation with the browser's
// version downgrade ladder and its certificate policy.
//
// Handshakes never verify certificates themselves; the verdict is left to
// [Policy], consulted once a handshake succeeded.
package tls

import (
	"context"
	ctls "crypto/tls"
	"crypto/x509"
	"net"

	"github.com/pkg/errors"
)

var (
	ErrHandshake          = errors.New("tls handshake failed")
	ErrDowngradeExhausted = errors.New("tls downgrade exhausted")
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrInsecureCipher     = errors.New("insecure cipher")
	ErrDowngradedMethod   = errors.New("downgraded tls method")
)

// versionLadder lists the versions a client offers at most, one per downgrade level.
var versionLadder = []uint16{
	ctls.VersionTLS13,
	ctls.VersionTLS12,
	ctls.VersionTLS11,
	ctls.VersionTLS10,
}

// MaxDowngrades is the number of times a failed handshake can be retried with
// one more version disabled.
func MaxDowngrades() int { return len(versionLadder) - 1 }

// MaxVersion returns the highest version offered at the given downgrade level.
func MaxVersion(level int) (uint16, error) {
	if level < 0 || level >= len(versionLadder) {
		return 0, errors.Wrapf(ErrDowngradeExhausted, "level %d", level)
	}
	return versionLadder[level], nil
}

func VersionName(v uint16) string { return ctls.VersionName(v) }

type Options struct {
	// SessionCacheSize bounds the resumption tickets kept; zero uses the library default.
	SessionCacheSize int
	// NextProtos is offered through ALPN.
	NextProtos []string
}

// Downgrader hands out client configurations for each downgrade level
// and owns the session resumption cache shared by them.
type Downgrader struct {
	sessions ctls.ClientSessionCache
	opts     Options
}

func NewDowngrader(opts Options) *Downgrader {
	return &Downgrader{
		sessions: ctls.NewLRUClientSessionCache(opts.SessionCacheSize),
		opts:     opts,
	}
}

func (d *Downgrader) Config(serverName string, level int) (*ctls.Config, error) {
	maxVersion, err := MaxVersion(level)
	if err != nil {
		return nil, err
	}

	return &ctls.Config{
		ServerName:         serverName,
		MinVersion:         ctls.VersionTLS10,
		MaxVersion:         maxVersion,
		InsecureSkipVerify: true,
		ClientSessionCache: d.sessions,
		NextProtos:         d.opts.NextProtos,
	}, nil
}

// DiscardSession forgets the resumption ticket held for serverName.
func (d *Downgrader) DiscardSession(serverName string) {
	d.sessions.Put(serverName, nil)
}

// Handshake runs a client handshake over conn at the given downgrade level.
// On failure conn is left open; the caller decides whether to retry lower.
func (d *Downgrader) Handshake(ctx context.Context, conn net.Conn, serverName string, level int) (*ctls.Conn, error) {
	config, err := d.Config(serverName, level)
	if err != nil {
		return nil, err
	}

	tlsConn := ctls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	return tlsConn, nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, "tls handshake")
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *ctls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) ||
		errors.As(err, &invalid) || errors.As(err, &verification) {
		return errors.Wrap(ErrInvalidCertificate, err.Error())
	}

	return errors.Wrap(ErrHandshake, err.Error())
}

// Downgradable reports whether err calls for another try one level lower.
func Downgradable(err error) bool {
	return errors.Is(err, ErrHandshake)
}
