package tls

import (
	ctls "crypto/tls"
	"crypto/x509"
	"slices"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Level uint8

const (
	LevelIgnore Level = iota
	LevelWarn
	LevelStrict
)

func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "ignore", "":
		return LevelIgnore, true
	case "warn":
		return LevelWarn, true
	case "strict":
		return LevelStrict, true
	}
	return 0, false
}

func (l Level) String() string {
	switch l {
	case LevelIgnore:
		return "ignore"
	case LevelWarn:
		return "warn"
	case LevelStrict:
		return "strict"
	}
	return "unknown"
}

type Verdict uint8

const (
	Accept Verdict = iota
	Warn
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Warn:
		return "warn"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// Overrides are per-host exceptions the user granted earlier.
type Overrides struct {
	IgnoreCertificate bool
	IgnoreDowngrade   bool
	IgnoreCipher      bool
}

// Policy judges an established connection.
type Policy struct {
	Level Level
	// Roots verifies peer chains; nil means the system pool.
	Roots *x509.CertPool
	Clock clock.Clock
}

// Check returns the verdict for state and, unless it is Accept, the reason.
// A connection negotiated after downgrade levels is considered downgraded.
func (p Policy) Check(state ctls.ConnectionState, host string, downgrades int, ov Overrides) (Verdict, error) {
	if p.Level == LevelIgnore {
		return Accept, nil
	}

	err := p.problem(state, host, downgrades, ov)
	if err == nil {
		return Accept, nil
	}
	if p.Level == LevelWarn {
		return Warn, err
	}
	return Reject, err
}

func (p Policy) problem(state ctls.ConnectionState, host string, downgrades int, ov Overrides) error {
	if !ov.IgnoreCertificate {
		if err := p.verify(state, host); err != nil {
			return err
		}
	}

	if !ov.IgnoreDowngrade && (downgrades > 0 || state.Version < ctls.VersionTLS12) {
		return errors.Wrapf(ErrDowngradedMethod, "negotiated %s", VersionName(state.Version))
	}

	if !ov.IgnoreCipher && insecureSuite(state.CipherSuite) {
		return errors.Wrapf(ErrInsecureCipher, "negotiated %s", ctls.CipherSuiteName(state.CipherSuite))
	}

	return nil
}

func (p Policy) verify(state ctls.ConnectionState, host string) error {
	if len(state.PeerCertificates) == 0 {
		return errors.Wrap(ErrInvalidCertificate, "no peer certificate")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range state.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		DNSName:       host,
		Roots:         p.Roots,
		Intermediates: intermediates,
	}
	if p.Clock != nil {
		opts.CurrentTime = p.Clock.Now()
	}

	if _, err := state.PeerCertificates[0].Verify(opts); err != nil {
		return errors.Wrap(ErrInvalidCertificate, err.Error())
	}
	return nil
}

func insecureSuite(id uint16) bool {
	return slices.ContainsFunc(ctls.InsecureCipherSuites(), func(s *ctls.CipherSuite) bool {
		return s.ID == id
	})
}
