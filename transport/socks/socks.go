// Package socks implements the client side of SOCKS4 with the 4a host name extension.
package socks

import (
	iolib "browser-core/lib/io"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrBadVersion   = errors.New("socks: bad reply version")
	ErrRejected     = errors.New("socks: request rejected or failed")
	ErrNoIdentd     = errors.New("socks: identd unreachable")
	ErrBadUserID    = errors.New("socks: identd reported a different user id")
	ErrUnknownReply = errors.New("socks: unknown reply code")
	ErrBadProxy     = errors.New("socks: malformed proxy descriptor")
)

const (
	version4   = 0x04
	cmdConnect = 0x01

	ReplyLen = 8
)

type ReplyCode uint8

const (
	ReplyGranted   ReplyCode = 90
	ReplyRejected  ReplyCode = 91
	ReplyNoIdentd  ReplyCode = 92
	ReplyBadUserID ReplyCode = 93
)

// Proxy describes a SOCKS server and the user id to present to it.
type Proxy struct {
	User string
	Host string
	Port uint16
}

const Scheme = "socks://"

const defaultPort = 1080

// ParseProxy accepts "socks://[user@]host[:port][/]" as well as the bare "[user@]host[:port]".
func ParseProxy(s string) (Proxy, error) {
	s = strings.TrimPrefix(s, Scheme)
	s = strings.TrimSuffix(s, "/")

	var p Proxy
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		p.User, s = s[:at], s[at+1:]
	}

	host, port := s, ""
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 && !strings.HasSuffix(s, "]") {
		host, port = s[:idx], s[idx+1:]
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return Proxy{}, errors.Wrapf(ErrBadProxy, "%q has no host", s)
	}
	p.Host = host

	p.Port = defaultPort
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return Proxy{}, errors.Wrapf(ErrBadProxy, "bad port %q", port)
		}
		p.Port = uint16(n)
	}

	return p, nil
}

func (p Proxy) String() string {
	var sb strings.Builder
	sb.WriteString(Scheme)
	if p.User != "" {
		sb.WriteString(p.User)
		sb.WriteByte('@')
	}
	if strings.IndexByte(p.Host, ':') >= 0 {
		sb.WriteString("[" + p.Host + "]")
	} else {
		sb.WriteString(p.Host)
	}
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(int(p.Port)))
	sb.WriteByte('/')
	return sb.String()
}

// EncodeRequest builds a CONNECT request. The destination address 0.0.0.1 tells
// the server to resolve host itself.
func EncodeRequest(user, host string, port uint16) []byte {
	buf := make([]byte, 0, 8+len(user)+1+len(host)+1)
	buf = append(buf, version4, cmdConnect, byte(port>>8), byte(port))
	buf = append(buf, 0, 0, 0, 1)
	buf = append(buf, user...)
	buf = append(buf, 0)
	buf = append(buf, host...)
	buf = append(buf, 0)
	return buf
}

// DecodeReply checks a server reply and returns nil when the request was granted.
func DecodeReply(reply []byte) error {
	if len(reply) < ReplyLen {
		return errors.Wrapf(io.ErrUnexpectedEOF, "socks reply has %d bytes", len(reply))
	}
	if reply[0] != 0 {
		return errors.Wrapf(ErrBadVersion, "got %d", reply[0])
	}

	switch code := ReplyCode(reply[1]); code {
	case ReplyGranted:
		return nil
	case ReplyRejected:
		return ErrRejected
	case ReplyNoIdentd:
		return ErrNoIdentd
	case ReplyBadUserID:
		return ErrBadUserID
	default:
		return errors.Wrapf(ErrUnknownReply, "code %d", code)
	}
}

// Negotiate asks the server behind rw to connect to host:port.
// Every byte of the request is written before the 8-byte reply is read.
func Negotiate(rw io.ReadWriter, user, host string, port uint16) error {
	if _, err := iolib.WriteFull(rw, EncodeRequest(user, host, port), nil); err != nil {
		return errors.Wrap(err, "writing socks request")
	}

	reply := make([]byte, ReplyLen)
	if _, err := io.ReadFull(rw, reply); err != nil {
		return errors.Wrap(err, "reading socks reply")
	}

	return DecodeReply(reply)
}

// Retryable reports whether another address of the same proxy may accept the request.
func Retryable(err error) bool {
	return errors.Is(err, ErrRejected)
}
