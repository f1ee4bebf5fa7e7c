package uri

import (
	"browser-core/network/ip"
	"strings"

	"github.com/pkg/errors"
)

// class is a bitmask of the character sets of RFC 3986 section 2.
type class uint8

const (
	unreserved class = 1 << iota
	subDelim
	genDelim
	hexDigit
	alpha
)

var classes = func() (t [256]class) {
	for c := 'a'; c <= 'z'; c++ {
		t[c] |= unreserved | alpha
		t[c-'a'+'A'] |= unreserved | alpha
	}
	for c := '0'; c <= '9'; c++ {
		t[c] |= unreserved | hexDigit
	}
	for _, c := range "abcdefABCDEF" {
		t[c] |= hexDigit
	}
	for _, c := range "-._~" {
		t[c] |= unreserved
	}
	for _, c := range "!$&'()*+,;=" {
		t[c] |= subDelim
	}
	for _, c := range ":/?#[]@" {
		t[c] |= genDelim
	}
	return t
}()

func is(c byte, cl class) bool { return classes[c]&cl != 0 }

// component selects which reserved characters may appear literally.
type component uint8

const (
	compUserInfo component = iota
	compRegName
	// compHost is a reg-name or an IP literal with its brackets.
	compHost
	compPath
	// compQuery covers fragments as well.
	compQuery
)

func allowed(c byte, comp component) bool {
	if is(c, unreserved|subDelim) {
		return true
	}

	switch comp {
	case compUserInfo:
		return c == ':'
	case compHost:
		return c == ':' || c == '[' || c == ']'
	case compPath:
		return c == ':' || c == '@' || c == '/'
	case compQuery:
		return c == ':' || c == '@' || c == '/' || c == '?'
	}
	return false
}

// isPercentTriple reports a well-formed "%XX" at s[i].
func isPercentTriple(s string, i int) bool {
	return i+2 < len(s) && s[i] == '%' && is(s[i+1], hexDigit) && is(s[i+2], hexDigit)
}

// validIn reports whether s is made of characters allowed in comp and
// percent-encoded octets.
func validIn(s string, comp component) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case allowed(s[i], comp):
		case isPercentTriple(s, i):
			i += 2
		default:
			return false
		}
	}
	return true
}

func hasCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] == 0x7f {
			return true
		}
	}
	return false
}

func validateScheme(scheme string) error {
	if scheme == "" {
		return errors.New("empty scheme")
	}
	if !is(scheme[0], alpha) {
		return errors.Errorf("scheme %q does not start with a letter", scheme)
	}
	for i := 1; i < len(scheme); i++ {
		if c := scheme[i]; !is(c, alpha) && !('0' <= c && c <= '9') && c != '+' && c != '-' && c != '.' {
			return errors.Errorf("invalid byte %q in scheme", c)
		}
	}
	return nil
}

const maxHostLen = 255

// validateHost accepts an empty host, an IP literal in brackets, an IPv4
// address or a reg-name.
func validateHost(host string) error {
	switch {
	case host == "":
		return nil
	case len(host) > maxHostLen:
		return errors.Errorf("host is %d bytes long, limit is %d", len(host), maxHostLen)
	}

	if host[0] == '[' {
		if host[len(host)-1] != ']' {
			return errors.New("unterminated IP literal")
		}
		literal := host[1 : len(host)-1]
		if addr, err := ip.ParseLiteral(literal); err == nil && addr.Family == ip.V6 {
			return nil
		}
		if isIPvFuture(literal) {
			return nil
		}
		return errors.Errorf("malformed IP literal %q", host)
	}

	if !validIn(host, compRegName) {
		return errors.Errorf("invalid host %q", host)
	}
	return nil
}

// isIPvFuture matches "v" 1*HEXDIG "." 1*( unreserved / sub-delims / ":" ).
func isIPvFuture(s string) bool {
	if len(s) < 4 || s[0] != 'v' {
		return false
	}

	i := 1
	for i < len(s) && is(s[i], hexDigit) {
		i++
	}
	if i == 1 || i+1 >= len(s) || s[i] != '.' {
		return false
	}

	for _, c := range []byte(s[i+1:]) {
		if !allowed(c, compUserInfo) {
			return false
		}
	}
	return true
}

func validatePath(path string, hasAuthority, relative bool) error {
	switch {
	case hasAuthority && path != "" && path[0] != '/':
		return errors.New("path after an authority must start with '/'")
	case !hasAuthority && len(path) > 1 && path[0] == '/' && path[1] == '/':
		return errors.New("path without an authority cannot start with '//'")
	}

	if relative {
		first := path
		if i := strings.IndexByte(path, '/'); i >= 0 {
			first = path[:i]
		}
		if strings.IndexByte(first, ':') >= 0 {
			return errors.New("first segment of a relative path cannot contain ':'")
		}
	}

	if !validIn(path, compPath) {
		return errors.Errorf("invalid path %q", path)
	}
	return nil
}
