package uri

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type URI struct {
	Scheme    string
	Authority *Authority
	Path      string
	Query     *string
	Fragment  *string
}

type Authority struct {
	UserInfo string
	Host     string
	// Port is nil when the authority names none, or an empty one.
	Port *uint16
}

// IsRelativeRef reports a reference without a scheme.
func (u URI) IsRelativeRef() bool { return u.Scheme == "" }

// Validate checks a URI built by hand. Parse already rejects what it reports.
func (u URI) Validate() error {
	if u.Scheme != "" {
		if err := validateScheme(u.Scheme); err != nil {
			return err
		}
	}
	if u.Authority != nil {
		if hasCTL(u.Authority.UserInfo) {
			return errors.New("control byte in userinfo")
		}
		if err := validateHost(u.Authority.Host); err != nil {
			return err
		}
	}
	if hasCTL(u.Path) {
		return errors.New("control byte in path")
	}
	// Stored components are unescaped, so only the structural rules apply.
	return validatePath(escape(u.Path, compPath), u.Authority != nil, u.IsRelativeRef())
}

func (u URI) String() string {
	var b strings.Builder

	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}

	if a := u.Authority; a != nil {
		b.WriteString("//")
		if a.UserInfo != "" {
			b.WriteString(escape(a.UserInfo, compUserInfo))
			b.WriteByte('@')
		}
		b.WriteString(escape(a.Host, compHost))
		if a.Port != nil {
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(uint64(*a.Port), 10))
		}
	}

	b.WriteString(escape(u.Path, compPath))

	if u.Query != nil {
		b.WriteByte('?')
		b.WriteString(escape(*u.Query, compQuery))
	}
	if u.Fragment != nil {
		b.WriteByte('#')
		b.WriteString(escape(*u.Fragment, compQuery))
	}

	return b.String()
}

// Parse reads an absolute URI or a relative reference. The scheme and host
// are lowercased.
func Parse(raw string) (URI, error) {
	if hasCTL(raw) {
		return URI{}, errors.Errorf("control byte in %q", raw)
	}

	var (
		u    URI
		rest = raw
		err  error
	)

	// A colon only ends a scheme when it comes before any '/', '?' or '#'.
	if i := strings.IndexAny(rest, ":/?#"); i >= 0 && rest[i] == ':' {
		if err := validateScheme(rest[:i]); err != nil {
			return URI{}, err
		}
		u.Scheme, rest = strings.ToLower(rest[:i]), rest[i+1:]
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		frag, err := parseComponent(rest[i+1:], compQuery, "fragment")
		if err != nil {
			return URI{}, err
		}
		u.Fragment, rest = &frag, rest[:i]
	}

	if i := strings.IndexByte(rest, '?'); i >= 0 {
		query, err := parseComponent(rest[i+1:], compQuery, "query")
		if err != nil {
			return URI{}, err
		}
		u.Query, rest = &query, rest[:i]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}

		authority, err := parseAuthority(rest[:end])
		if err != nil {
			return URI{}, errors.Wrap(err, "parsing authority")
		}
		u.Authority, rest = &authority, rest[end:]
	}

	if err := validatePath(rest, u.Authority != nil, u.IsRelativeRef()); err != nil {
		return URI{}, err
	}
	if u.Path, err = unescape(rest); err != nil {
		return URI{}, errors.Wrap(err, "path")
	}

	return u, nil
}

func parseComponent(raw string, comp component, name string) (string, error) {
	if !validIn(raw, comp) {
		return "", errors.Errorf("invalid %s %q", name, raw)
	}
	s, err := unescape(raw)
	return s, errors.Wrap(err, name)
}

func parseAuthority(raw string) (Authority, error) {
	var a Authority

	if i := strings.LastIndexByte(raw, '@'); i >= 0 {
		info := raw[:i]
		if !validIn(info, compUserInfo) {
			return Authority{}, errors.Errorf("invalid userinfo %q", info)
		}
		var err error
		if a.UserInfo, err = unescape(info); err != nil {
			return Authority{}, errors.Wrap(err, "userinfo")
		}
		raw = raw[i+1:]
	}

	host, port := raw, ""
	// The last colon starts the port unless it sits inside an IP literal.
	if i := strings.LastIndexByte(raw, ':'); i >= 0 && i > strings.LastIndexByte(raw, ']') {
		host, port = raw[:i], raw[i+1:]
	}

	if err := validateHost(host); err != nil {
		return Authority{}, err
	}
	host, err := unescape(host)
	if err != nil {
		return Authority{}, errors.Wrap(err, "host")
	}
	a.Host = strings.ToLower(host)

	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return Authority{}, errors.Errorf("invalid port %q", port)
		}
		p := uint16(n)
		a.Port = &p
	}

	return a, nil
}
