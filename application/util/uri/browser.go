package uri

import (
	"strings"

	"github.com/pkg/errors"
)

// URLs handed to the retrieval core carry two extensions on top of RFC 3986:
//
//   - "proxy://host:port/" followed by the real URL routes the request through an HTTP proxy.
//   - A 0x01 byte ends the URL proper and starts a POST payload:
//     optional content type, '\n', then the body in hex.
const (
	ProxyPrefix      = "proxy://"
	PostMarker  byte = 0x01
)

var (
	ErrMalformedProxy = errors.New("malformed proxy prefix")
	ErrMalformedPost  = errors.New("malformed post payload")
)

// SplitProxy cuts the proxy prefix off rawURL.
// ok is false when rawURL is not proxied, in which case target is rawURL.
func SplitProxy(rawURL string) (proxy, target string, ok bool, err error) {
	rest, found := cutPrefixFold(rawURL, ProxyPrefix)
	if !found {
		return "", rawURL, false, nil
	}

	proxy, target, found = strings.Cut(rest, "/")
	if !found || proxy == "" {
		return "", "", false, errors.Wrapf(ErrMalformedProxy, "%q", rawURL)
	}

	return proxy, target, true, nil
}

// StripProxy returns rawURL without the proxy prefix. Malformed prefixes are kept.
func StripProxy(rawURL string) string {
	_, target, ok, err := SplitProxy(rawURL)
	if !ok || err != nil {
		return rawURL
	}
	return target
}

// CacheKey is the key a response for rawURL is stored under.
// The same resource fetched directly or through a proxy shares one key,
// while different POST payloads do not.
func CacheKey(rawURL string) string { return StripProxy(rawURL) }

type Post struct {
	ContentType string
	Body        []byte
}

// SplitPost separates the URL proper from its POST payload.
// post is nil for plain GET URLs.
func SplitPost(rawURL string) (string, *Post, error) {
	idx := strings.IndexByte(rawURL, PostMarker)
	if idx < 0 {
		return rawURL, nil, nil
	}

	base, payload := rawURL[:idx], rawURL[idx+1:]

	post := &Post{}
	if ct, body, found := strings.Cut(payload, "\n"); found {
		post.ContentType = ct
		payload = body
	}

	if len(payload)%2 != 0 {
		return "", nil, errors.Wrap(ErrMalformedPost, "odd length body")
	}

	post.Body = make([]byte, 0, len(payload)/2)
	for i := 0; i < len(payload); i += 2 {
		if !is(payload[i], hexDigit) || !is(payload[i+1], hexDigit) {
			return "", nil, errors.Wrapf(ErrMalformedPost, "invalid hex at %d", i)
		}
		post.Body = append(post.Body, unhex(payload[i], payload[i+1]))
	}

	return base, post, nil
}

// AppendPost encodes post after the marker. A nil post returns rawURL unchanged.
func AppendPost(rawURL string, post *Post) string {
	if post == nil {
		return rawURL
	}

	b := new(strings.Builder)
	b.Grow(len(rawURL) + len(post.ContentType) + 2 + 2*len(post.Body))
	b.WriteString(rawURL)
	b.WriteByte(PostMarker)
	if post.ContentType != "" {
		b.WriteString(post.ContentType)
		b.WriteByte('\n')
	}
	for _, c := range post.Body {
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0xf])
	}

	return b.String()
}

func DefaultPort(scheme string) (uint16, bool) {
	switch strings.ToLower(scheme) {
	case "http":
		return 80, true
	case "https":
		return 443, true
	}
	return 0, false
}

// Endpoint returns the host and port a request for u connects to.
func Endpoint(u URI) (host string, port uint16, err error) {
	if u.Authority == nil || u.Authority.Host == "" {
		return "", 0, errors.New("URI has no host")
	}

	host = strings.TrimSuffix(strings.TrimPrefix(u.Authority.Host, "["), "]")

	if u.Authority.Port != nil {
		return host, *u.Authority.Port, nil
	}

	port, ok := DefaultPort(u.Scheme)
	if !ok {
		return "", 0, errors.Errorf("no default port for scheme %q", u.Scheme)
	}

	return host, port, nil
}

// RequestTarget renders the request-target for u.
// Proxied requests use the absolute form without credentials,
// direct ones the origin form.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2
func RequestTarget(u URI, absolute bool) string {
	u.Fragment = nil
	if absolute {
		if u.Authority != nil {
			a := *u.Authority
			a.UserInfo = ""
			u.Authority = &a
		}
		if u.Path == "" {
			u.Path = "/"
		}
		return u.String()
	}

	origin := URI{Path: u.Path, Query: u.Query}
	if origin.Path == "" {
		origin.Path = "/"
	}
	return origin.String()
}

// Credentials splits the userinfo of u into user and password.
func Credentials(u URI) (user, password string, ok bool) {
	if u.Authority == nil || u.Authority.UserInfo == "" {
		return "", "", false
	}
	user, password, _ = strings.Cut(u.Authority.UserInfo, ":")
	return user, password, true
}

// ResolveLocation resolves a Location value against the URL that was requested.
// Bytes RFC 3986 forbids but servers send anyway are escaped first.
func ResolveLocation(base URI, location string) (URI, error) {
	ref, err := Parse(escapeLoose(strings.TrimSpace(location)))
	if err != nil {
		return URI{}, errors.Wrap(err, "parsing location")
	}

	return Resolve(base, ref)
}

// InjectCredentials copies the userinfo of from into target when target has none.
func InjectCredentials(target, from URI) URI {
	if from.Authority == nil || from.Authority.UserInfo == "" {
		return target
	}
	if target.Authority == nil || target.Authority.UserInfo != "" {
		return target
	}

	a := *target.Authority
	a.UserInfo = from.Authority.UserInfo
	target.Authority = &a
	return target
}

func escapeLoose(s string) string {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		switch {
		case c <= ' ' || c >= 0x7f,
			strings.IndexByte("\"<>\\^`{|}", c) >= 0:
			writeEscaped(b, c)
		case c == '%' && !isPercentTriple(s, idx):
			b.WriteString("%25")
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
