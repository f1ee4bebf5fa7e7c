package client

import (
	"browser-core/application/cache"
	"browser-core/application/http"
	"browser-core/application/http/content"
	"browser-core/application/util/uri"
	"browser-core/transport/socks"
	"bytes"
	"encoding/base64"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

const defaultPostType = "application/x-www-form-urlencoded"

// Request is one retrieval of URL into Entry.
type Request struct {
	// URL may carry the proxy prefix and the POST payload of [uri.SplitProxy] and [uri.SplitPost].
	URL   string
	Entry *cache.Entry

	// Referer overrides SendOptions.Referer.
	Referer string
	// Reload fetches everything again: no resume, no validation, no-cache fields sent.
	Reload bool
	// LastTry tells the client no further try follows a failure of this one.
	LastTry bool
}

type httpProxy struct {
	host     string
	port     uint16
	userInfo string
	// raw is the proxy as written in the URL prefix, or "" when it came from options.
	raw string
}

func (p *httpProxy) String() string {
	return net.JoinHostPort(p.host, strconv.FormatUint(uint64(p.port), 10))
}

// parseHTTPProxy parses "[user:password@]host[:port]".
func parseHTTPProxy(s string) (*httpProxy, error) {
	u, err := uri.Parse("http://" + strings.TrimSuffix(s, "/"))
	if err != nil {
		return nil, errors.Wrapf(uri.ErrMalformedProxy, "%q: %v", s, err)
	}

	host, port, err := uri.Endpoint(u)
	if err != nil {
		return nil, errors.Wrapf(uri.ErrMalformedProxy, "%q: %v", s, err)
	}

	return &httpProxy{host: host, port: port, userInfo: u.Authority.UserInfo}, nil
}

type poolKey struct {
	scheme string
	host   string
	port   uint16
	proxy  string
}

// exchange is the state of one request: what is sent and where.
type exchange struct {
	Request

	target uri.URI
	post   *uri.Post
	host   string
	port   uint16

	proxy *httpProxy
	socks *socks.Proxy

	flags Flags
	// from is the offset the body is requested from.
	from int64
	// validate is set when If-Modified-Since was sent.
	validate bool
}

func (c *Client) prepare(req Request) (*exchange, error) {
	if req.Entry == nil {
		return nil, errors.New("request has no cache entry")
	}

	x := &exchange{Request: req}

	proxy, rawURL, proxied, err := uri.SplitProxy(req.URL)
	if err != nil {
		return nil, err
	}

	base, post, err := uri.SplitPost(rawURL)
	if err != nil {
		return nil, err
	}
	x.post = post

	x.target, err = uri.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", base)
	}
	x.target.Scheme = strings.ToLower(x.target.Scheme)
	if _, ok := uri.DefaultPort(x.target.Scheme); !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", x.target.Scheme)
	}

	x.host, x.port, err = uri.Endpoint(x.target)
	if err != nil {
		return nil, err
	}

	switch {
	case proxied:
		x.proxy, err = parseHTTPProxy(proxy)
		if err == nil {
			x.proxy.raw = proxy
		}
	case x.target.Scheme == "http" && c.opts.Proxy.HTTP != "":
		x.proxy, err = parseHTTPProxy(c.opts.Proxy.HTTP)
	case x.target.Scheme == "https" && c.opts.Proxy.HTTPS != "":
		x.proxy, err = parseHTTPProxy(c.opts.Proxy.HTTPS)
	case c.opts.Proxy.Socks != "":
		var p socks.Proxy
		p, err = socks.ParseProxy(c.opts.Proxy.Socks)
		x.socks = &p
	}
	if err != nil {
		return nil, err
	}

	x.flags = c.blacklist.Get(x.host)
	if c.opts.Send.ForceHTTP10 {
		x.flags |= FlagHTTP10
	}

	entry := req.Entry
	if !req.Reload && !x.flags.Has(FlagNoRange) && !entry.Complete() {
		x.from = entry.Contiguous()
	}
	x.validate = !req.Reload && entry.Complete() && entry.LastModified() != "" && entry.Code() < 400

	return x, nil
}

func (x *exchange) key() poolKey {
	key := poolKey{scheme: x.target.Scheme, host: strings.ToLower(x.host), port: x.port}
	switch {
	case x.proxy != nil:
		key.proxy = "http:" + x.proxy.String()
	case x.socks != nil:
		key.proxy = x.socks.String()
	}
	return key
}

func (x *exchange) version() http.Version {
	if x.flags.Has(FlagHTTP10) {
		return http.Version10
	}
	return http.Version11
}

// hostField is the Host value: brackets around IPv6 literals, port only when not the default.
func (x *exchange) hostField() string {
	host := x.host
	if strings.IndexByte(host, ':') >= 0 {
		host = "[" + host + "]"
	}
	if port, _ := uri.DefaultPort(x.target.Scheme); port != x.port {
		host += ":" + strconv.FormatUint(uint64(x.port), 10)
	}
	return host
}

// compose builds the request. Fields are always emitted in the same order.
func (c *Client) compose(x *exchange) http.Request {
	opts := c.opts.Send

	method := "GET"
	if x.post != nil {
		method = "POST"
	}

	var h http.Header
	h.Add("Host", x.hostField())

	if opts.UserAgent != "" {
		h.Add("User-Agent", opts.UserAgent)
	}

	if x.proxy != nil && x.proxy.userInfo != "" {
		h.Add("Proxy-Authorization", basicAuth(x.proxy.userInfo))
	}

	referer := x.Referer
	if referer == "" {
		referer = opts.Referer
	}
	if referer != "" {
		h.Add("Referer", referer)
	}

	h.Add("Accept", "*/*")

	if opts.AcceptLanguage != "" && !x.flags.Has(FlagNoAcceptLanguage) {
		h.Add("Accept-Language", opts.AcceptLanguage)
	}

	if opts.Compression && !x.flags.Has(FlagNoCompression) && !content.IsCompressedExtension(x.target.Path) {
		h.Add("Accept-Encoding", content.AcceptEncoding(x.flags.Has(FlagNoBzip2)))
	}

	if opts.AcceptCharset != "" && !x.flags.Has(FlagNoCharset) {
		h.Add("Accept-Charset", opts.AcceptCharset)
	}

	h.Add("Connection", "keep-alive")

	if opts.UpgradeInsecure && x.proxy != nil && x.target.Scheme == "http" {
		h.Add("Upgrade-Insecure-Requests", "1")
	}

	if x.validate {
		h.Add("If-Modified-Since", ifModifiedSince(x.Entry.LastModified()))
	}

	if x.from > 0 {
		h.Add("Range", "bytes="+strconv.FormatInt(x.from, 10)+"-")
	}

	if x.Reload {
		h.Add("Pragma", "no-cache")
		h.Add("Cache-Control", "no-cache")
	}

	if user, password, ok := uri.Credentials(x.target); ok {
		h.Add("Authorization", basicAuth(user+":"+password))
	}

	cookie := c.jar.Cookies(x.target)
	if v, ok := opts.ExtraHeaders.Get("Cookie"); ok {
		cookie = v
	}
	if cookie != "" {
		h.Add("Cookie", cookie)
	}

	for _, f := range opts.ExtraHeaders {
		if strings.EqualFold(string(f.Name), "Cookie") {
			continue
		}
		h = append(h, http.Field{Name: bytes.Clone(f.Name), Value: bytes.Clone(f.Value)})
	}

	request := http.Request{
		RequestLine: http.RequestLine{
			Method:  method,
			Target:  uri.RequestTarget(x.target, x.proxy != nil),
			Version: x.version(),
		},
	}

	if x.post != nil {
		contentType := x.post.ContentType
		if contentType == "" {
			contentType = defaultPostType
		}
		h.Add("Content-Type", contentType)
		h.Add("Content-Length", strconv.Itoa(len(x.post.Body)))
		request.Body = bytes.NewReader(x.post.Body)
	}

	request.Headers = h
	return request
}

func basicAuth(userInfo string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userInfo))
}

// ifModifiedSince normalizes a stored date to the preferred format. Values that
// don't parse are sent as received.
func ifModifiedSince(stored string) string {
	t, err := http.ParseDate(stored)
	if err != nil {
		return stored
	}
	return http.FormatDate(t)
}
