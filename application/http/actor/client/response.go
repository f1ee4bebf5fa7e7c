package client

import (
	"browser-core/application/cache"
	"browser-core/application/http"
	"browser-core/application/http/status"
	"browser-core/application/http/transfer"
	"browser-core/application/util/uri"
	"browser-core/transport"
	"bytes"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrEmptyResponse    = errors.New("connection closed without a response")
	ErrUnexpectedSwitch = errors.New("unexpected protocol switch")
)

type OutcomeKind uint8

const (
	// Done means the entry holds the response, complete.
	Done OutcomeKind = iota
	// NotModified means the cached content was confirmed current.
	NotModified
	// Redirect means the response points elsewhere; Location says where.
	Redirect
	// AuthRequired means the response is a credentials challenge. Its body is stored.
	AuthRequired
	// Retry means the server asked for a workaround that a new try applies.
	Retry
)

func (k OutcomeKind) String() string {
	switch k {
	case Done:
		return "done"
	case NotModified:
		return "not modified"
	case Redirect:
		return "redirect"
	case AuthRequired:
		return "auth required"
	case Retry:
		return "retry"
	}
	return "unknown"
}

type Outcome struct {
	Kind OutcomeKind
	Code uint

	// Location is the absolute redirect target, carrying the proxy prefix and
	// POST payload the follow-up request needs.
	Location string

	// Challenge is the WWW-Authenticate or Proxy-Authenticate value.
	Challenge string
	// Proxy is set when the proxy rather than the origin asked for credentials.
	Proxy bool
}

type bodyAction uint8

const (
	bodyStore bodyAction = iota
	// bodyNone: nothing follows the head and the connection stays usable.
	bodyNone
	// bodyAbandon: whatever follows is unwanted, the connection is dropped.
	bodyAbandon
)

const bodyChunkSize = 16 * 1024

// readHead reads up to the end of the next response head and consumes it from rb.
// A stream that doesn't start like a response is an HTTP/0.9 body and is left in rb.
func readHead(rb *transport.ReadBuffer, opts http.DecodeOptions) (*http.Response, []byte, error) {
	var block []byte

	onChunk := func(rb *transport.ReadBuffer) (bool, error) {
		b := rb.Bytes()
		start := len(b) - len(bytes.TrimLeft(b, "\r\n"))
		b = b[start:]

		yes, decided := http.IsResponseHead(b)
		if decided && !yes {
			block = http.SynthesizeHTTP09()
			return true, nil
		}
		if yes {
			if n, ok := http.FindHeaderEnd(b); ok {
				block = bytes.Clone(b[:n])
				rb.Consume(start + n)
				return true, nil
			}
		}

		if rb.EOF() {
			switch {
			case rb.Len() == 0:
				return false, ErrEmptyResponse
			case yes:
				return false, http.ErrHeaderTooLarge
			}
			block = http.SynthesizeHTTP09()
			return true, nil
		}

		if rb.Len() > http.MaxHeaderSize {
			return false, errors.Wrapf(http.ErrHeaderTooLarge, "over %d bytes", http.MaxHeaderSize)
		}
		return false, nil
	}

	done := false
	if rb.Len() > 0 {
		var err error
		if done, err = onChunk(rb); err != nil {
			return nil, nil, err
		}
	}
	for !done {
		var err error
		if done, err = rb.ReadMore(onChunk); err != nil {
			return nil, nil, err
		}
	}

	res, err := http.ParseResponseHead(block, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing response head")
	}
	return res, block, nil
}

// validatorSources are the fields If-Modified-Since is derived from, best first.
var validatorSources = []string{"Last-Modified", "Date", "Expires"}

// handle applies the status of res to x and its entry and tells what to do with the body.
func (c *Client) handle(x *exchange, res *http.Response, block []byte) (Outcome, bodyAction) {
	code := res.StatusCode
	outcome := Outcome{Kind: Done, Code: code}
	entry := x.Entry

	c.applySignature(x, res)

	switch {
	case code == status.NoContent:
		return outcome, bodyNone

	case code == status.NotModified:
		// The stored bytes stay. Only a validated entry was complete to begin with.
		if x.validate {
			entry.SetComplete(true)
		}
		outcome.Kind = NotModified
		return outcome, bodyNone

	case code == status.RangeNotSatisfiable && x.from > 0:
		entry.Truncate(x.from, true)
		entry.SetComplete(true)
		return outcome, bodyAbandon

	case code == status.RequestHeaderFieldsTooLarge && !x.flags.Has(FlagNoCharset):
		c.blacklist.Add(x.host, FlagNoCharset)
		c.logger.Warn("header fields too large, retrying without accept-charset", slog.String("host", x.host))
		outcome.Kind = Retry
		return outcome, bodyAbandon

	case status.IsTransientServerError(code) && c.opts.Receive.RetryInternalErrors && x.LastTry:
		if c.blacklist.Add(x.host, FlagNoBzip2) && x.post == nil {
			c.logger.Warn("server error, retrying without bzip2",
				slog.String("host", x.host), slog.Int("code", int(code)))
			outcome.Kind = Retry
			return outcome, bodyAbandon
		}
	}

	auth, proxy := status.NeedsAuth(code)
	if cookies := res.Headers.Values("Set-Cookie"); len(cookies) > 0 && !auth {
		c.jar.SetCookies(x.host, cookies)
	}

	entry.SetHead(string(block))
	entry.SetCode(int(code))
	entry.SetRedirect("", false)
	for _, name := range validatorSources {
		if v, ok := res.Headers.Get(name); ok {
			entry.SetLastModified(v)
			break
		}
	}

	switch {
	case auth:
		outcome.Kind = AuthRequired
		outcome.Proxy = proxy
		if outcome.Proxy {
			outcome.Challenge, _ = res.Headers.Get("Proxy-Authenticate")
		} else {
			outcome.Challenge, _ = res.Headers.Get("WWW-Authenticate")
		}

	case status.IsRedirect(code):
		location, ok := res.Headers.Get("Location")
		if !ok {
			break
		}

		target, err := redirectTarget(x, code, location)
		if err != nil {
			c.logger.Warn("ignoring bad redirect",
				slog.String("host", x.host), slog.String("location", location), slog.Any("error", err))
			break
		}

		outcome.Kind = Redirect
		outcome.Location = target
		entry.SetRedirect(target, x.post != nil && !status.KeepsMethod(code))
	}

	return outcome, bodyStore
}

func (c *Client) applySignature(x *exchange, res *http.Response) {
	if !c.opts.Receive.UseBlacklist {
		return
	}

	server, ok := res.Headers.Get("Server")
	if !ok {
		return
	}

	flags := SignatureFlags(server)
	if flags != 0 && c.blacklist.Add(x.host, flags) {
		c.logger.Warn("blacklisting server", slog.String("host", x.host), slog.String("server", server))
	}
}

// redirectTarget resolves location against the requested URL. Credentials of the
// original URL carry over, and 307/308 keep the POST payload.
func redirectTarget(x *exchange, code uint, location string) (string, error) {
	u, err := uri.ResolveLocation(x.target, location)
	if err != nil {
		return "", err
	}
	u = uri.InjectCredentials(u, x.target)

	target := u.String()
	if status.KeepsMethod(code) {
		target = uri.AppendPost(target, x.post)
	}
	if x.proxy != nil && x.proxy.raw != "" {
		target = uri.ProxyPrefix + x.proxy.raw + "/" + target
	}
	return target, nil
}

// readBody stores the body of res into the entry and marks it complete.
// framed reports whether the body end was known from the message itself.
// interrupted turns a premature end caused by a timeout or cancellation into its real cause.
func (c *Client) readBody(x *exchange, rb *transport.ReadBuffer, res *http.Response, interrupted func(error) error) (framed bool, _ error) {
	entry := x.Entry

	from := int64(0)
	if res.StatusCode == status.PartialContent {
		from = x.from
		if v, ok := res.Headers.Get("Content-Range"); ok {
			cr, err := http.ParseContentRange(v)
			if err != nil {
				return false, err
			}
			from = cr.First
			if cr.Length >= 0 {
				entry.SetMaxLength(cr.Length)
			}
		}
	}

	body, framed, length, err := c.bodyReader(rb, res)
	if err != nil {
		return false, err
	}
	if length >= 0 && res.StatusCode != status.PartialContent {
		entry.SetMaxLength(length)
	}

	pos := from
	buf := make([]byte, bodyChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := entry.AddFragment(pos, buf[:n]); err != nil {
				return false, err
			}
			pos += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return false, interrupted(rerr)
		}
	}

	if err := interrupted(nil); err != nil {
		return false, err
	}
	if length >= 0 && pos-from < length {
		return false, errors.Wrapf(io.ErrUnexpectedEOF, "got %d of %d bytes", pos-from, length)
	}

	entry.Truncate(pos, true)
	entry.SetComplete(true)

	c.logger.Debug("response stored",
		slog.String("url", entry.URL()), slog.Int("code", int(res.StatusCode)), slog.Int64("length", pos))
	return framed, nil
}

// bodyReader picks the framing of the body: transfer codings, then Content-Length,
// then the end of the stream. length is -1 unless Content-Length applies.
func (c *Client) bodyReader(rb *transport.ReadBuffer, res *http.Response) (_ io.Reader, framed bool, length int64, _ error) {
	code := res.StatusCode
	if res.Version == http.Version09 {
		return rb, false, -1, nil
	}
	if code == status.NoContent || code == status.NotModified || status.IsInformational(code) {
		return bytes.NewReader(nil), true, -1, nil
	}

	codings := slices.DeleteFunc(transfer.ParseCodings(res.Headers), func(coding transfer.Coding) bool {
		return coding == transfer.CodingIdentity
	})
	if len(codings) > 0 {
		r, err := c.transfer.Decode(rb, codings)
		if err != nil {
			return nil, false, -1, err
		}
		return r, transfer.IsChunked(codings), -1, nil
	}

	n, ok, err := contentLength(res.Headers)
	if err != nil {
		return nil, false, -1, err
	}
	if ok && !mustClose(res) {
		return io.LimitReader(rb, n), true, n, nil
	}

	return rb, false, -1, nil
}

// contentLength parses Content-Length. Unparsable values are ignored, values
// that don't fit are an error.
func contentLength(h http.Header) (int64, bool, error) {
	v, ok := h.Get("Content-Length")
	if !ok {
		return 0, false, nil
	}

	n, err := strconv.ParseInt(string(bytes.TrimSpace([]byte(v))), 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, false, errors.Wrapf(cache.ErrLargeFile, "content-length %s", v)
	}
	if err != nil || n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

// mustClose reports an HTTP/1.0 response announcing the connection ends with it,
// whose Content-Length is then not trusted.
func mustClose(res *http.Response) bool {
	return !res.Version.AtLeast(http.Version11) && res.Headers.HasToken("Connection", "close")
}

func keepAlive(res *http.Response, viaProxy bool) bool {
	h := res.Headers
	if h.HasToken("Connection", "close") || (viaProxy && h.HasToken("Proxy-Connection", "close")) {
		return false
	}
	if res.Version.AtLeast(http.Version11) {
		return true
	}
	return h.HasToken("Connection", "keep-alive") || (viaProxy && h.HasToken("Proxy-Connection", "keep-alive"))
}
