package http

import (
	"browser-core/application/util/rule"
	iolib "browser-core/lib/io"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF accepts LF without CR as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace turns every [rule.Whitespaces] byte into SP and trims
	// the line.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// SkipMalformedFields drops field lines without a colon instead of failing.
	SkipMalformedFields bool

	// Line length limits. Zero means unlimited.
	MaxFieldLineLength uint
	MaxStartLineLength uint
}

// DefaultDecodeOptions is strict RFC 9112 without limits.
var DefaultDecodeOptions = DecodeOptions{}

// BrowserDecodeOptions accepts what deployed servers actually send.
var BrowserDecodeOptions = DecodeOptions{
	AllowSoleLF:         true,
	LenientWhitespace:   true,
	SkipMalformedFields: true,
	MaxFieldLineLength:  MaxHeaderSize,
	MaxStartLineLength:  MaxHeaderSize,
}

var (
	ErrLineTooLong       = errors.New("line exceeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")
	ErrMalformedStart    = errors.New("malformed start line")
)

// headReader reads the start line and header fields shared by requests and
// responses. The body is left in r.
type headReader struct {
	r    *iolib.UntilReader
	opts DecodeOptions
}

func newHeadReader(r io.Reader, opts DecodeOptions) headReader {
	ur, ok := r.(*iolib.UntilReader)
	if !ok {
		ur = iolib.NewUntilReader(r)
	}
	return headReader{r: ur, opts: opts}
}

func (hr headReader) line(limit uint) ([]byte, error) {
	b, err := hr.r.ReadUntilLimit([]byte{rule.LF}, limit)
	switch {
	case errors.Is(err, iolib.ErrLimitExceeded):
		return nil, ErrLineTooLong
	case errors.Is(err, io.EOF):
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, err
	}

	b = b[:len(b)-1]
	if n := len(b); n > 0 && b[n-1] == rule.CR {
		b = b[:n-1]
	} else if !hr.opts.AllowSoleLF {
		return nil, ErrMissingCRBeforeLF
	}

	if !hr.opts.LenientWhitespace {
		// A bare CR inside a line reads as SP.
		//
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
		return bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP}), nil
	}

	for i, c := range b {
		if bytes.IndexByte(rule.Whitespaces, c) >= 0 {
			b[i] = rule.SP
		}
	}
	return bytes.Trim(b, " "), nil
}

// startLine skips the empty lines a message may be preceded by.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func (hr headReader) startLine() ([]byte, error) {
	for {
		b, err := hr.line(hr.opts.MaxStartLineLength)
		if err != nil || len(b) > 0 {
			return b, err
		}
	}
}

func (hr headReader) fields() (Header, error) {
	var h Header
	for {
		b, err := hr.line(hr.opts.MaxFieldLineLength)
		if err != nil {
			return nil, errors.Wrap(err, "reading field line")
		}
		if len(b) == 0 {
			return h, nil
		}

		f, err := ParseField(b)
		if err != nil {
			if hr.opts.SkipMalformedFields {
				continue
			}
			return nil, err
		}
		h = append(h, f)
	}
}

type RequestDecoder struct{ hr headReader }

func NewRequestDecoder(r io.Reader, opts DecodeOptions) *RequestDecoder {
	return &RequestDecoder{hr: newHeadReader(r, opts)}
}

// Decode reads the next request head. r.Body reads what follows it; the
// caller frames it.
func (rd *RequestDecoder) Decode(r *Request) error {
	line, err := rd.hr.startLine()
	if err != nil {
		return errors.Wrap(err, "reading request line")
	}
	if r.RequestLine, err = ParseRequestLine(line); err != nil {
		return err
	}
	if r.Headers, err = rd.hr.fields(); err != nil {
		return err
	}
	r.Body = rd.hr.r
	return nil
}

// ParseRequestLine parses "METHOD target HTTP/x.y".
func ParseRequestLine(line []byte) (RequestLine, error) {
	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 {
		return RequestLine{}, errors.Wrapf(ErrMalformedStart, "%q", line)
	}

	method, target := string(parts[0]), string(parts[1])
	if !rule.IsValidToken(method) {
		return RequestLine{}, errors.Wrapf(ErrMalformedStart, "method %q", method)
	}
	if target == "" {
		return RequestLine{}, errors.Wrap(ErrMalformedStart, "empty request target")
	}

	ver, err := ParseVersion(parts[2])
	if err != nil {
		return RequestLine{}, errors.Wrap(ErrMalformedStart, err.Error())
	}
	return RequestLine{Method: method, Target: target, Version: ver}, nil
}

type ResponseDecoder struct{ hr headReader }

func NewResponseDecoder(r io.Reader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{hr: newHeadReader(r, opts)}
}

// Decode reads the next response head. r.Body reads what follows it; the
// caller frames it.
func (rd *ResponseDecoder) Decode(r *Response) error {
	line, err := rd.hr.startLine()
	if err != nil {
		return errors.Wrap(err, "reading status line")
	}
	if r.StatusLine, err = ParseStatusLine(line); err != nil {
		return err
	}
	if r.Headers, err = rd.hr.fields(); err != nil {
		return err
	}
	r.Body = rd.hr.r
	return nil
}

// ParseStatusLine parses "HTTP/x.y NNN reason". The reason phrase may be missing.
func ParseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, errors.Wrapf(ErrMalformedStart, "%q", line)
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(ErrMalformedStart, err.Error())
	}

	code := parts[1]
	if len(code) != 3 || !isDigits(code) {
		return StatusLine{}, errors.Wrapf(ErrMalformedStart, "status code %q", code)
	}
	n, _ := strconv.Atoi(string(code))

	sl := StatusLine{Version: ver, StatusCode: uint(n)}
	if len(parts) == 3 {
		sl.ReasonPhrase = string(parts[2])
	}
	return sl, nil
}

// ParseResponseHead parses a complete header block as delimited by [FindHeaderEnd].
func ParseResponseHead(block []byte, opts DecodeOptions) (*Response, error) {
	var res Response
	if err := NewResponseDecoder(bytes.NewReader(block), opts).Decode(&res); err != nil {
		return nil, err
	}
	res.Body = nil
	return &res, nil
}
