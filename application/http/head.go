package http

import (
	"browser-core/application/util/rule"
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxHeaderSize bounds a response header block.
const MaxHeaderSize = 256 * 1024

var ErrHeaderTooLarge = errors.New("header block never terminated")

// FindHeaderEnd returns the length of the header block at the start of b,
// terminator included. A block ends at the first blank line, accepting
// CRLF CRLF, LF LF and LF CRLF.
func FindHeaderEnd(b []byte) (int, bool) {
	for i := 0; i < len(b); i++ {
		idx := bytes.IndexByte(b[i:], rule.LF)
		if idx < 0 {
			return 0, false
		}
		i += idx

		rest := b[i+1:]
		switch {
		case len(rest) >= 1 && rest[0] == rule.LF:
			return i + 2, true
		case len(rest) >= 2 && rest[0] == rule.CR && rest[1] == rule.LF:
			return i + 3, true
		}
	}
	return 0, false
}

var statusPrefix = []byte("HTTP/")

// IsResponseHead reports whether b starts like an HTTP/1.x response. While b is
// shorter than the prefix the answer is undecided.
func IsResponseHead(b []byte) (yes, decided bool) {
	n := min(len(b), len(statusPrefix))
	if !bytes.EqualFold(b[:n], statusPrefix[:n]) {
		return false, true
	}
	return n == len(statusPrefix), n == len(statusPrefix)
}

// SynthesizeHTTP09 is the head given to a response that had none: the whole
// stream is the body.
func SynthesizeHTTP09() []byte {
	return []byte("HTTP/0.9 200 OK\r\n\r\n")
}

// ContentRange is a parsed "bytes first-last/length" value. Length is -1 when unknown.
type ContentRange struct {
	First, Last int64
	Length      int64
}

var ErrMalformedContentRange = errors.New("content-range is malformed")

// ParseContentRange parses a Content-Range value of a 206 response.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-14.4
func ParseContentRange(v string) (ContentRange, error) {
	unit, rest, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || !strings.EqualFold(unit, "bytes") {
		return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "%q", v)
	}

	span, length, ok := strings.Cut(strings.TrimSpace(rest), "/")
	if !ok {
		return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "%q", v)
	}

	cr := ContentRange{Length: -1}
	if length != "*" {
		n, err := strconv.ParseInt(length, 10, 64)
		if err != nil || n < 0 {
			return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "length %q", length)
		}
		cr.Length = n
	}

	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "%q", v)
	}

	var err1, err2 error
	cr.First, err1 = strconv.ParseInt(first, 10, 64)
	cr.Last, err2 = strconv.ParseInt(last, 10, 64)
	if err1 != nil || err2 != nil || cr.First < 0 || cr.Last < cr.First {
		return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "span %q", span)
	}
	if cr.Length >= 0 && cr.Last >= cr.Length {
		return ContentRange{}, errors.Wrapf(ErrMalformedContentRange, "span %q beyond length", span)
	}

	return cr, nil
}

const (
	// Preferred format: IMF-fixdate
	imfFixDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
	// Obsolete RFC 850 format
	rfc850DateFormat = time.RFC850
	// Obsolete asctime format
	asctimeDateFormat = time.ANSIC
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.7
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{imfFixDateFormat, time.RFC1123, rfc850DateFormat, asctimeDateFormat}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.Errorf("invalid time format: %q", raw)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(imfFixDateFormat)
}
