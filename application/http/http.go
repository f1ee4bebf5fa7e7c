package http

import (
	"browser-core/application/util/rule"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

type RequestLine struct {
	Method  string
	Target  string
	Version Version
}

type Request struct {
	RequestLine
	Headers Header

	// Body is optional.
	Body io.Reader
}

type StatusLine struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
}

type Response struct {
	StatusLine
	Headers Header
	Body    io.Reader
}

// Version is [major, minor].
type Version [2]uint

var (
	Version09 = Version{0, 9}
	Version10 = Version{1, 0}
	Version11 = Version{1, 1}
)

var versionPrefix = []byte("HTTP/")

// ParseVersion parses "HTTP/major.minor". The prefix is matched
// case-insensitively, as some servers send it in lowercase.
func ParseVersion(b []byte) (Version, error) {
	if len(b) < len(versionPrefix) || !bytes.EqualFold(b[:len(versionPrefix)], versionPrefix) {
		return Version{}, errors.Errorf("not an http version: %q", b)
	}

	major, minor, ok := bytes.Cut(b[len(versionPrefix):], []byte{'.'})
	if !ok {
		return Version{}, errors.Errorf("version without minor number: %q", b)
	}

	var ver Version
	for i, part := range [][]byte{major, minor} {
		if len(part) == 0 || !isDigits(part) {
			return Version{}, errors.Errorf("malformed version number in %q", b)
		}
		n, err := strconv.ParseUint(string(part), 10, 32)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version %q", b)
		}
		ver[i] = uint(n)
	}
	return ver, nil
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if !rule.IsDigit(rune(c)) {
			return false
		}
	}
	return true
}

func (ver Version) appendTo(b []byte) []byte {
	b = append(b, versionPrefix...)
	b = strconv.AppendUint(b, uint64(ver[0]), 10)
	b = append(b, '.')
	return strconv.AppendUint(b, uint64(ver[1]), 10)
}

func (ver Version) String() string { return string(ver.appendTo(nil)) }

// AtLeast reports whether ver is other or newer.
func (ver Version) AtLeast(other Version) bool {
	if ver[0] != other[0] {
		return ver[0] > other[0]
	}
	return ver[1] >= other[1]
}

type Field struct{ Name, Value []byte }

func NewField(name, value string) Field {
	return Field{Name: []byte(name), Value: []byte(value)}
}

func (f Field) String() string { return string(f.Name) + ": " + string(f.Value) }

var ErrMalformedField = errors.New("malformed field line")

// ParseField splits a field line at its first colon and trims the value.
// The name is not checked to be a token, so that servers sending odd names
// can still be understood.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5
func ParseField(line []byte) (Field, error) {
	name, value, ok := bytes.Cut(line, []byte{':'})
	switch {
	case !ok:
		return Field{}, errors.Wrapf(ErrMalformedField, "no colon in %q", line)
	case len(name) == 0:
		return Field{}, errors.Wrap(ErrMalformedField, "empty field name")
	case bytes.IndexByte(rule.OWS, name[len(name)-1]) >= 0:
		return Field{}, errors.Wrapf(ErrMalformedField, "whitespace before colon in %q", line)
	}

	return Field{Name: name, Value: bytes.Trim(value, string(rule.OWS))}, nil
}

var ErrInvalidField = errors.New("field cannot be sent")

// CheckField reports a field that would corrupt the message it is sent in:
// a name that is not a token, or a value holding CR, LF or NUL.
func CheckField(f Field) error {
	if !rule.IsValidToken(string(f.Name)) {
		return errors.Wrapf(ErrInvalidField, "name %q", f.Name)
	}
	if bytes.ContainsAny(f.Value, "\r\n\x00") {
		return errors.Wrapf(ErrInvalidField, "value of %s", f.Name)
	}
	return nil
}
