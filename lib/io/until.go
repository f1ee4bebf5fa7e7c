package iolib

import (
	"bytes"
	"errors"
	"io"
)

const fillSize = 4096

var (
	ErrZeroLenDelim  = errors.New("delim has zero length")
	ErrLimitExceeded = errors.New("delim not found within limit")
)

// UntilReader reads up to a delimiter. Bytes read past the delimiter stay
// buffered for the next call or for Read.
type UntilReader struct {
	r   io.Reader
	buf []byte
	err error
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r}
}

// Buffered is the number of bytes read from the source but not handed out yet.
func (ur *UntilReader) Buffered() int { return len(ur.buf) }

func (ur *UntilReader) Read(p []byte) (int, error) {
	if len(ur.buf) > 0 {
		n := copy(p, ur.buf)
		ur.buf = ur.buf[n:]
		return n, nil
	}
	if ur.err != nil {
		return 0, ur.err
	}
	return ur.r.Read(p)
}

func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	return ur.ReadUntilLimit(delim, 0)
}

// ReadUntilLimit returns the bytes up to and including delim. A limit above
// zero caps the returned length: past it the first limit bytes are consumed
// and returned with ErrLimitExceeded. When the source ends first, everything
// left is returned with the source's error.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	scanned := 0
	for {
		if i := bytes.Index(ur.buf[scanned:], delim); i >= 0 {
			end := scanned + i + len(delim)
			if limit == 0 || uint(end) <= limit {
				return ur.take(end), nil
			}
		}
		if limit > 0 && uint(len(ur.buf)) >= limit {
			return ur.take(int(limit)), ErrLimitExceeded
		}
		if ur.err != nil {
			return ur.take(len(ur.buf)), ur.err
		}

		// The delimiter may straddle what is buffered and what comes next.
		scanned = max(0, len(ur.buf)-len(delim)+1)
		ur.fill()
	}
}

func (ur *UntilReader) take(n int) []byte {
	out := bytes.Clone(ur.buf[:n])
	ur.buf = ur.buf[n:]
	return out
}

func (ur *UntilReader) fill() {
	if cap(ur.buf)-len(ur.buf) < fillSize {
		grown := make([]byte, len(ur.buf), 2*cap(ur.buf)+fillSize)
		copy(grown, ur.buf)
		ur.buf = grown
	}

	n, err := ur.r.Read(ur.buf[len(ur.buf):cap(ur.buf)])
	ur.buf = ur.buf[:len(ur.buf)+n]
	if err != nil {
		ur.err = err
	}
}
