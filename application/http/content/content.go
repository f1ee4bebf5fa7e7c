// Package content decodes Content-Encoding of stored responses.
package content

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"
	"path"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

type Encoding string

const (
	Identity Encoding = ""
	Gzip     Encoding = "gzip"
	Deflate  Encoding = "deflate"
	Brotli   Encoding = "br"
	Zstd     Encoding = "zstd"
	Bzip2    Encoding = "bzip2"
)

var ErrUnsupportedEncoding = errors.New("content encoding is unsupported")

// ParseEncoding maps a Content-Encoding value to an [Encoding].
// Only the last coding is considered; servers stacking several are not handled.
func ParseEncoding(v string) (Encoding, error) {
	if idx := strings.LastIndexByte(v, ','); idx >= 0 {
		v = v[idx+1:]
	}

	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "identity":
		return Identity, nil
	case "gzip", "x-gzip":
		return Gzip, nil
	case "deflate":
		return Deflate, nil
	case "br":
		return Brotli, nil
	case "zstd":
		return Zstd, nil
	case "bzip2", "x-bzip2":
		return Bzip2, nil
	}

	return Identity, errors.Wrapf(ErrUnsupportedEncoding, "%q", v)
}

// AcceptEncoding is the Accept-Encoding value to send.
// Hosts that mangle bzip2 get it left out.
func AcceptEncoding(noBzip2 bool) string {
	if noBzip2 {
		return "gzip, deflate, br, zstd"
	}
	return "gzip, deflate, br, zstd, bzip2"
}

var compressedExtensions = map[string]struct{}{
	".gz": {}, ".tgz": {}, ".bz2": {}, ".tbz": {}, ".tbz2": {},
	".br": {}, ".zst": {}, ".tzst": {}, ".xz": {}, ".txz": {},
	".lzma": {}, ".z": {}, ".zip": {}, ".7z": {},
}

// IsCompressedExtension reports whether the path names an archive.
// Such files are fetched as they are, without asking for compression.
func IsCompressedExtension(p string) bool {
	if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}
	_, ok := compressedExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// NewReader wraps r with a decoder for enc.
func NewReader(enc Encoding, r io.Reader) (io.ReadCloser, error) {
	switch enc {
	case Identity:
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading gzip header")
		}
		return gr, nil
	case Deflate:
		return newDeflateReader(r)
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd decoder")
		}
		return zr.IOReadCloser(), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedEncoding, "%q", enc)
}

// newDeflateReader accepts both zlib-wrapped and raw deflate streams.
// "deflate" means zlib, but plenty of servers send raw deflate.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "reading zlib header")
		}
		return zr, nil
	}

	return flate.NewReader(br), nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc1950#section-2.2
func isZlibHeader(b []byte) bool {
	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Decode decodes a complete body.
func Decode(enc Encoding, data []byte) ([]byte, error) {
	if enc == Identity {
		return data, nil
	}

	r, err := NewReader(enc, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return out, errors.Wrapf(err, "decoding %s", enc)
	}

	return out, nil
}
