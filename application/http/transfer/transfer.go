// Package transfer undoes the transfer codings of a response body.
package transfer

import (
	"browser-core/application/http"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type Coding string

const (
	CodingChunked  Coding = "chunked"
	CodingGzip     Coding = "gzip"
	CodingDeflate  Coding = "deflate"
	CodingIdentity Coding = "identity"
)

// Decoder undoes one transfer coding.
type Decoder interface {
	Coding() Coding
	NewReader(r io.Reader) io.Reader
}

var ErrUnsupportedCoding = errors.New("transfer coding is unsupported")

// Registry holds the decoders a client understands. Chunked is always known.
type Registry struct{ decoders map[Coding]Decoder }

func NewRegistry(extra ...Decoder) *Registry {
	reg := &Registry{decoders: map[Coding]Decoder{CodingChunked: chunkedDecoder{}}}
	for _, d := range extra {
		reg.decoders[d.Coding()] = d
	}
	return reg
}

// Decode stacks decoders over r. codings are in the order the sender applied
// them, so the last one is undone first.
func (reg *Registry) Decode(r io.Reader, codings []Coding) (io.Reader, error) {
	for i := len(codings) - 1; i >= 0; i-- {
		if codings[i] == CodingIdentity {
			continue
		}

		d, ok := reg.decoders[codings[i]]
		if !ok {
			return nil, errors.Wrap(ErrUnsupportedCoding, string(codings[i]))
		}
		r = d.NewReader(r)
	}
	return r, nil
}

// ParseCodings returns the codings listed in Transfer-Encoding, in the order they were applied.
// Parameters are dropped and names are lowercased.
func ParseCodings(headers http.Header) []Coding {
	var codings []Coding
	for _, token := range headers.Tokens("Transfer-Encoding") {
		name, _, _ := strings.Cut(token, ";")
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			codings = append(codings, Coding(name))
		}
	}
	return codings
}

// IsChunked reports whether chunked is the final transfer coding.
func IsChunked(codings []Coding) bool {
	return len(codings) > 0 && codings[len(codings)-1] == CodingChunked
}
