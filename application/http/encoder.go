package http

import (
	"browser-core/application/util/rule"
	"io"

	"github.com/pkg/errors"
)

type EncodeOptions struct {
	// UseSoleLF ends lines with LF alone.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{}

type RequestEncoder struct {
	w    io.Writer
	opts EncodeOptions
}

func NewRequestEncoder(w io.Writer, opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{w: w, opts: opts}
}

// Encode writes the head in a single write, fields in the order given, then
// copies the body. Nothing is written when a field fails [CheckField].
func (re *RequestEncoder) Encode(req Request) error {
	head, err := re.appendHead(nil, req)
	if err != nil {
		return err
	}

	if _, err := re.w.Write(head); err != nil {
		return errors.Wrap(err, "writing head")
	}
	if req.Body == nil {
		return nil
	}
	if _, err := io.Copy(re.w, req.Body); err != nil {
		return errors.Wrap(err, "writing body")
	}
	return nil
}

func (re *RequestEncoder) appendHead(b []byte, req Request) ([]byte, error) {
	if !rule.IsValidToken(req.Method) {
		return nil, errors.Errorf("invalid method %q", req.Method)
	}
	for i := 0; i < len(req.Target); i++ {
		if c := req.Target[i]; c <= ' ' || c == 0x7f {
			return nil, errors.Errorf("invalid byte %q in request target", c)
		}
	}
	if req.Target == "" {
		return nil, errors.New("empty request target")
	}

	b = append(b, req.Method...)
	b = append(b, rule.SP)
	b = append(b, req.Target...)
	b = append(b, rule.SP)
	b = re.eol(req.Version.appendTo(b))

	for _, f := range req.Headers {
		if err := CheckField(f); err != nil {
			return nil, err
		}
		b = append(b, f.Name...)
		b = append(b, ':', rule.SP)
		b = re.eol(append(b, f.Value...))
	}
	return re.eol(b), nil
}

func (re *RequestEncoder) eol(b []byte) []byte {
	if re.opts.UseSoleLF {
		return append(b, rule.LF)
	}
	return append(b, rule.CR, rule.LF)
}
