package transfer

import (
	"browser-core/application/http"
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/suite"
)

type gzipDecoder struct{}

func (gzipDecoder) Coding() Coding { return CodingGzip }

func (gzipDecoder) NewReader(r io.Reader) io.Reader {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errReader{err}
	}
	return zr
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type RegistryTestSuite struct {
	suite.Suite

	reg *Registry
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.reg = NewRegistry(gzipDecoder{})
}

func (s *RegistryTestSuite) TestDecodeStack() {
	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	_, err := zw.Write([]byte(strings.Repeat("payload ", 100)))
	s.Require().NoError(err)
	s.Require().NoError(zw.Close())

	// gzip first, then chunked in two pieces.
	half := zipped.Len() / 2
	var body strings.Builder
	for _, part := range [][]byte{zipped.Bytes()[:half], zipped.Bytes()[half:]} {
		body.WriteString(strconv.FormatInt(int64(len(part)), 16) + "\r\n")
		body.Write(part)
		body.WriteString("\r\n")
	}
	body.WriteString("0\r\n\r\n")

	r, err := s.reg.Decode(strings.NewReader(body.String()), []Coding{CodingGzip, CodingIdentity, CodingChunked})
	s.Require().NoError(err)

	out, err := io.ReadAll(r)
	s.Require().NoError(err)
	s.Equal(strings.Repeat("payload ", 100), string(out))
}

func (s *RegistryTestSuite) TestDecodeUnsupported() {
	_, err := s.reg.Decode(strings.NewReader(""), []Coding{"compress", CodingChunked})
	s.ErrorIs(err, ErrUnsupportedCoding)
}

func (s *RegistryTestSuite) TestDecodeIdentityOnly() {
	src := strings.NewReader("as is")
	r, err := s.reg.Decode(src, []Coding{CodingIdentity})
	s.Require().NoError(err)
	s.Same(src, r)
}

func TestParseCodings(t *testing.T) {
	h := http.Header{
		http.NewField("Transfer-Encoding", "GZIP ; q=1"),
		http.NewField("Transfer-Encoding", " , chunked"),
	}

	codings := ParseCodings(h)
	if len(codings) != 2 || codings[0] != CodingGzip || codings[1] != CodingChunked {
		t.Fatalf("ParseCodings = %v", codings)
	}
	if !IsChunked(codings) {
		t.Error("chunked is last, IsChunked = false")
	}
	if IsChunked(codings[:1]) || IsChunked(nil) {
		t.Error("IsChunked without a final chunked")
	}
}
